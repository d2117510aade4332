package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/taxilian/envlog/internal/format"
	"github.com/taxilian/envlog/internal/model"
)

var (
	flagExportOutput string
	flagExportJSON   bool
	flagExportJSONL  bool
	flagExportXLSX   bool
	flagExportCached bool
	flagExportYear   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export readings to a file",
	Long: `Export readings to stdout or a file, oldest first.

By default, outputs a markdown table. Use --json for a JSON array,
--jsonl for JSON Lines (one object per line) or --xlsx for a spreadsheet
(requires -o).

With --year the archived readings of that year are exported instead of
the active sheet, with the month in an extra column.

Examples:
  envlog export                        # Markdown to stdout
  envlog export --json -o readings.json
  envlog export --xlsx -o lecturas.xlsx
  envlog export --year 2024 --xlsx -o 2024.xlsx
  envlog export --cached --jsonl`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n := 0
		for _, set := range []bool{flagExportJSON, flagExportJSONL, flagExportXLSX} {
			if set {
				n++
			}
		}
		if n > 1 {
			return fmt.Errorf("--json, --jsonl and --xlsx are mutually exclusive")
		}
		if flagExportXLSX && flagExportOutput == "" {
			return fmt.Errorf("--xlsx requires --output")
		}
		if flagExportCached && flagExportYear != "" {
			return fmt.Errorf("--cached and --year are mutually exclusive")
		}

		a, err := openApp(!flagExportCached)
		if err != nil {
			return err
		}
		defer a.Close()

		var rows []exportRow
		switch {
		case flagExportYear != "":
			year, err := model.ParseYear(flagExportYear)
			if err != nil {
				return err
			}
			archived, err := a.client.HistoricalData(cmd.Context(), year)
			if err != nil {
				return err
			}
			for _, r := range archived {
				rows = append(rows, exportRow{Record: r.Record, Month: r.Month})
			}
		case flagExportCached:
			cached, err := a.db.ListRecords()
			if err != nil {
				return err
			}
			for _, r := range reverseRecords(cached) {
				rows = append(rows, exportRow{Record: r})
			}
		default:
			recs, err := a.svc.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range recs {
				rows = append(rows, exportRow{Record: r})
			}
		}
		withMonth := flagExportYear != ""

		var output io.Writer = os.Stdout
		if flagExportOutput != "" {
			f, err := os.Create(flagExportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			output = f
		}

		switch {
		case flagExportJSON:
			err = exportJSON(output, rows)
		case flagExportJSONL:
			err = exportJSONL(output, rows)
		case flagExportXLSX:
			err = exportXLSX(output, rows, withMonth)
		default:
			err = exportMarkdown(output, rows, withMonth)
		}
		if err != nil {
			return err
		}
		if flagExportOutput != "" {
			fmt.Fprintf(os.Stderr, "Exported %d reading(s) to %s\n", len(rows), flagExportOutput)
		}
		return nil
	},
}

// exportRow is a reading with the archive month, if any.
type exportRow struct {
	model.Record
	Month string `json:"mes,omitempty"`
}

func exportJSON(w io.Writer, rows []exportRow) error {
	if rows == nil {
		rows = []exportRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func exportJSONL(w io.Writer, rows []exportRow) error {
	enc := json.NewEncoder(w)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func exportHeaders(withMonth bool) []string {
	if withMonth {
		return append([]string{"MONTH"}, format.RecordHeaders...)
	}
	return format.RecordHeaders
}

func exportMarkdown(w io.Writer, rows []exportRow, withMonth bool) error {
	headers := exportHeaders(withMonth)
	var b strings.Builder
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(headers)) + "\n")
	for _, r := range rows {
		cells := format.RecordRow(r.Record)
		if withMonth {
			cells = append([]string{r.Month}, cells...)
		}
		for i, c := range cells {
			cells[i] = strings.ReplaceAll(c, "|", `\|`)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// exportSheet is the worksheet name used in spreadsheet exports.
const exportSheet = "Lecturas"

// exportXLSX writes rows to a single worksheet with typed cells, so the
// numbers stay numbers in the spreadsheet.
func exportXLSX(w io.Writer, rows []exportRow, withMonth bool) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headers := []any{"ID", "Fecha", "Hora", "Jornada", "Día", "Temperatura (°C)", "Humedad (%)", "Persona", "Observaciones"}
	if withMonth {
		headers = append([]any{"Mes"}, headers...)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(exportSheet, 1, 1, style)
	}

	for i, r := range rows {
		cells := []any{r.ID, r.Date, r.Time, string(r.Shift), r.Day, r.Temperature, r.Humidity, r.Person, r.Notes}
		if withMonth {
			cells = append([]any{r.Month}, cells...)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return nil
}

func init() {
	exportCmd.Flags().StringVarP(&flagExportOutput, "output", "o", "", "Write to file instead of stdout")
	exportCmd.Flags().BoolVar(&flagExportJSON, "json", false, "Output as JSON array")
	exportCmd.Flags().BoolVar(&flagExportJSONL, "jsonl", false, "Output as JSON Lines (one object per line)")
	exportCmd.Flags().BoolVar(&flagExportXLSX, "xlsx", false, "Output as an Excel workbook (requires -o)")
	exportCmd.Flags().BoolVar(&flagExportCached, "cached", false, "Export the cached listing")
	exportCmd.Flags().StringVar(&flagExportYear, "year", "", "Export a year archive instead of the active sheet")

	rootCmd.AddCommand(exportCmd)
}
