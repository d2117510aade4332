package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/taxilian/envlog/internal/format"
	"github.com/taxilian/envlog/internal/model"
)

var (
	flagArchYear  string
	flagArchMonth string
)

var yearsCmd = &cobra.Command{
	Use:   "years",
	Short: "List the yearly archive sheets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		sheets, err := a.client.YearSheets(cmd.Context())
		if err != nil {
			return err
		}
		if flagJSON {
			if sheets == nil {
				sheets = []model.YearSheet{}
			}
			return printJSON(sheets)
		}
		if len(sheets) == 0 {
			fmt.Println("No year sheets found")
			return nil
		}
		t := format.Table{Headers: []string{"YEAR", "ACTIVE", "MONTHS", "RECORDS", "LAST UPDATE"}}
		for _, s := range sheets {
			active := ""
			if s.Active {
				active = "yes"
			}
			t.Append(s.Year.String(), active, strconv.Itoa(s.Months), strconv.Itoa(s.Records), s.LastUpdate)
		}
		_ = t.Render(os.Stdout)
		return nil
	},
}

var yearCmd = &cobra.Command{
	Use:   "year",
	Short: "Manage a yearly archive sheet",
}

var yearCreateCmd = &cobra.Command{
	Use:   "create <yyyy>",
	Short: "Create the archive sheet for a year",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, err := model.ParseYear(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		msg, err := a.client.CreateYearSheet(cmd.Context(), year)
		if err != nil {
			return err
		}
		if msg == "" {
			msg = fmt.Sprintf("Year sheet %d created", year)
		}
		fmt.Println(msg)
		return nil
	},
}

var yearShowCmd = &cobra.Command{
	Use:   "show <yyyy>",
	Short: "Show the archived readings of a year, by month",
	Long: `Show the readings archived in a year sheet grouped by month, with
the month's average temperature and humidity.

Use --json for the full records.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, err := model.ParseYear(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.client.HistoricalData(cmd.Context(), year)
		if err != nil {
			return err
		}
		if flagJSON {
			if recs == nil {
				recs = []model.ArchivedRecord{}
			}
			return printJSON(recs)
		}
		if len(recs) == 0 {
			fmt.Printf("No archived readings for %d\n", year)
			return nil
		}

		months, groups := model.GroupByMonth(recs)
		t := format.Table{Headers: []string{"MONTH", "RECORDS", "AVG TEMP", "AVG HUM"}}
		for _, m := range months {
			group := groups[m]
			var temp, hum float64
			for _, r := range group {
				temp += r.Temperature
				hum += r.Humidity
			}
			n := float64(len(group))
			t.Append(m, strconv.Itoa(len(group)), format.Temperature(temp/n), format.Humidity(hum/n))
		}
		fmt.Printf("%d: %d archived reading(s)\n", year, len(recs))
		_ = t.Render(os.Stdout)
		return nil
	},
}

// monthFlags parses --year and --month.
func monthFlags() (int, string, error) {
	if flagArchYear == "" || flagArchMonth == "" {
		return 0, "", fmt.Errorf("--year and --month are required")
	}
	year, err := model.ParseYear(flagArchYear)
	if err != nil {
		return 0, "", err
	}
	month, err := model.ParseMonth(flagArchMonth)
	if err != nil {
		return 0, "", err
	}
	return year, month, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move a month from the active sheet into its year archive",
	Long: `Move a month's readings from the active sheet into the year archive.

The month may be a number (1-12) or a Spanish month name.
Requires --pin when an operator PIN is set.

Examples:
  envlog migrate --year 2024 --month 3
  envlog migrate --year 2024 --month marzo --pin 1234`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		year, month, err := monthFlags()
		if err != nil {
			return err
		}
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.guard.Require(flagPIN); err != nil {
			return err
		}
		msg, err := a.client.Migrate(cmd.Context(), year, month)
		if err != nil {
			return err
		}
		if msg == "" {
			msg = fmt.Sprintf("Migrated %s %d", month, year)
		}
		fmt.Println(msg)
		return nil
	},
}

var restoreMonthCmd = &cobra.Command{
	Use:   "restore-month",
	Short: "Copy an archived month back to the active sheet",
	Long: `Copy a month's readings from the year archive back to the active sheet.

Requires --pin when an operator PIN is set.

Examples:
  envlog restore-month --year 2024 --month 3`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		year, month, err := monthFlags()
		if err != nil {
			return err
		}
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.guard.Require(flagPIN); err != nil {
			return err
		}
		n, msg, err := a.client.RestoreMigration(cmd.Context(), year, month)
		if err != nil {
			return err
		}
		fmt.Printf("Restored %d record(s) from %s %d\n", n, month, year)
		if msg != "" {
			fmt.Println(msg)
		}
		return nil
	},
}

func init() {
	yearsCmd.Flags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	yearShowCmd.Flags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	yearCmd.AddCommand(yearCreateCmd, yearShowCmd)

	for _, c := range []*cobra.Command{migrateCmd, restoreMonthCmd} {
		c.Flags().StringVar(&flagArchYear, "year", "", "Archive year (YYYY)")
		c.Flags().StringVar(&flagArchMonth, "month", "", "Month (1-12 or name)")
		c.Flags().StringVar(&flagPIN, "pin", "", "Operator PIN")
	}

	rootCmd.AddCommand(yearsCmd, yearCmd, migrateCmd, restoreMonthCmd)
}
