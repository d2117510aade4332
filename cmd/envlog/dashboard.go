package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/taxilian/envlog/internal/db"
	"github.com/taxilian/envlog/internal/format"
	"github.com/taxilian/envlog/internal/model"
	"github.com/taxilian/envlog/internal/stats"
	"github.com/taxilian/envlog/internal/templates"
)

var (
	flagDashRemote   bool
	flagStatsWindow  int
	flagStatsCached  bool
	flagReportVars   []string
	flagReportRaw    bool
	flagReportRemote bool
	flagReportWidth  int
	flagReportOutput string
	flagTmplDetail   bool
)

// fetchOverview lists the active sheet and, when withDashboard is set,
// fetches the endpoint aggregates at the same time.
func fetchOverview(cmd *cobra.Command, a *app, withDashboard bool) ([]model.Record, *model.Dashboard, error) {
	var (
		recs []model.Record
		dash model.Dashboard
	)
	g, gCtx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		var err error
		recs, err = a.svc.List(gCtx)
		return err
	})
	if withDashboard {
		g.Go(func() error {
			var err error
			dash, err = a.svc.Dashboard(gCtx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if !withDashboard {
		return recs, nil, nil
	}
	return recs, &dash, nil
}

// countMonth counts readings dated in t's month.
func countMonth(recs []model.Record, t time.Time) int {
	prefix := t.Format("2006-01-")
	n := 0
	for _, r := range recs {
		if strings.HasPrefix(r.Date, prefix) {
			n++
		}
	}
	return n
}

// reportData builds what dashboards and reports are rendered from.
// recs is oldest first.
func reportData(cfg *db.Config, recs []model.Record, dash *model.Dashboard, window int, t time.Time) templates.Data {
	if window <= 0 {
		window = cfg.ChartWindow
	}
	summary, ok := stats.Summarize(recs, window, stats.Range(cfg.Temperature), stats.Range(cfg.Humidity))
	return templates.Data{
		Now:        t,
		Records:    recs,
		Summary:    summary,
		HasSummary: ok,
		Progress:   stats.Progress(countMonth(recs, t), cfg.RequiredMonthly, t),
		Dashboard:  dash,
	}
}

func printProgress(p stats.MonthProgress) {
	fmt.Printf("%s %d: %d/%d readings (%.0f%%), %d day(s) left",
		p.Month, p.Year, p.Records, p.Required, p.Percent, p.DaysRemaining)
	if p.Complete() {
		fmt.Print(" - monthly goal met")
	}
	fmt.Println()
}

func printSummary(s stats.Summary, cfg *db.Config) {
	t := format.Table{Headers: []string{"", "CURRENT", "MIN", "MAX", "AVG", "ANALYSIS", "RANGE"}}
	temp, hum := s.Temperature, s.Humidity
	t.Append("Temperature",
		format.Temperature(temp.Current),
		format.Temperature(temp.Min)+" ("+temp.MinLabel+")",
		format.Temperature(temp.Max)+" ("+temp.MaxLabel+")",
		format.Temperature(temp.Avg),
		temp.Analysis,
		fmt.Sprintf("%s-%s", format.Temperature(cfg.Temperature.Min), format.Temperature(cfg.Temperature.Max)))
	t.Append("Humidity",
		format.Humidity(hum.Current),
		format.Humidity(hum.Min)+" ("+hum.MinLabel+")",
		format.Humidity(hum.Max)+" ("+hum.MaxLabel+")",
		format.Humidity(hum.Avg),
		hum.Analysis,
		fmt.Sprintf("%s-%s", format.Humidity(cfg.Humidity.Min), format.Humidity(cfg.Humidity.Max)))
	_ = t.Render(os.Stdout)
}

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"dash"},
	Short:   "Show month progress and the latest readings summary",
	Long: `Show the month's progress against the required number of readings and
a summary of the last readings (chart window from the config).

With --remote the endpoint's own aggregates are fetched alongside.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		recs, dash, err := fetchOverview(cmd, a, flagDashRemote)
		if err != nil {
			return err
		}
		data := reportData(a.config, recs, dash, 0, now())

		printProgress(data.Progress)
		if len(recs) > 0 {
			last := recs[len(recs)-1]
			fmt.Printf("Last reading: %s by %s\n", describeRecord(last), last.Person)
		}
		fmt.Println()
		if data.HasSummary {
			fmt.Printf("Last %d reading(s):\n", data.Summary.Count)
			printSummary(data.Summary, a.config)
		} else {
			fmt.Println("No readings yet")
		}

		if dash != nil {
			fmt.Println()
			fmt.Println("Endpoint aggregates:")
			fmt.Printf("  Period average:  %s (%s), %s (%s)\n",
				format.Temperature(dash.TempAvg), dash.TempAnalysis,
				format.Humidity(dash.HumidityAvg), dash.HumidityAnalysis)
			fmt.Printf("  Year average:    %s, %s\n",
				format.Temperature(dash.YearTempAvg), format.Humidity(dash.YearHumidityAvg))
			fmt.Printf("  Total records:   %d\n", dash.TotalRecords)
			if dash.LastRecord != "" {
				fmt.Printf("  Last record:     %s\n", dash.LastRecord)
			}
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the latest readings against the thresholds",
	Long: `Compute current, minimum, maximum and average temperature and humidity
over the last readings and classify the averages against the configured
thresholds (Alta, Baja, Normal).

Examples:
  envlog stats
  envlog stats --window 48
  envlog stats --cached`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(!flagStatsCached)
		if err != nil {
			return err
		}
		defer a.Close()

		var recs []model.Record
		if flagStatsCached {
			cached, err := a.db.ListRecords()
			if err != nil {
				return err
			}
			recs = reverseRecords(cached)
		} else {
			recs, err = a.svc.List(cmd.Context())
			if err != nil {
				return err
			}
		}

		data := reportData(a.config, recs, nil, flagStatsWindow, now())
		if !data.HasSummary {
			fmt.Println("No readings yet")
			return nil
		}
		if flagJSON {
			return printJSON(struct {
				Summary  stats.Summary       `json:"summary"`
				Progress stats.MonthProgress `json:"progress"`
			}{data.Summary, data.Progress})
		}
		fmt.Printf("Last %d reading(s):\n", data.Summary.Count)
		printSummary(data.Summary, a.config)
		fmt.Println()
		printProgress(data.Progress)
		return nil
	},
}

func parseReportVars(pairs []string) (map[string]string, error) {
	vars := map[string]string{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid variable format: %s (expected name=value)", pair)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("variable name cannot be empty")
		}
		vars[name] = value
	}
	return vars, nil
}

var reportCmd = &cobra.Command{
	Use:   "report [template]",
	Short: "Render a report from a template",
	Long: `Render a markdown report from a template (default: daily).

Templates are looked up in .envlog/templates (project), then
~/.config/envlog/templates (user), then the built-ins (daily, monthly).
The report is styled for the terminal unless --raw is given or it is
written to a file.

Examples:
  envlog report
  envlog report monthly --remote
  envlog report daily --var area="Bodega 2"
  envlog report monthly --raw -o octubre.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := "daily"
		if len(args) > 0 {
			id = args[0]
		}
		tmpl, err := templates.LoadTemplate(id)
		if err != nil {
			return err
		}
		provided, err := parseReportVars(flagReportVars)
		if err != nil {
			return err
		}
		vars, err := tmpl.ResolveVars(provided)
		if err != nil {
			return err
		}

		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		recs, dash, err := fetchOverview(cmd, a, flagReportRemote)
		if err != nil {
			return err
		}
		data := reportData(a.config, recs, dash, 0, now())
		data.Vars = vars

		md, err := tmpl.Render(data)
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", tmpl.ID, err)
		}

		if flagReportOutput != "" {
			if err := os.WriteFile(flagReportOutput, []byte(md), 0644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			fmt.Printf("Report written to %s\n", flagReportOutput)
			return nil
		}
		if flagReportRaw {
			fmt.Print(md)
			return nil
		}
		fmt.Print(format.RenderMarkdown(md, flagReportWidth))
		return nil
	},
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List report templates",
	Long: `List the report templates available to 'envlog report'.

Template locations (searched in priority order):
  1. Project: .envlog/templates/ (searched upward from current directory)
  2. User: ~/.config/envlog/templates/
  3. Built-in: daily, monthly

Templates from more local locations override the others with the same ID.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tmpls, err := templates.ListTemplates()
		if err != nil {
			return err
		}

		if !flagTmplDetail {
			t := format.Table{Headers: []string{"ID", "SOURCE", "HASH", "TITLE"}, MaxWidth: 50}
			for _, tmpl := range tmpls {
				t.Append(tmpl.ID, tmpl.Source, tmpl.ShortHash(), tmpl.Title)
			}
			_ = t.Render(os.Stdout)
		} else {
			for i, tmpl := range tmpls {
				if i > 0 {
					fmt.Println()
				}
				fmt.Printf("%s (%s) %s\n", tmpl.ID, tmpl.Source, tmpl.ShortHash())
				if tmpl.SourcePath != "" {
					fmt.Printf("  Path: %s\n", tmpl.SourcePath)
				}
				if tmpl.Description != "" {
					fmt.Printf("  %s\n", tmpl.Description)
				}
				if len(tmpl.Variables) > 0 {
					fmt.Println("  Variables:")
					for name, v := range tmpl.Variables {
						req := "required"
						if v.Optional {
							req = "optional"
						}
						if v.Default != "" {
							req = fmt.Sprintf("default: %s", v.Default)
						}
						desc := v.Description
						if desc == "" {
							desc = "(no description)"
						}
						fmt.Printf("    %s (%s): %s\n", name, req, desc)
					}
				}
				fmt.Println("  Sections:")
				for _, s := range tmpl.Sections {
					fmt.Printf("    - %s: %s\n", s.ID, s.Title)
				}
			}
		}

		locs := templates.GetTemplateLocations()
		if len(locs) > 0 {
			fmt.Println("\nTemplate locations searched:")
			for _, loc := range locs {
				fmt.Printf("  %s (%s)\n", loc.Path, loc.Source)
			}
		}
		return nil
	},
}

func init() {
	dashboardCmd.Flags().BoolVar(&flagDashRemote, "remote", false, "Also fetch the endpoint's aggregates")

	statsCmd.Flags().IntVarP(&flagStatsWindow, "window", "w", 0, "Number of readings to summarize (default: config chart_window)")
	statsCmd.Flags().BoolVar(&flagStatsCached, "cached", false, "Use the cached listing")
	statsCmd.Flags().BoolVar(&flagJSON, "json", false, "Output as JSON")

	reportCmd.Flags().StringArrayVar(&flagReportVars, "var", nil, "Template variable (name=value, repeatable)")
	reportCmd.Flags().BoolVar(&flagReportRaw, "raw", false, "Print markdown without terminal styling")
	reportCmd.Flags().BoolVar(&flagReportRemote, "remote", false, "Include the endpoint's aggregates")
	reportCmd.Flags().IntVar(&flagReportWidth, "width", 80, "Wrap width for styled output")
	reportCmd.Flags().StringVarP(&flagReportOutput, "output", "o", "", "Write the markdown to a file")

	templatesCmd.Flags().BoolVar(&flagTmplDetail, "detail", false, "Show variables and sections")

	rootCmd.AddCommand(dashboardCmd, statsCmd, reportCmd, templatesCmd)
}
