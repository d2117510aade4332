package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/taxilian/envlog/internal/format"
	"github.com/taxilian/envlog/internal/history"
	"github.com/taxilian/envlog/internal/model"
)

var (
	flagListCached bool
	flagListSearch string
	flagListLimit  int

	flagRecTemp   float64
	flagRecHum    float64
	flagRecPerson string
	flagRecNotes  string
	flagRecDate   string
	flagRecTime   string
	flagRecShift  string
)

// now is the clock used for new readings and relative times.
var now = time.Now

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List readings, newest first",
	Long: `List the readings on the active sheet, newest first.

Every listing refreshes the local cache. Use --cached to show the last
cached listing without contacting the endpoint.

Examples:
  envlog list
  envlog list --limit 10
  envlog list --search "ana tarde"
  envlog list --cached --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(!flagListCached)
		if err != nil {
			return err
		}
		defer a.Close()

		var recs []model.Record
		status := ""
		if flagListCached {
			recs, err = a.db.ListRecords()
			if err != nil {
				return err
			}
			taken, ok, err := a.db.LastSnapshot()
			if err != nil {
				return err
			}
			if !ok {
				status = "never fetched"
			} else {
				status = format.CacheStatus(taken, now())
			}
		} else {
			listed, err := a.svc.List(cmd.Context())
			if err != nil {
				return err
			}
			recs = reverseRecords(listed)
		}

		if flagListSearch != "" {
			recs = format.FilterRecords(flagListSearch, recs)
		}
		if flagListLimit > 0 && len(recs) > flagListLimit {
			recs = recs[:flagListLimit]
		}

		if flagJSON {
			if recs == nil {
				recs = []model.Record{}
			}
			return printJSON(recs)
		}
		if status != "" {
			fmt.Printf("(%s)\n", status)
		}
		printRecordsTable(recs)
		return nil
	},
}

// applyRecordFlags copies the record flags that were set onto r. Setting
// --time also moves the shift unless --shift is given.
func applyRecordFlags(cmd *cobra.Command, r *model.Record) error {
	f := cmd.Flags()
	if f.Changed("date") {
		d, err := time.ParseInLocation(model.DateLayout, flagRecDate, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q (expected YYYY-MM-DD)", flagRecDate)
		}
		r.Date = d.Format(model.DateLayout)
		r.Day = d.Day()
	}
	if f.Changed("time") {
		t, err := time.Parse(model.TimeLayout, flagRecTime)
		if err != nil {
			return fmt.Errorf("invalid --time %q (expected HH:MM)", flagRecTime)
		}
		r.Time = t.Format(model.TimeLayout)
		r.Shift = model.ShiftFor(t)
	}
	if f.Changed("shift") {
		s, err := model.ParseShift(flagRecShift)
		if err != nil {
			return err
		}
		r.Shift = s
	}
	if f.Changed("temp") {
		r.Temperature = flagRecTemp
	}
	if f.Changed("hum") {
		r.Humidity = flagRecHum
	}
	if f.Changed("person") {
		r.Person = flagRecPerson
	}
	if f.Changed("notes") {
		r.Notes = flagRecNotes
	}
	return nil
}

func addRecordFlags(cmd *cobra.Command) {
	cmd.Flags().Float64VarP(&flagRecTemp, "temp", "t", 0, "Temperature in °C")
	cmd.Flags().Float64VarP(&flagRecHum, "hum", "H", 0, "Relative humidity in %")
	cmd.Flags().StringVarP(&flagRecPerson, "person", "p", "", "Person taking the reading (default: config operator)")
	cmd.Flags().StringVarP(&flagRecNotes, "notes", "n", "", "Observations")
	cmd.Flags().StringVar(&flagRecDate, "date", "", "Date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&flagRecTime, "time", "", "Time (HH:MM, default now)")
	cmd.Flags().StringVar(&flagRecShift, "shift", "", "Shift (MAÑANA or TARDE, default from time)")
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a new reading",
	Long: `Record a new reading on the endpoint.

Date, time, day and shift default to now. The change can be undone with
'envlog undo'.

Examples:
  envlog add --temp 21.5 --hum 55
  envlog add -t 19 -H 62 -p "Ana" -n "after cleaning"
  envlog add -t 20 -H 50 --date 2024-03-05 --time 15:30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		r := model.NewReading(now())
		r.Person = a.config.Operator
		if err := applyRecordFlags(cmd, &r); err != nil {
			return err
		}
		created, err := a.svc.Add(cmd.Context(), r)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s\n", describeRecord(created))
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a reading",
	Long: `Change fields of an existing reading. Only the flags given are changed.

The previous values are kept in the history so 'envlog undo' restores them.

Examples:
  envlog edit 12 --temp 22.1
  envlog edit 12 --notes "sensor recalibrated"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		r, err := a.svc.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		if err := applyRecordFlags(cmd, &r); err != nil {
			return err
		}
		updated, err := a.svc.Edit(cmd.Context(), r)
		if err != nil {
			return err
		}
		fmt.Printf("Updated %s\n", describeRecord(updated))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a reading",
	Long: `Delete a reading from the endpoint.

The full record is kept in the history so 'envlog undo' recreates it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		deleted, err := a.svc.Delete(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %s (undo with 'envlog undo')\n", describeRecord(deleted))
		return nil
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Undo the most recent change",
	Long: `Reverse the most recent change on the endpoint.

A created reading is deleted, a deleted reading is recreated with its
original id and fields, and an edit is rolled back to the previous values.
If the endpoint call fails nothing changes and the undo can be retried.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		change, err := a.svc.Undo(cmd.Context())
		if errors.Is(err, history.ErrEmptyHistory) {
			return errors.New("nothing to undo")
		}
		if err != nil {
			return err
		}
		fmt.Printf("Undid %s of %s\n", change.Action, describeRecord(undoneState(change)))
		return nil
	},
}

var redoCmd = &cobra.Command{
	Use:   "redo",
	Short: "Re-apply the most recently undone change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		change, err := a.svc.Redo(cmd.Context())
		if errors.Is(err, history.ErrEmptyHistory) {
			return errors.New("nothing to redo")
		}
		if err != nil {
			return err
		}
		fmt.Printf("Redid %s of %s\n", change.Action, describeRecord(change.Data))
		return nil
	},
}

// undoneState is the record as it stands after undoing c.
func undoneState(c model.ChangeRecord) model.Record {
	if c.Action == model.ActionUpdate && c.Before != nil {
		return *c.Before
	}
	return c.Data
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the undo/redo history",
	Long: `Show the changes that can be undone, most recent first, and how many
undone changes can be redone.

The history is kept in the local database and survives restarts. It holds
at most 50 changes; older ones are dropped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		undo := a.history.History()
		redo := a.history.Undone()
		if flagJSON {
			return printJSON(struct {
				Undo []model.ChangeRecord `json:"undo"`
				Redo []model.ChangeRecord `json:"redo"`
			}{Undo: undo, Redo: redo})
		}

		if len(undo) == 0 {
			fmt.Println("No changes in history")
		}
		t := now()
		for i, c := range undo {
			fmt.Printf("%3d  %s\n", i+1, format.ChangeLine(c, t))
		}
		if len(redo) > 0 {
			fmt.Printf("\n%d change(s) can be redone\n", len(redo))
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every change in the history",
	Long: `Empty the undo and redo history. Nothing on the endpoint changes.

Requires --pin when an operator PIN is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.guard.Require(flagPIN); err != nil {
			return err
		}
		n := len(a.history.History())
		if err := a.history.Clear(); err != nil {
			return err
		}
		fmt.Printf("Cleared %d change(s)\n", n)
		return nil
	},
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", s)
	}
	return id, nil
}

func init() {
	listCmd.Flags().BoolVar(&flagListCached, "cached", false, "Show the cached listing without contacting the endpoint")
	listCmd.Flags().StringVarP(&flagListSearch, "search", "s", "", "Fuzzy filter by date, time, shift, person or notes")
	listCmd.Flags().IntVar(&flagListLimit, "limit", 0, "Show at most this many readings")
	listCmd.Flags().BoolVar(&flagJSON, "json", false, "Output as JSON")

	addRecordFlags(addCmd)
	_ = addCmd.MarkFlagRequired("temp")
	_ = addCmd.MarkFlagRequired("hum")
	addRecordFlags(editCmd)

	historyCmd.Flags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	historyClearCmd.Flags().StringVar(&flagPIN, "pin", "", "Operator PIN")
	historyCmd.AddCommand(historyClearCmd)

	rootCmd.AddCommand(listCmd, addCmd, editCmd, deleteCmd, undoCmd, redoCmd, historyCmd)
}
