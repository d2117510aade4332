package format

import (
	"fmt"
	"strconv"
	"time"

	"github.com/taxilian/envlog/internal/model"
)

// Temperature renders a temperature with one decimal, e.g. "21.5°C".
func Temperature(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "°C"
}

// Humidity renders a humidity as a whole percentage, e.g. "55%".
func Humidity(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64) + "%"
}

// RecordRow is the table row for a record in listings.
func RecordRow(r model.Record) []string {
	return []string{
		strconv.Itoa(r.ID),
		r.DisplayDate(),
		r.Time,
		string(r.Shift),
		Temperature(r.Temperature),
		Humidity(r.Humidity),
		r.Person,
		r.Notes,
	}
}

// RecordHeaders matches RecordRow.
var RecordHeaders = []string{"ID", "DATE", "TIME", "SHIFT", "TEMP", "HUM", "PERSON", "NOTES"}

// ChangeIcon is the marker shown for an action in history listings.
func ChangeIcon(a model.Action) string {
	switch a {
	case model.ActionCreate:
		return "+"
	case model.ActionUpdate:
		return "~"
	case model.ActionDelete:
		return "-"
	default:
		return "?"
	}
}

// ChangeLine is a one-line description of a history entry.
func ChangeLine(c model.ChangeRecord, now time.Time) string {
	id := "new"
	if c.Data.ID != 0 {
		id = "#" + strconv.Itoa(c.Data.ID)
	}
	line := fmt.Sprintf("%s %s %s  %s %s  %s %s  %s",
		ChangeIcon(c.Action), c.Action.Verb(), id,
		c.Data.DisplayDate(), c.Data.Time,
		Temperature(c.Data.Temperature), Humidity(c.Data.Humidity),
		c.Data.Person)
	if c.Action == model.ActionUpdate && c.Before != nil {
		line += fmt.Sprintf("  (was %s %s)", Temperature(c.Before.Temperature), Humidity(c.Before.Humidity))
	}
	return line + "  " + Age(c.Timestamp, now)
}
