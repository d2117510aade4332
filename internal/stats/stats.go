// Package stats computes the local summaries shown by the dashboard,
// the TUI header and the reports.
package stats

import (
	"math"
	"time"

	"github.com/taxilian/envlog/internal/model"
)

// Range is the acceptable band for one measurement.
type Range struct {
	Min     float64
	Max     float64
	Optimal float64
}

// Classify labels v against r: "Alta" above Max, "Baja" below Min, else "Normal".
func (r Range) Classify(v float64) string {
	switch {
	case v > r.Max:
		return "Alta"
	case v < r.Min:
		return "Baja"
	default:
		return "Normal"
	}
}

// Series summarizes one measurement over a window of readings.
type Series struct {
	Current  float64
	Min      float64
	Max      float64
	Avg      float64
	MinLabel string // label of the first reading at Min
	MaxLabel string // label of the first reading at Max
	Analysis string // Classify(Avg)
	Level    model.Level
	Values   []float64
}

// Summary covers the last readings of the active sheet.
type Summary struct {
	Count       int
	Labels      []string
	Temperature Series
	Humidity    Series
}

// Summarize reduces the last window records (in the order given, oldest
// first) to per-measurement series. ok is false when there are no records.
func Summarize(records []model.Record, window int, temp, humidity Range) (s Summary, ok bool) {
	if len(records) == 0 {
		return Summary{}, false
	}
	if window > 0 && len(records) > window {
		records = records[len(records)-window:]
	}

	labels := make([]string, len(records))
	temps := make([]float64, len(records))
	hums := make([]float64, len(records))
	for i, r := range records {
		labels[i] = r.Label()
		temps[i] = r.Temperature
		hums[i] = r.Humidity
	}

	return Summary{
		Count:       len(records),
		Labels:      labels,
		Temperature: series(temps, labels, temp),
		Humidity:    series(hums, labels, humidity),
	}, true
}

func series(values []float64, labels []string, r Range) Series {
	s := Series{
		Current: values[len(values)-1],
		Min:     values[0],
		Max:     values[0],
		Values:  values,
	}
	minIdx, maxIdx := 0, 0
	var sum float64
	for i, v := range values {
		sum += v
		if v < s.Min {
			s.Min, minIdx = v, i
		}
		if v > s.Max {
			s.Max, maxIdx = v, i
		}
	}
	s.Avg = sum / float64(len(values))
	s.MinLabel = labels[minIdx]
	s.MaxLabel = labels[maxIdx]
	s.Analysis = r.Classify(s.Avg)
	s.Level = model.AnalysisLevel(s.Analysis)
	return s
}

// MonthProgress tracks the readings logged against the monthly requirement.
type MonthProgress struct {
	Month         string // Spanish month name
	Year          int
	Records       int
	Required      int
	Percent       float64 // capped at 100
	DaysRemaining int
}

// Progress computes the month status at now.
func Progress(records, required int, now time.Time) MonthProgress {
	p := MonthProgress{
		Month:    model.MonthName(now.Month()),
		Year:     now.Year(),
		Records:  records,
		Required: required,
	}
	if required > 0 {
		p.Percent = math.Min(float64(records)/float64(required)*100, 100)
	}
	lastDay := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	p.DaysRemaining = lastDay - now.Day()
	return p
}

// Complete reports whether the requirement has been met.
func (p MonthProgress) Complete() bool {
	return p.Required > 0 && p.Records >= p.Required
}
