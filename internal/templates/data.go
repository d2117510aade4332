package templates

import (
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/taxilian/envlog/internal/format"
	"github.com/taxilian/envlog/internal/model"
	"github.com/taxilian/envlog/internal/stats"
)

// Data is what report sections are rendered against.
type Data struct {
	Now        time.Time
	Records    []model.Record // newest last, as listed by the endpoint
	Summary    stats.Summary
	HasSummary bool
	Progress   stats.MonthProgress
	Dashboard  *model.Dashboard // nil unless fetched
	Vars       map[string]string
}

// Today returns the records dated on Now's calendar day.
func (d Data) Today() []model.Record {
	day := d.Now.Format(model.DateLayout)
	var out []model.Record
	for _, r := range d.Records {
		if r.Date == day {
			out = append(out, r)
		}
	}
	return out
}

// Var returns a resolved template variable.
func (d Data) Var(name string) string {
	return d.Vars[name]
}

// templateFuncs provides helper functions for templates.
var templateFuncs = template.FuncMap{
	// hasValue returns true if the value is non-empty
	"hasValue": func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	// default returns the value if non-empty, otherwise the default
	"default": func(defaultVal, val string) string {
		if strings.TrimSpace(val) != "" {
			return val
		}
		return defaultVal
	},
	"temp": format.Temperature,
	"hum":  format.Humidity,
	"fixed": func(decimals int, v float64) string {
		return strconv.FormatFloat(v, 'f', decimals, 64)
	},
	"date": func(t time.Time) string {
		return t.Format("02/01/2006")
	},
	"upper": strings.ToUpper,
}
