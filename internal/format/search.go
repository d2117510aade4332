package format

import (
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/taxilian/envlog/internal/model"
)

// SearchText is the string a record is matched against: id, display date,
// time, shift, person and notes.
func SearchText(r model.Record) string {
	parts := []string{
		strconv.Itoa(r.ID),
		r.DisplayDate(),
		r.Time,
		string(r.Shift),
		r.Person,
		r.Notes,
	}
	return strings.Join(parts, " ")
}

// FilterRecords returns the records matching pattern, best match first.
// An empty pattern returns records unchanged.
func FilterRecords(pattern string, records []model.Record) []model.Record {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return records
	}
	labels := make([]string, len(records))
	for i, r := range records {
		labels[i] = SearchText(r)
	}
	matches := fuzzy.Find(pattern, labels)
	out := make([]model.Record, len(matches))
	for i, m := range matches {
		out[i] = records[m.Index]
	}
	return out
}
