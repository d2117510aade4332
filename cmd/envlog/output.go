package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/taxilian/envlog/internal/format"
	"github.com/taxilian/envlog/internal/model"
)

// Output formatting

func printRecordsTable(recs []model.Record) {
	if len(recs) == 0 {
		fmt.Println("No records found")
		return
	}
	t := format.Table{Headers: format.RecordHeaders, MaxWidth: 40}
	for _, r := range recs {
		t.Append(format.RecordRow(r)...)
	}
	_ = t.Render(os.Stdout)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reverseRecords returns recs in the opposite order. Listings from the
// endpoint are oldest first and the cache is newest first.
func reverseRecords(recs []model.Record) []model.Record {
	out := make([]model.Record, len(recs))
	for i, r := range recs {
		out[len(recs)-1-i] = r
	}
	return out
}

func describeRecord(r model.Record) string {
	return fmt.Sprintf("#%d %s %s %s %s", r.ID, r.DisplayDate(), r.Time,
		format.Temperature(r.Temperature), format.Humidity(r.Humidity))
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
