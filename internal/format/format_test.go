package format

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/taxilian/envlog/internal/model"
)

func TestIsStale(t *testing.T) {
	now := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		taken     time.Time
		wantStale bool
	}{
		{"taken 6 minutes ago is stale", now.Add(-6 * time.Minute), true},
		{"taken 4 minutes ago is fresh", now.Add(-4 * time.Minute), false},
		{"taken exactly 5 minutes ago is fresh", now.Add(-5 * time.Minute), false},
		{"taken 5 minutes 1 second ago is stale", now.Add(-5*time.Minute - time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStale(tt.taken, now); got != tt.wantStale {
				t.Errorf("IsStale() = %v, want %v", got, tt.wantStale)
			}
		})
	}
}

func TestAge(t *testing.T) {
	now := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{3 * time.Minute, "3m ago"},
		{2*time.Hour + 10*time.Minute, "2h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := Age(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("Age(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

func TestCacheStatus(t *testing.T) {
	now := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	if got := CacheStatus(now.Add(-2*time.Minute), now); got != "cached 2m ago" {
		t.Errorf("fresh = %q", got)
	}
	if got := CacheStatus(now.Add(-20*time.Minute), now); got != "cached 20m ago (stale)" {
		t.Errorf("stale = %q", got)
	}
}

func TestTable_AlignsWideRunes(t *testing.T) {
	tbl := Table{Headers: []string{"ID", "PERSON", "T"}}
	tbl.Append("1", "Peña", "20.0°C")
	tbl.Append("12", "Ana", "9.5°C")

	var buf bytes.Buffer
	if err := tbl.Render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	want := strings.Join([]string{
		"ID  PERSON  T",
		"--  ------  ------",
		"1   Peña    20.0°C",
		"12  Ana     9.5°C",
	}, "\n") + "\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestTable_MaxWidthTruncates(t *testing.T) {
	tbl := Table{Headers: []string{"NOTES", "X"}, MaxWidth: 8}
	tbl.Append("Observación larga", "y")

	var buf bytes.Buffer
	_ = tbl.Render(&buf)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[2] != "Observa…  y" {
		t.Errorf("row = %q", lines[2])
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("Ana", 10); got != "Ana" {
		t.Errorf("short string changed: %q", got)
	}
	if got := Truncate("anything", 0); got != "anything" {
		t.Errorf("zero width should not truncate: %q", got)
	}
}

func TestFilterRecords(t *testing.T) {
	records := []model.Record{
		{ID: 1, Date: "2025-03-09", Time: "08:00", Shift: model.ShiftMorning, Person: "Ana"},
		{ID: 2, Date: "2025-03-09", Time: "14:00", Shift: model.ShiftAfternoon, Person: "Luis", Notes: "puerta abierta"},
		{ID: 3, Date: "2025-03-10", Time: "08:00", Shift: model.ShiftMorning, Person: "Mariana"},
	}

	if got := FilterRecords("", records); len(got) != 3 {
		t.Errorf("empty pattern should keep all, got %d", len(got))
	}

	got := FilterRecords("luis", records)
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("luis matched %+v", got)
	}

	got = FilterRecords("puerta", records)
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("notes search matched %+v", got)
	}

	if got := FilterRecords("zzz", records); len(got) != 0 {
		t.Errorf("expected no matches, got %d", len(got))
	}
}

func TestRecordRow(t *testing.T) {
	r := model.Record{ID: 5, Date: "2025-03-09", Time: "14:00", Shift: model.ShiftAfternoon, Temperature: 19, Humidity: 60.4, Person: "Ana"}
	row := RecordRow(r)
	if len(row) != len(RecordHeaders) {
		t.Fatalf("row has %d cells, headers %d", len(row), len(RecordHeaders))
	}
	if row[1] != "09/03/2025" || row[4] != "19.0°C" || row[5] != "60%" {
		t.Errorf("row = %v", row)
	}
}

func TestChangeLine(t *testing.T) {
	now := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)
	before := model.Record{ID: 7, Temperature: 18, Humidity: 50}
	c := model.ChangeRecord{
		Action:    model.ActionUpdate,
		Data:      model.Record{ID: 7, Date: "2025-03-09", Time: "08:00", Temperature: 25, Humidity: 50, Person: "Ana"},
		Before:    &before,
		Timestamp: now.Add(-3 * time.Minute),
	}
	line := ChangeLine(c, now)
	for _, want := range []string{"~ updated #7", "25.0°C", "(was 18.0°C 50%)", "3m ago"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}

	created := ChangeLine(model.ChangeRecord{Action: model.ActionCreate, Timestamp: now}, now)
	if !strings.HasPrefix(created, "+ created new") {
		t.Errorf("create line = %q", created)
	}
}

func TestRenderMarkdown(t *testing.T) {
	if RenderMarkdown("", 40) != "" {
		t.Error("empty input should render empty")
	}
	out := RenderMarkdown("# Reporte\n\nTemperatura **normal**", 40)
	if !strings.Contains(out, "Reporte") || !strings.Contains(out, "normal") {
		t.Errorf("rendered output lost content: %q", out)
	}
}
