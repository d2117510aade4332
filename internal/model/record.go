// Package model defines the core data types for envlog.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date and time layouts used by the spreadsheet endpoint.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ErrMissingID is returned when an operation needs a record id and it is zero.
var ErrMissingID = errors.New("record id is required")

// Shift is the half of the day a reading belongs to.
type Shift string

const (
	ShiftMorning   Shift = "MAÑANA"
	ShiftAfternoon Shift = "TARDE"
)

// shiftCutoffHour is the first hour that belongs to the afternoon shift.
const shiftCutoffHour = 14

func (s Shift) IsValid() bool {
	return s == ShiftMorning || s == ShiftAfternoon
}

// ShiftFor returns the shift a reading taken at t belongs to.
func ShiftFor(t time.Time) Shift {
	if t.Hour() < shiftCutoffHour {
		return ShiftMorning
	}
	return ShiftAfternoon
}

// ParseShift accepts the canonical names plus unaccented and English aliases.
func ParseShift(s string) (Shift, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MAÑANA", "MANANA", "AM", "MORNING":
		return ShiftMorning, nil
	case "TARDE", "PM", "AFTERNOON":
		return ShiftAfternoon, nil
	}
	return "", fmt.Errorf("invalid shift %q (valid: MAÑANA, TARDE)", s)
}

// Record is one temperature/humidity reading as stored by the endpoint.
// JSON names match the spreadsheet columns.
type Record struct {
	ID          int     `json:"id"`
	Date        string  `json:"fecha"` // YYYY-MM-DD
	Time        string  `json:"hora"`  // HH:MM
	Shift       Shift   `json:"jornada"`
	Day         int     `json:"dia"`
	Temperature float64 `json:"temperatura"` // °C
	Humidity    float64 `json:"humedad"`     // %
	Person      string  `json:"persona"`
	Notes       string  `json:"observaciones"`
}

// NewReading returns a record pre-filled with the date, time, day and shift of now.
func NewReading(now time.Time) Record {
	return Record{
		Date:  now.Format(DateLayout),
		Time:  now.Format(TimeLayout),
		Day:   now.Day(),
		Shift: ShiftFor(now),
	}
}

// Validate checks that the record can be sent to the endpoint.
func (r Record) Validate() error {
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", r.Date)
	}
	if _, err := time.Parse(TimeLayout, r.Time); err != nil {
		return fmt.Errorf("invalid time %q (expected HH:MM)", r.Time)
	}
	if !r.Shift.IsValid() {
		return fmt.Errorf("invalid shift %q (valid: MAÑANA, TARDE)", r.Shift)
	}
	if r.Day < 1 || r.Day > 31 {
		return fmt.Errorf("invalid day %d", r.Day)
	}
	if r.Humidity < 0 || r.Humidity > 100 {
		return fmt.Errorf("humidity %.1f%% out of range", r.Humidity)
	}
	if strings.TrimSpace(r.Person) == "" {
		return errors.New("person is required")
	}
	return nil
}

// ParsedDate returns the record date, or the zero time if it is malformed.
func (r Record) ParsedDate() time.Time {
	t, err := time.ParseInLocation(DateLayout, r.Date, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DisplayDate formats the date as DD/MM/YYYY.
func (r Record) DisplayDate() string {
	t := r.ParsedDate()
	if t.IsZero() {
		return r.Date
	}
	return t.Format("02/01/2006")
}

// Label is the short "day/HH:MM" label used to mark extremes.
func (r Record) Label() string {
	day := r.Day
	if t := r.ParsedDate(); !t.IsZero() {
		day = t.Day()
	}
	return fmt.Sprintf("%d/%s", day, r.Time)
}

// UnmarshalJSON tolerates the loose typing of spreadsheet values: numbers may
// arrive as strings ("60%", "21,5"), and dates/times as full ISO timestamps.
func (r *Record) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID          flexNumber `json:"id"`
		Date        string     `json:"fecha"`
		Time        string     `json:"hora"`
		Shift       string     `json:"jornada"`
		Day         flexNumber `json:"dia"`
		Temperature flexNumber `json:"temperatura"`
		Humidity    flexNumber `json:"humedad"`
		Person      flexString `json:"persona"`
		Notes       flexString `json:"observaciones"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Record{
		ID:          int(raw.ID),
		Date:        normalizeDate(raw.Date),
		Time:        normalizeTime(raw.Time),
		Shift:       Shift(strings.TrimSpace(raw.Shift)),
		Day:         int(raw.Day),
		Temperature: float64(raw.Temperature),
		Humidity:    float64(raw.Humidity),
		Person:      string(raw.Person),
		Notes:       string(raw.Notes),
	}
	return nil
}

// flexNumber decodes a JSON number or a numeric string.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = 0
		return nil
	}
	if !strings.HasPrefix(s, `"`) {
		var v float64
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexNumber(v)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	str = strings.TrimSpace(str)
	str = strings.TrimSuffix(str, "%")
	str = strings.TrimSuffix(str, "°C")
	str = strings.ReplaceAll(strings.TrimSpace(str), ",", ".")
	if str == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", str)
	}
	*f = flexNumber(v)
	return nil
}

// flexString decodes a JSON string or number as a string.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = flexString(str)
		return nil
	}
	*f = flexString(s)
	return nil
}

// normalizeDate reduces an ISO timestamp to a local YYYY-MM-DD date.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Local().Format(DateLayout)
	}
	return s
}

// normalizeTime reduces an ISO timestamp (spreadsheets store times on
// 1899-12-30) or an HH:MM:SS value to HH:MM.
func normalizeTime(s string) string {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Local().Format(TimeLayout)
	}
	if t, err := time.Parse("15:04:05", s); err == nil {
		return t.Format(TimeLayout)
	}
	return s
}
