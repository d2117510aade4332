package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MonthNames are the sheet names the endpoint uses for archived months.
var MonthNames = [12]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// MonthName returns the sheet name for m.
func MonthName(m time.Month) string {
	return MonthNames[m-1]
}

// ParseMonth accepts a month number (1-12) or a name in any case and
// returns the canonical sheet name.
func ParseMonth(s string) (string, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return "", fmt.Errorf("invalid month %d (expected 1-12)", n)
		}
		return MonthNames[n-1], nil
	}
	for _, name := range MonthNames {
		if strings.EqualFold(name, s) {
			return name, nil
		}
	}
	return "", fmt.Errorf("invalid month %q", s)
}

// ParseYear validates a four-digit year.
func ParseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return 0, fmt.Errorf("invalid year %q (expected YYYY)", s)
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q (expected YYYY)", s)
	}
	return y, nil
}
