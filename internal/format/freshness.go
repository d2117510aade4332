// Package format provides display helpers shared by the CLI, the TUI and
// the HTTP server.
package format

import (
	"fmt"
	"time"
)

// StaleThreshold is the age after which a cached listing is flagged as stale.
const StaleThreshold = 5 * time.Minute

// IsStale returns true if a snapshot taken at taken is older than StaleThreshold.
func IsStale(taken, now time.Time) bool {
	return now.Sub(taken) > StaleThreshold
}

// Age renders how long ago t was, coarsely ("just now", "3m ago", "2h ago", "4d ago").
func Age(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// CacheStatus describes a cached snapshot for list headers.
func CacheStatus(taken, now time.Time) string {
	s := "cached " + Age(taken, now)
	if IsStale(taken, now) {
		s += " (stale)"
	}
	return s
}
