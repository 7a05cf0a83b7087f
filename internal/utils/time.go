package utils

import (
	"time"
)

// DayKey formats t as a UTC calendar day, e.g. 2025-03-14.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
