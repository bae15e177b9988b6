// Package datefmt formats dates in French, independently of the host locale.
package datefmt

import (
	"fmt"
	"time"
)

var weekdays = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}

var months = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// Weekday returns the French name of t's weekday
func Weekday(t time.Time) string {
	return weekdays[t.Weekday()]
}

// Month returns the French name of t's month
func Month(t time.Time) string {
	return months[t.Month()-1]
}

// Date renders "vendredi 16 octobre 2026"
func Date(t time.Time) string {
	return fmt.Sprintf("%s %d %s %d", Weekday(t), t.Day(), Month(t), t.Year())
}

// Clock renders "14h05"
func Clock(t time.Time) string {
	return fmt.Sprintf("%02dh%02d", t.Hour(), t.Minute())
}
