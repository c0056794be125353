package service

import (
	"strings"
	"time"
)

// NormalizeTitle trims, collapses inner whitespace and case-folds a title.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

// CalendarDay truncates t to its calendar day in loc.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// CalendarMatch reports whether two entries describe the same calendar item:
// equal normalized titles on the same day in loc. It is symmetric.
func CalendarMatch(titleA string, dateA time.Time, titleB string, dateB time.Time, loc *time.Location) bool {
	return matchKeyOf(titleA, dateA, loc) == matchKeyOf(titleB, dateB, loc)
}

type matchKey struct {
	title string
	day   string
}

func matchKeyOf(title string, t time.Time, loc *time.Location) matchKey {
	return matchKey{title: NormalizeTitle(title), day: CalendarDay(t, loc).Format("2006-01-02")}
}
