package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalendarMatch(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	base := time.Date(2025, 4, 15, 9, 30, 0, 0, time.UTC)

	cases := []struct {
		name   string
		titleA string
		dateA  time.Time
		titleB string
		dateB  time.Time
		loc    *time.Location
		want   bool
	}{
		{"identical", "Entrega Propuesta", base, "Entrega Propuesta", base, time.UTC, true},
		{"time of day ignored", "Entrega Propuesta", base, "Entrega Propuesta", time.Date(2025, 4, 15, 23, 59, 0, 0, time.UTC), time.UTC, true},
		{"case and spacing ignored", "  entrega   PROPUESTA ", base, "Entrega Propuesta", base, time.UTC, true},
		{"different day", "Entrega Propuesta", base, "Entrega Propuesta", base.Add(24 * time.Hour), time.UTC, false},
		{"different title", "Entrega Propuesta", base, "Entrega Final", base, time.UTC, false},
		{"day boundary follows location", "Defense", time.Date(2025, 4, 15, 18, 0, 0, 0, time.UTC), "Defense", time.Date(2025, 4, 16, 1, 0, 0, 0, time.UTC), jakarta, true},
		{"nil location is utc", "Defense", base, "Defense", base, nil, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CalendarMatch(tc.titleA, tc.dateA, tc.titleB, tc.dateB, tc.loc))
			assert.Equal(t, tc.want, CalendarMatch(tc.titleB, tc.dateB, tc.titleA, tc.dateA, tc.loc))
		})
	}
}

func TestCalendarDayUsesLocation(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	instant := time.Date(2025, 4, 15, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 4, 16, 0, 0, 0, 0, jakarta), CalendarDay(instant, jakarta))
	assert.Equal(t, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC), CalendarDay(instant, time.UTC))
}
