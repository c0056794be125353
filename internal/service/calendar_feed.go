package service

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/noah-isme/deadline-engine/internal/models"
)

const feedProductID = "-//deadline-engine//deadlines//EN"

// FeedEntry is one deadline exported to iCalendar.
type FeedEntry struct {
	UID         string
	Summary     string
	Description string
	Category    string
	Day         time.Time
	Completed   bool
}

// BuildDeadlineFeed renders entries as an all-day VEVENT calendar.
func BuildDeadlineFeed(name string, entries []FeedEntry, stamp time.Time) []byte {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(feedProductID)
	cal.SetXWRCalName(name)

	for _, entry := range entries {
		event := cal.AddEvent(entry.UID)
		event.SetDtStampTime(stamp.UTC())
		event.SetAllDayStartAt(entry.Day)
		event.SetAllDayEndAt(entry.Day.AddDate(0, 0, 1))
		event.SetSummary(entry.Summary)
		if entry.Description != "" {
			event.SetDescription(entry.Description)
		}
		if entry.Category != "" {
			event.SetProperty(ics.ComponentPropertyCategories, entry.Category)
		}
		if entry.Completed {
			event.SetStatus(ics.ObjectStatusCompleted)
		} else {
			event.SetStatus(ics.ObjectStatusConfirmed)
		}
	}
	return []byte(cal.Serialize())
}

func deadlineFeedEntry(deadline models.ProjectDeadline, effective time.Time, loc *time.Location) FeedEntry {
	summary := deadline.Title
	if !effective.Equal(deadline.DueDate) {
		summary = fmt.Sprintf("%s (extended)", deadline.Title)
	}
	return FeedEntry{
		UID:         fmt.Sprintf("deadline-%d@deadline-engine", deadline.ID),
		Summary:     summary,
		Description: deadline.Description,
		Category:    deadline.Category,
		Day:         CalendarDay(effective, loc),
		Completed:   deadline.Completed,
	}
}

func periodFeedEntry(period models.DeadlinePeriod, loc *time.Location) FeedEntry {
	return FeedEntry{
		UID:         fmt.Sprintf("period-%d@deadline-engine", period.ID),
		Summary:     period.Title,
		Description: period.Description,
		Category:    period.Category,
		Day:         CalendarDay(period.EffectiveDate, loc),
	}
}
