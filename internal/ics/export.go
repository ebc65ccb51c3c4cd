package ics

import (
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"hackcal/internal/model"
)

// CalendarOptions describes the exported calendar.
type CalendarOptions struct {
	Name        string
	Description string
	// URL is the public address of the feed, if known.
	URL string
	// Now stamps DTSTAMP; zero means time.Now.
	Now time.Time
}

// WriteCalendar writes the listings as an iCalendar subscription feed. Each
// listing becomes an all-day VEVENT spanning its dates; DTEND is the day
// after the last day, as the format requires.
func WriteCalendar(w io.Writer, list []model.Hackathon, opts CalendarOptions) error {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	name := opts.Name
	if name == "" {
		name = "Hackathons"
	}

	cal := ical.NewCalendarFor("hackcal")
	cal.SetMethod(ical.MethodPublish)
	cal.SetName(name)
	cal.SetXWRCalName(name)
	if opts.Description != "" {
		cal.SetDescription(opts.Description)
	}
	if opts.URL != "" {
		cal.SetUrl(opts.URL)
	}
	cal.SetRefreshInterval("PT1H")
	cal.SetXPublishedTTL("PT1H")

	for i := range list {
		h := &list[i]
		ev := cal.AddEvent(eventUID(h))
		ev.SetDtStampTime(now)
		ev.SetAllDayStartAt(h.StartDate.Time)
		ev.SetAllDayEndAt(h.EndDate.AddDays(1).Time)
		ev.SetSummary(h.Name)
		if h.Location != "" {
			ev.SetLocation(h.Location)
		}
		if h.WebsiteURL != "" {
			ev.SetURL(h.WebsiteURL)
		}
		if desc := eventDescription(h); desc != "" {
			ev.SetDescription(desc)
		}
		if h.Platform != "" {
			ev.AddCategory(h.Platform)
		}
		for _, tag := range h.Tags {
			ev.AddCategory(tag)
		}
	}

	return cal.SerializeTo(w)
}

func eventUID(h *model.Hackathon) string {
	if h.Slug != "" {
		return h.Slug + "@hackcal"
	}
	return h.ID.String() + "@hackcal"
}

func eventDescription(h *model.Hackathon) string {
	var parts []string
	if h.PrizePool != nil {
		parts = append(parts, "Prize pool: "+model.FormatPrize(*h.PrizePool))
	}
	if h.Platform != "" {
		parts = append(parts, "Platform: "+h.Platform)
	}
	return strings.Join(parts, "\n")
}
