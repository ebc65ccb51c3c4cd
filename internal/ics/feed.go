package ics

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	appLog "hackcal/internal/log"
	"hackcal/internal/model"
)

// ToHackathons converts expanded occurrences into listings. Imported
// listings are approved by definition; they are grouped under the feed's
// name and tagged with the event's CATEGORIES. Occurrences without a summary
// are dropped.
func ToHackathons(occs []Occurrence) []model.Hackathon {
	out := make([]model.Hackathon, 0, len(occs))
	for _, o := range occs {
		name := strings.TrimSpace(o.Summary)
		if name == "" {
			continue
		}

		start := model.DateOf(o.Start)
		end := lastDay(o)

		tags := make([]string, len(o.Categories))
		copy(tags, o.Categories)

		h := model.Hackathon{
			ID:        occurrenceID(o),
			Name:      name,
			Location:  o.Location,
			Platform:  o.Source.Name,
			StartDate: start,
			EndDate:   end,
			Tags:      tags,
			Slug:      model.Slugify(o.Source.ID + " " + name + " " + start.String()),
			Display:   true,
			Source:    model.FeedSource(o.Source.ID),
		}
		if isWebURL(o.URL) {
			h.WebsiteURL = o.URL
		}
		out = append(out, h)
	}
	return out
}

// lastDay is the inclusive end date of an occurrence. ICS ends are
// exclusive, so an event ending exactly at midnight ends the day before.
func lastDay(o Occurrence) model.Date {
	if !o.End.After(o.Start) {
		return model.DateOf(o.Start)
	}
	return model.DateOf(o.End.Add(-time.Nanosecond))
}

// occurrenceID is stable across refreshes so links and the exported
// calendar keep their UIDs.
func occurrenceID(o Occurrence) uuid.UUID {
	key := o.Source.URL + "\x00" + o.UID + "\x00" + o.InstanceKey
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key))
}

func isWebURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ImportConfig bounds a feed import.
type ImportConfig struct {
	Location    *time.Location
	Now         time.Time
	HorizonDays int
}

// ImportResult is the outcome of one Import run.
type ImportResult struct {
	Listings []model.Hackathon
	// Imported counts the sources that were fetched, parsed and expanded,
	// including ones that contributed no listings.
	Imported int
}

// Import fetches, parses and expands every source and returns the imported
// listings. A failing source is skipped; the returned error joins all
// per-source failures and is nil only if every source succeeded.
func Import(ctx context.Context, f *Fetcher, sources []Source, cfg ImportConfig) (ImportResult, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	horizon := cfg.HorizonDays
	if horizon <= 0 {
		horizon = 180
	}

	results, errs := f.FetchAll(ctx, sources)

	// Past events stay on the timeline's lead-in, so expand from well before
	// today.
	today := time.Date(now.In(loc).Year(), now.In(loc).Month(), now.In(loc).Day(), 0, 0, 0, 0, loc)
	expandCfg := ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      today.AddDate(0, 0, -horizon),
		RangeEnd:        today.AddDate(0, 0, horizon),
	}

	out := ImportResult{Listings: make([]model.Hackathon, 0)}
	for _, res := range results {
		parsed, err := ParseICS(res.Source, res.Body)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		expanded, err := ExpandOccurrences(parsed, expandCfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		listings := ToHackathons(expanded.Occurrences)
		appLog.Info("feed imported", "feed", res.Source.ID, "listings", len(listings), "from_cache", res.FromCache)
		out.Listings = append(out.Listings, listings...)
		out.Imported++
	}

	return out, errors.Join(errs...)
}
