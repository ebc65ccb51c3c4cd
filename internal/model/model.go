package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"hackcal/internal/timeline"
)

const sourceFeedPrefix = "feed:"

// FeedSource returns the Source value for listings imported from a feed.
func FeedSource(feedID string) string {
	return sourceFeedPrefix + feedID
}

// Hackathon is one row of the hackathons table.
type Hackathon struct {
	ID       uuid.UUID `json:"id,omitzero"`
	Name     string    `json:"name"`
	Location string    `json:"location"`
	// Platform is the hosting platform and doubles as the timeline row.
	Platform    string    `json:"platform"`
	StartDate   Date      `json:"start_date"`
	EndDate     Date      `json:"end_date"`
	PrizePool   *float64  `json:"prize_pool"`
	WebsiteURL  string    `json:"website_url"`
	BannerImage string    `json:"banner_image"`
	Tags        []string  `json:"tags"`
	Slug        string    `json:"slug"`
	Display     bool      `json:"display"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	// Source is empty for submitted listings and "feed:<id>" for imports.
	// Imported rows are never written to a store.
	Source string `json:"source,omitempty"`
}

// FromFeed reports whether h was imported from an ICS feed.
func (h *Hackathon) FromFeed() bool {
	return strings.HasPrefix(h.Source, sourceFeedPrefix)
}

// TimelineEvent converts h into the layout engine's event type.
func (h *Hackathon) TimelineEvent() timeline.Event {
	var id string
	if h.ID != uuid.Nil {
		id = h.ID.String()
	}
	return timeline.Event{
		ID:        id,
		Name:      h.Name,
		Category:  h.Platform,
		Start:     h.StartDate.Time,
		End:       h.EndDate.Time,
		PrizePool: h.PrizePool,
		Tags:      h.Tags,
		Slug:      h.Slug,
	}
}

// TimelineEvents converts a list of hackathons, preserving order.
func TimelineEvents(list []Hackathon) []timeline.Event {
	out := make([]timeline.Event, 0, len(list))
	for i := range list {
		out = append(out, list[i].TimelineEvent())
	}
	return out
}

// Slugify turns a display name into a URL slug: lower case, ASCII letters,
// digits and single dashes only.
func Slugify(name string) string {
	s := slug.Make(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, "_", "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}

// FieldError describes a rejected submission field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FormatPrize renders a prize pool in US dollars with thousands
// separators, e.g. "$1,250,000". Cents are dropped.
func FormatPrize(v float64) string {
	n := int64(math.Round(v))
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
