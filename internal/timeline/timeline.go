// Package timeline computes the Gantt-style grid used by the hackathon
// calendar: the visible date range, a lane per overlapping event inside each
// category row, and the column span of every event.
//
// All computations are pure functions of the input slice. Events are never
// mutated; lane assignments are returned as maps keyed by event ID.
package timeline

import (
	"time"
)

const (
	// LeadDays is how many days the grid starts before the earliest date.
	LeadDays = 30
	// TrailDays is added to the day distance between the grid start and the
	// latest date, leaving roughly a week of padding after the last event.
	TrailDays = 37
)

// Event is a single hackathon as seen by the layout engine.
// Start and End are calendar dates; only their year/month/day are used.
type Event struct {
	ID        string
	Name      string
	Category  string
	Start     time.Time
	End       time.Time
	PrizePool *float64
	Tags      []string
	Slug      string
}

// Range is the contiguous span of days rendered by the grid.
type Range struct {
	Start    time.Time `json:"start"`
	DayCount int       `json:"day_count"`
}

// Days returns every visible day, starting with r.Start.
func (r Range) Days() []time.Time {
	if r.DayCount <= 0 {
		return nil
	}
	days := make([]time.Time, r.DayCount)
	for i := range days {
		days[i] = r.Start.AddDate(0, 0, i)
	}
	return days
}

// Placement is the grid position of one event.
// ColumnStart is 1-based and never less than 1.
type Placement struct {
	ColumnStart int `json:"column_start"`
	ColumnSpan  int `json:"column_span"`
	Lane        int `json:"lane"`
}

// Row is one category row of the grid. Lanes is the number of stacked lanes
// the row needs; EventIDs are ordered by start date.
type Row struct {
	Category string   `json:"category"`
	Lanes    int      `json:"lanes"`
	EventIDs []string `json:"event_ids"`
}

// Layout is the complete result of Compute.
type Layout struct {
	Range     Range                     `json:"range"`
	Lanes     map[string]map[string]int `json:"lanes"`
	Positions map[string]Placement      `json:"positions"`
	Rows      []Row                     `json:"rows"`
	Rejected  []*ValidationError        `json:"rejected,omitempty"`
}

// Day returns the calendar date of t (in t's own location) as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b.
// The result is negative when b is before a.
func DaysBetween(a, b time.Time) int {
	// Unix seconds instead of Sub: a Duration saturates past ~292 years.
	return int((Day(b).Unix() - Day(a).Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

// VisibleRange returns the grid range for events relative to today.
//
// The range starts LeadDays before the earlier of today and the first event
// start, and covers TrailDays past the later of today and the last event end.
func VisibleRange(events []Event, today time.Time) Range {
	earliest := Day(today)
	latest := earliest
	for _, ev := range events {
		if s := Day(ev.Start); s.Before(earliest) {
			earliest = s
		}
		if e := Day(ev.End); e.After(latest) {
			latest = e
		}
	}

	start := earliest.AddDate(0, 0, -LeadDays)
	return Range{
		Start:    start,
		DayCount: DaysBetween(start, latest) + TrailDays,
	}
}

// Overlaps reports whether a and b share at least one calendar day.
// Both endpoints are inclusive: an event ending on the day another starts
// overlaps it.
func Overlaps(a, b Event) bool {
	return !Day(a.End).Before(Day(b.Start)) && !Day(b.End).Before(Day(a.Start))
}

// LiveAt reports whether the event is running at instant now. The event is
// live from midnight of its start date until the end of its end date, both
// taken in now's location.
//
// This is not the same predicate as Overlaps: it compares an instant with a
// half-open interval and is only used for the "live now" badge.
func LiveAt(e Event, now time.Time) bool {
	loc := now.Location()
	sy, sm, sd := e.Start.Date()
	ey, em, ed := e.End.Date()
	from := time.Date(sy, sm, sd, 0, 0, 0, 0, loc)
	until := time.Date(ey, em, ed, 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return !now.Before(from) && now.Before(until)
}

// Position maps an event onto the grid that starts at rangeStart.
func Position(e Event, rangeStart time.Time, lane int) Placement {
	return Placement{
		ColumnStart: max(1, DaysBetween(rangeStart, e.Start)+1),
		ColumnSpan:  max(1, DaysBetween(e.Start, e.End)+1),
		Lane:        lane,
	}
}

// Compute lays out events for display on the given day.
//
// By default the first malformed event aborts the computation with a
// *ValidationError. With WithSkipInvalid, malformed events are left out of
// every stage and listed in Layout.Rejected instead.
func Compute(events []Event, today time.Time, opts ...Option) (*Layout, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	valid, rejected, err := validate(events, o.skipInvalid)
	if err != nil {
		return nil, err
	}

	rng := VisibleRange(valid, today)
	lanes := AssignLanes(valid)

	layout := &Layout{
		Range:     rng,
		Lanes:     lanes,
		Positions: make(map[string]Placement, len(valid)),
		Rows:      make([]Row, 0),
		Rejected:  rejected,
	}

	for _, group := range groupByCategory(valid) {
		catLanes := lanes[group.category]
		row := Row{
			Category: group.category,
			Lanes:    LaneCount(group.events, catLanes),
			EventIDs: make([]string, 0, len(group.events)),
		}
		for _, ev := range sortByStart(group.events) {
			layout.Positions[ev.ID] = Position(ev, rng.Start, catLanes[ev.ID])
			row.EventIDs = append(row.EventIDs, ev.ID)
		}
		layout.Rows = append(layout.Rows, row)
	}

	return layout, nil
}

// Option configures Compute.
type Option func(*options)

type options struct {
	skipInvalid bool
}

// WithSkipInvalid makes Compute drop malformed events and report them in
// Layout.Rejected rather than failing.
func WithSkipInvalid() Option {
	return func(o *options) {
		o.skipInvalid = true
	}
}
