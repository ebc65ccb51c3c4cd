package timeline

import "fmt"

// ValidationError identifies an event the layout engine cannot place.
type ValidationError struct {
	EventID string `json:"event_id"`
	Reason  string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("timeline: event %q: %s", e.EventID, e.Reason)
}

// validate splits events into valid ones and rejections. When skip is false
// the first rejection is returned as an error.
func validate(events []Event, skip bool) ([]Event, []*ValidationError, error) {
	valid := make([]Event, 0, len(events))
	var rejected []*ValidationError
	seen := make(map[string]bool, len(events))

	for _, ev := range events {
		verr := check(ev, seen)
		if verr == nil {
			seen[ev.ID] = true
			valid = append(valid, ev)
			continue
		}
		if !skip {
			return nil, nil, verr
		}
		rejected = append(rejected, verr)
	}

	return valid, rejected, nil
}

func check(ev Event, seen map[string]bool) *ValidationError {
	switch {
	case ev.ID == "":
		return &ValidationError{EventID: ev.Name, Reason: "missing id"}
	case seen[ev.ID]:
		return &ValidationError{EventID: ev.ID, Reason: "duplicate id"}
	}
	return ev.checkDates()
}

func (ev Event) checkDates() *ValidationError {
	switch {
	case ev.Start.IsZero() || ev.End.IsZero():
		return &ValidationError{EventID: ev.ID, Reason: "missing start or end date"}
	case Day(ev.Start).After(Day(ev.End)):
		return &ValidationError{EventID: ev.ID, Reason: "start date is after end date"}
	}
	return nil
}

// Placeable reports whether ev has an id and a usable date range. Of several
// placeable events sharing an id, Compute places the first.
func (ev Event) Placeable() bool {
	return ev.ID != "" && ev.checkDates() == nil
}
