package timeline

import "sort"

// categoryGroup holds the events of one category in input order.
type categoryGroup struct {
	category string
	events   []Event
}

// groupByCategory partitions events by category. Groups are ordered by the
// first appearance of their category in the input.
func groupByCategory(events []Event) []categoryGroup {
	index := make(map[string]int)
	groups := make([]categoryGroup, 0)
	for _, ev := range events {
		i, ok := index[ev.Category]
		if !ok {
			i = len(groups)
			index[ev.Category] = i
			groups = append(groups, categoryGroup{category: ev.Category})
		}
		groups[i].events = append(groups[i].events, ev)
	}
	return groups
}

// sortByStart returns a copy of events ordered by start date. Events that
// start on the same day keep their input order.
func sortByStart(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return Day(out[i].Start).Before(Day(out[j].Start))
	})
	return out
}

// AssignLanes assigns every event a lane within its category.
//
// Each category is processed on its own, in start-date order (ties keep input
// order). An event gets the smallest lane not used by any already placed
// event of the same category that overlaps it. Event IDs must be unique.
func AssignLanes(events []Event) map[string]map[string]int {
	out := make(map[string]map[string]int)
	for _, group := range groupByCategory(events) {
		out[group.category] = assignCategory(group.events)
	}
	return out
}

func assignCategory(events []Event) map[string]int {
	ordered := sortByStart(events)
	lanes := make(map[string]int, len(ordered))

	for i, ev := range ordered {
		taken := make(map[int]bool)
		for _, prev := range ordered[:i] {
			if Overlaps(ev, prev) {
				taken[lanes[prev.ID]] = true
			}
		}

		lane := 0
		for taken[lane] {
			lane++
		}
		lanes[ev.ID] = lane
	}

	return lanes
}

// LaneCount returns how many lanes a category row needs: the highest lane
// used by events plus one. Events missing from lanes count as lane 0.
// An empty category needs no lanes.
func LaneCount(events []Event, lanes map[string]int) int {
	if len(events) == 0 {
		return 0
	}
	highest := 0
	for _, ev := range events {
		if l := lanes[ev.ID]; l > highest {
			highest = l
		}
	}
	return highest + 1
}
