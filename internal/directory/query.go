// Package directory implements the public hackathon listing: filtering and
// sorting, submissions, approvals and the timeline view.
package directory

import (
	"sort"
	"strings"

	"hackcal/internal/model"
)

// Sort keys accepted by Query.SortBy.
const (
	SortStartDate = "start_date"
	SortPrizePool = "prize_pool"
)

// AllTags is the tag filter value that disables tag filtering.
const AllTags = "All"

// Query describes a listing request.
type Query struct {
	// Search matches a case-insensitive substring of the name.
	Search string
	// Tag keeps listings carrying exactly this tag. "" and "All" keep all.
	Tag string
	// SortBy is SortStartDate (default, ascending) or SortPrizePool
	// (descending, listings without a prize last).
	SortBy string
}

// Apply returns the listings matching q in q's order. list is not modified.
// Sorting is stable, so equal keys keep their input order.
func Apply(list []model.Hackathon, q Query) []model.Hackathon {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	tag := strings.TrimSpace(q.Tag)
	if tag == AllTags {
		tag = ""
	}

	out := make([]model.Hackathon, 0, len(list))
	for _, h := range list {
		if needle != "" && !strings.Contains(strings.ToLower(h.Name), needle) {
			continue
		}
		if tag != "" && !hasTag(h.Tags, tag) {
			continue
		}
		out = append(out, h)
	}

	switch q.SortBy {
	case SortPrizePool:
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].PrizePool, out[j].PrizePool
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			default:
				return *a > *b
			}
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].StartDate.Before(out[j].StartDate.Time)
		})
	}
	return out
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Tags returns every distinct tag in first-seen order.
func Tags(list []model.Hackathon) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, h := range list {
		for _, t := range h.Tags {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// ValidSort reports whether s is an accepted sort key. Empty is accepted
// and means SortStartDate.
func ValidSort(s string) bool {
	return s == "" || s == SortStartDate || s == SortPrizePool
}
