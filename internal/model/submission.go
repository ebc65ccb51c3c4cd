package model

import (
	"bytes"
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Submission is the payload of the "request a hackathon" form.
type Submission struct {
	Name        string      `json:"name"`
	Location    string      `json:"location"`
	Platform    string      `json:"platform"`
	StartDate   string      `json:"start_date"`
	EndDate     string      `json:"end_date"`
	PrizePool   LooseNumber `json:"prize_pool"`
	WebsiteURL  string      `json:"website_url"`
	BannerImage string      `json:"banner_image"`
	Tags        TagList     `json:"tags"`
}

// LooseNumber holds a JSON number or a numeric string as text. Forms send
// either, and an empty string means "not given".
type LooseNumber string

func (n *LooseNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*n = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = LooseNumber(strings.TrimSpace(s))
	default:
		*n = LooseNumber(b)
	}
	return nil
}

// TagList accepts either a JSON array of strings or a single comma-separated
// string.
type TagList []string

func (t *TagList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = SplitTags(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*t = cleanTags(list)
	return nil
}

// SplitTags splits a comma-separated tag string, trimming each tag and
// dropping empties.
func SplitTags(s string) []string {
	return cleanTags(strings.Split(s, ","))
}

func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, tag := range in {
		if tag = cleanText(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// Validate checks the submission and returns the first problem as a
// *FieldError.
func (s *Submission) Validate() error {
	_, err := s.parse()
	return err
}

// Accepted event years.
const (
	minYear = 1970
	maxYear = 2100
)

type parsedSubmission struct {
	start, end Date
	prize      *float64
}

func (s *Submission) parse() (*parsedSubmission, error) {
	if utf8.RuneCountInString(cleanText(s.Name)) < 2 {
		return nil, &FieldError{"name", "Name must be at least 2 characters."}
	}
	if utf8.RuneCountInString(cleanText(s.Location)) < 2 {
		return nil, &FieldError{"location", "Location must be at least 2 characters."}
	}

	start, err := ParseDate(s.StartDate)
	if err != nil {
		return nil, &FieldError{"start_date", "Invalid start date."}
	}
	end, err := ParseDate(s.EndDate)
	if err != nil {
		return nil, &FieldError{"end_date", "Invalid end date."}
	}
	if y := start.Year(); y < minYear || y > maxYear {
		return nil, &FieldError{"start_date", "Start date is out of range."}
	}
	if y := end.Year(); y < minYear || y > maxYear {
		return nil, &FieldError{"end_date", "End date is out of range."}
	}
	if end.Before(start.Time) {
		return nil, &FieldError{"end_date", "End date must not be before start date."}
	}

	p := &parsedSubmission{start: start, end: end}

	if raw := strings.TrimSpace(string(s.PrizePool)); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &FieldError{"prize_pool", "Prize pool must be a valid number."}
		}
		if v < 0 {
			return nil, &FieldError{"prize_pool", "Prize pool must not be negative."}
		}
		if v == 0 {
			v = 0 // -0
		}
		p.prize = &v
	}

	if raw := strings.TrimSpace(s.WebsiteURL); raw != "" && !isHTTPURL(raw) {
		return nil, &FieldError{"website_url", "Invalid URL."}
	}
	if raw := strings.TrimSpace(s.BannerImage); raw != "" && !isHTTPURL(raw) {
		return nil, &FieldError{"banner_image", "Invalid URL."}
	}

	return p, nil
}

// cleanText trims s and puts it in NFC form, so visually equal names compare
// and count the same.
func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Hackathon validates s and builds a hidden listing awaiting approval. The
// slug is derived from the name; callers resolve collisions.
func (s *Submission) Hackathon(now time.Time) (*Hackathon, error) {
	p, err := s.parse()
	if err != nil {
		return nil, err
	}

	tags := []string(s.Tags)
	if tags == nil {
		tags = []string{}
	}

	return &Hackathon{
		ID:          uuid.New(),
		Name:        cleanText(s.Name),
		Location:    cleanText(s.Location),
		Platform:    cleanText(s.Platform),
		StartDate:   p.start,
		EndDate:     p.end,
		PrizePool:   p.prize,
		WebsiteURL:  strings.TrimSpace(s.WebsiteURL),
		BannerImage: strings.TrimSpace(s.BannerImage),
		Tags:        tags,
		Slug:        Slugify(cleanText(s.Name)),
		Display:     false,
		CreatedAt:   now.UTC(),
	}, nil
}
