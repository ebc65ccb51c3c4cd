package model

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ETHGlobal Bangkok", "ethglobal-bangkok"},
		{"  Solana   Breakpoint 2024 ", "solana-breakpoint-2024"},
		{"ETH_Denver!!", "eth-denver"},
		{"Café Hack", "cafe-hack"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v", d)
	}

	d, err = ParseDate("2024-06-01T23:30:00-05:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2024-06-01" {
		t.Fatalf("expected written date kept, got %s", d)
	}

	if _, err := ParseDate("June 1st"); err == nil {
		t.Fatal("expected error for free-form date")
	}
}

func TestDateJSON(t *testing.T) {
	var v struct {
		D Date  `json:"d"`
		N *Date `json:"n"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2024-02-29","n":null}`), &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.D.String() != "2024-02-29" {
		t.Fatalf("got %s", v.D)
	}
	b, err := json.Marshal(v.D)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"2024-02-29"` {
		t.Fatalf("got %s", b)
	}
}

func validSubmission() Submission {
	return Submission{
		Name:       "ETHGlobal Brussels",
		Location:   "Brussels",
		Platform:   "ETHGlobal",
		StartDate:  "2024-07-12",
		EndDate:    "2024-07-14",
		PrizePool:  "50000",
		WebsiteURL: "https://ethglobal.com/events/brussels",
		Tags:       TagList{"ethereum", "defi"},
	}
}

func TestSubmissionValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Submission)
		field  string
	}{
		{"valid", func(*Submission) {}, ""},
		{"short name", func(s *Submission) { s.Name = "E" }, "name"},
		{"short location", func(s *Submission) { s.Location = " " }, "location"},
		{"bad start", func(s *Submission) { s.StartDate = "soon" }, "start_date"},
		{"bad end", func(s *Submission) { s.EndDate = "" }, "end_date"},
		{"end before start", func(s *Submission) { s.EndDate = "2024-07-11" }, "end_date"},
		{"single day", func(s *Submission) { s.EndDate = s.StartDate }, ""},
		{"prize not a number", func(s *Submission) { s.PrizePool = "lots" }, "prize_pool"},
		{"negative prize", func(s *Submission) { s.PrizePool = "-1" }, "prize_pool"},
		{"empty prize", func(s *Submission) { s.PrizePool = "" }, ""},
		{"NaN prize", func(s *Submission) { s.PrizePool = "NaN" }, "prize_pool"},
		{"Inf prize", func(s *Submission) { s.PrizePool = "Inf" }, "prize_pool"},
		{"Infinity prize", func(s *Submission) { s.PrizePool = "-Infinity" }, "prize_pool"},
		{"overflowing prize", func(s *Submission) { s.PrizePool = "1e400" }, "prize_pool"},
		{"year too early", func(s *Submission) { s.StartDate = "0001-01-01" }, "start_date"},
		{"year too late", func(s *Submission) { s.EndDate = "9999-12-31" }, "end_date"},
		{"relative url", func(s *Submission) { s.WebsiteURL = "/events" }, "website_url"},
		{"ftp url", func(s *Submission) { s.WebsiteURL = "ftp://example.com" }, "website_url"},
		{"no url", func(s *Submission) { s.WebsiteURL = "" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSubmission()
			tt.mutate(&s)
			err := s.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FieldError, got %v", err)
			}
			if fe.Field != tt.field {
				t.Fatalf("expected field %q, got %q (%s)", tt.field, fe.Field, fe.Message)
			}
		})
	}
}

func TestSubmissionJSONLooseFields(t *testing.T) {
	body := `{
		"name": "Solana Hyperdrive",
		"location": "Online",
		"start_date": "2024-09-01",
		"end_date": "2024-10-08",
		"prize_pool": 1000000,
		"tags": "solana, , defi ,"
	}`
	var s Submission
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.PrizePool != "1000000" {
		t.Fatalf("expected numeric prize text, got %q", s.PrizePool)
	}
	if strings.Join(s.Tags, "|") != "solana|defi" {
		t.Fatalf("unexpected tags %q", s.Tags)
	}

	body = `{"prize_pool": "2500.5", "tags": ["a", " b "]}`
	s = Submission{}
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.PrizePool != "2500.5" || strings.Join(s.Tags, "|") != "a|b" {
		t.Fatalf("unexpected submission %+v", s)
	}
}

func TestSubmissionHackathon(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s := validSubmission()

	h, err := s.Hackathon(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Display {
		t.Fatal("submissions must start hidden")
	}
	if h.ID == uuid.Nil {
		t.Fatal("expected generated id")
	}
	if h.Slug != "ethglobal-brussels" {
		t.Fatalf("unexpected slug %q", h.Slug)
	}
	if h.PrizePool == nil || *h.PrizePool != 50000 {
		t.Fatalf("unexpected prize %v", h.PrizePool)
	}
	if h.Source != "" || h.FromFeed() {
		t.Fatalf("unexpected source %q", h.Source)
	}
	if !h.CreatedAt.Equal(now) {
		t.Fatalf("unexpected created_at %v", h.CreatedAt)
	}

	s.PrizePool = "-0"
	h, err = s.Hackathon(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.PrizePool == nil || math.Signbit(*h.PrizePool) {
		t.Fatalf("expected +0 prize, got %v", h.PrizePool)
	}

	s.Name = "x"
	if _, err := s.Hackathon(now); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestTimelineEvent(t *testing.T) {
	prize := 10.0
	h := Hackathon{
		ID:        uuid.MustParse("6f1c2a52-6b0e-4c1e-9d55-1b0a4f3d2e10"),
		Name:      "Chainlink Block Magic",
		Platform:  "Devfolio",
		StartDate: NewDate(2024, 5, 1),
		EndDate:   NewDate(2024, 6, 2),
		PrizePool: &prize,
		Slug:      "chainlink-block-magic",
	}
	ev := h.TimelineEvent()
	if ev.ID != h.ID.String() || ev.Category != "Devfolio" || ev.Slug != h.Slug {
		t.Fatalf("unexpected event %+v", ev)
	}
	if !ev.Start.Equal(h.StartDate.Time) || !ev.End.Equal(h.EndDate.Time) {
		t.Fatalf("unexpected dates %v..%v", ev.Start, ev.End)
	}
	if got := TimelineEvents([]Hackathon{h, h}); len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
}

func TestHackathonJSONOmitsZeroID(t *testing.T) {
	h := Hackathon{Name: "x", StartDate: NewDate(2024, 1, 1), EndDate: NewDate(2024, 1, 2)}
	b, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), `"id"`) || strings.Contains(string(b), `"created_at"`) {
		t.Fatalf("expected zero id/created_at omitted, got %s", b)
	}
	if !strings.Contains(string(b), `"start_date":"2024-01-01"`) {
		t.Fatalf("unexpected encoding %s", b)
	}
}

func TestFormatPrize(t *testing.T) {
	tests := map[float64]string{
		0:         "$0",
		999:       "$999",
		1000:      "$1,000",
		50000:     "$50,000",
		1250000.4: "$1,250,000",
	}
	for in, want := range tests {
		if got := FormatPrize(in); got != want {
			t.Errorf("FormatPrize(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestSubmissionNormalizesText(t *testing.T) {
	sub := Submission{
		Name:      "  Cafe\u0301 Hack ",
		Location:  "Zu\u0308rich",
		StartDate: "2024-07-01",
		EndDate:   "2024-07-01",
		Tags:      TagList(SplitTags(" de\u0301fi ")),
	}
	h, err := sub.Hackathon(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if h.Name != "Caf\u00e9 Hack" || h.Location != "Z\u00fcrich" {
		t.Fatalf("expected NFC names, got %q %q", h.Name, h.Location)
	}
	if h.Tags[0] != "d\u00e9fi" {
		t.Fatalf("expected NFC tag, got %q", h.Tags[0])
	}
	if h.Slug != "cafe-hack" {
		t.Fatalf("unexpected slug %q", h.Slug)
	}

	// One composed rune is still too short.
	short := Submission{Name: "e\u0301", Location: "Online", StartDate: "2024-07-01", EndDate: "2024-07-01"}
	if err := short.Validate(); err == nil {
		t.Fatal("expected single-character name to be rejected")
	}
}
