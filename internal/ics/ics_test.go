package ics

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"hackcal/internal/config"
	"hackcal/internal/model"
)

const sampleFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:ethdam-2024\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20240601\r\n" +
	"DTEND;VALUE=DATE:20240604\r\n" +
	"SUMMARY:ETHDam\r\n" +
	"LOCATION:Amsterdam\r\n" +
	"URL:https://ethdam.com\r\n" +
	"CATEGORIES:ethereum,privacy\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:online-jam\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART:20240610T090000Z\r\n" +
	"DTEND:20240612T170000Z\r\n" +
	"SUMMARY:Online Jam\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20240615\r\n" +
	"SUMMARY:No UID\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

const recurringFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly-build\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20240105\r\n" +
	"DTEND;VALUE=DATE:20240106\r\n" +
	"RRULE:FREQ=WEEKLY;COUNT=4\r\n" +
	"EXDATE;VALUE=DATE:20240112\r\n" +
	"SUMMARY:Build Night\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly-build\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"RECURRENCE-ID;VALUE=DATE:20240119\r\n" +
	"DTSTART;VALUE=DATE:20240120\r\n" +
	"DTEND;VALUE=DATE:20240121\r\n" +
	"SUMMARY:Build Night (moved)\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

var testSource = Source{ID: "ethglobal", Name: "ETHGlobal", URL: "https://example.com/feed.ics"}

func TestParseICS(t *testing.T) {
	events, err := ParseICS(testSource, []byte(sampleFeed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events (one skipped for missing UID), got %d", len(events))
	}

	ev := events[0]
	if ev.UID != "ethdam-2024" || !ev.AllDay {
		t.Fatalf("unexpected first event %+v", ev)
	}
	if ev.URL != "https://ethdam.com" || ev.Location != "Amsterdam" {
		t.Fatalf("unexpected url/location %q %q", ev.URL, ev.Location)
	}
	if strings.Join(ev.Categories, ",") != "ethereum,privacy" {
		t.Fatalf("unexpected categories %v", ev.Categories)
	}
	if events[1].AllDay {
		t.Fatal("expected timed event")
	}
}

func TestParseICS_Empty(t *testing.T) {
	if _, err := ParseICS(testSource, nil); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestExpandAndConvert(t *testing.T) {
	events, err := ParseICS(testSource, []byte(sampleFeed))
	if err != nil {
		t.Fatal(err)
	}
	res, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list := ToHackathons(res.Occurrences)
	if len(list) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(list))
	}

	ethdam := list[0]
	if ethdam.Name != "ETHDam" || ethdam.Platform != "ETHGlobal" {
		t.Fatalf("unexpected listing %+v", ethdam)
	}
	// DTEND is exclusive: 06-01..06-04 covers three days.
	if ethdam.StartDate.String() != "2024-06-01" || ethdam.EndDate.String() != "2024-06-03" {
		t.Fatalf("unexpected dates %s..%s", ethdam.StartDate, ethdam.EndDate)
	}
	if !ethdam.Display || !ethdam.FromFeed() {
		t.Fatalf("feed listings must be displayed and marked: %+v", ethdam)
	}
	if ethdam.Slug != "ethglobal-ethdam-2024-06-01" {
		t.Fatalf("unexpected slug %q", ethdam.Slug)
	}
	if ethdam.WebsiteURL != "https://ethdam.com" {
		t.Fatalf("unexpected url %q", ethdam.WebsiteURL)
	}

	jam := list[1]
	if jam.StartDate.String() != "2024-06-10" || jam.EndDate.String() != "2024-06-12" {
		t.Fatalf("unexpected timed dates %s..%s", jam.StartDate, jam.EndDate)
	}

	// IDs are stable across imports.
	again := ToHackathons(res.Occurrences)
	if again[0].ID != ethdam.ID {
		t.Fatal("expected deterministic ids")
	}
}

func TestExpandRecurring(t *testing.T) {
	events, err := ParseICS(testSource, []byte(recurringFeed))
	if err != nil {
		t.Fatal(err)
	}
	res, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: time.UTC,
		RangeStart:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []string
	for _, o := range res.Occurrences {
		got = append(got, o.Start.Format("01-02")+" "+o.Summary)
	}
	want := []string{
		"01-05 Build Night",
		"01-20 Build Night (moved)",
		"01-26 Build Night",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected occurrences:\n got %v\nwant %v", got, want)
	}
}

func TestExpandCap(t *testing.T) {
	ev := ParsedEvent{
		Source:   testSource,
		UID:      "daily",
		Summary:  "Daily",
		Start:    time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC),
		RawRRule: "FREQ=DAILY",
	}
	res, err := ExpandOccurrences([]ParsedEvent{ev}, ExpandConfig{
		DisplayLocation:        time.UTC,
		RangeStart:             time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:               time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		MaxOccurrencesPerEvent: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Occurrences) != 10 || len(res.TruncatedEvents) != 1 {
		t.Fatalf("expected cap at 10, got %d (truncated %v)", len(res.Occurrences), res.TruncatedEvents)
	}
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	_, err := ExpandOccurrences(nil, ExpandConfig{
		RangeStart: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestWriteCalendar(t *testing.T) {
	prize := 25000.0
	list := []model.Hackathon{{
		Name:       "ETHDam",
		Location:   "Amsterdam",
		Platform:   "ETHGlobal",
		StartDate:  model.NewDate(2024, 6, 1),
		EndDate:    model.NewDate(2024, 6, 3),
		PrizePool:  &prize,
		WebsiteURL: "https://ethdam.com",
		Tags:       []string{"privacy"},
		Slug:       "ethdam",
	}}

	var buf bytes.Buffer
	err := WriteCalendar(&buf, list, CalendarOptions{
		Name: "Web3 Hackathons",
		Now:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"METHOD:PUBLISH",
		"X-PUBLISHED-TTL:PT1H",
		"UID:ethdam@hackcal",
		"DTSTART;VALUE=DATE:20240601",
		"DTEND;VALUE=DATE:20240604",
		"SUMMARY:ETHDam",
		"DTSTAMP:20240501T120000Z",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}

	// Round trip through the parser keeps the dates.
	parsed, err := ParseICS(Source{ID: "self", Name: "self"}, buf.Bytes())
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(parsed) != 1 || !parsed[0].AllDay {
		t.Fatalf("unexpected reparse %+v", parsed)
	}
}

func TestSourcesFromConfig(t *testing.T) {
	got := SourcesFromConfig([]config.FeedConfig{
		{ID: "a", Name: "Alpha", URL: "https://a.example/feed.ics"},
		{ID: "b", URL: "https://b.example/feed.ics"},
		{ID: "c"},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(got))
	}
	if got[1].Name != "b" {
		t.Fatalf("expected name fallback to id, got %q", got[1].Name)
	}
}

func TestFetchOne_ETagAndFallback(t *testing.T) {
	var calls atomic.Int32
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "t", Name: "T", URL: srv.URL + "/feed.ics"}

	res, err := f.FetchOne(context.Background(), src)
	if err != nil || res.FromCache {
		t.Fatalf("first fetch: err=%v fromCache=%v", err, res.FromCache)
	}

	res, err = f.FetchOne(context.Background(), src)
	if err != nil || !res.FromCache || len(res.Body) == 0 {
		t.Fatalf("second fetch should hit 304 cache: err=%v fromCache=%v", err, res.FromCache)
	}

	failing.Store(true)
	res, err = f.FetchOne(context.Background(), src)
	if err != nil || !res.FromCache {
		t.Fatalf("expected cached fallback on upstream failure: err=%v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 upstream calls, got %d", calls.Load())
	}
}

func TestFetchOne_NoCacheError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	if _, err := f.FetchOne(context.Background(), Source{ID: "x", URL: srv.URL}); err == nil {
		t.Fatal("expected error without cached body")
	}
}

func TestImport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	sources := []Source{
		{ID: "good", Name: "Good", URL: srv.URL},
		{ID: "bad", Name: "Bad", URL: "http://127.0.0.1:1/unreachable.ics"},
	}
	res, err := Import(context.Background(), f, sources, ImportConfig{
		Location:    time.UTC,
		Now:         time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC),
		HorizonDays: 60,
	})
	if err == nil {
		t.Fatal("expected joined error for unreachable feed")
	}
	if res.Imported != 1 {
		t.Fatalf("expected 1 imported source, got %d", res.Imported)
	}
	if len(res.Listings) != 2 || res.Listings[0].Platform != "Good" {
		t.Fatalf("expected listings from the good feed, got %+v", res.Listings)
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://calendar.example.com/private/abc123.ics?token=secret")
	if got != "https://calendar.example.com/...(redacted)" {
		t.Fatalf("unexpected redaction %q", got)
	}
	if redactURL("not a url") != "ics://...(redacted)" {
		t.Fatal("expected generic redaction")
	}
}
