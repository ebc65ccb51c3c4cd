package schedule

import (
	"context"
	"net"
	"time"

	"hackcal/internal/capture"
	"hackcal/internal/directory"
	"hackcal/internal/ics"
)

// FeedRefresh imports the configured ICS feeds into the directory.
type FeedRefresh struct {
	Fetcher     *ics.Fetcher
	Sources     []ics.Source
	Location    *time.Location
	HorizonDays int
	Service     *directory.Service
	// OnUpdate runs after the imported listings were replaced, e.g. to drop
	// HTTP caches.
	OnUpdate func()
}

// Run imports every feed. When all feeds fail the previous listings are
// kept; otherwise the successful feeds replace them and the joined feed
// errors are returned.
func (r *FeedRefresh) Run(ctx context.Context) error {
	if len(r.Sources) == 0 {
		return nil
	}
	res, err := ics.Import(ctx, r.Fetcher, r.Sources, ics.ImportConfig{
		Location:    r.Location,
		HorizonDays: r.HorizonDays,
	})
	if res.Imported == 0 && err != nil {
		return err
	}

	r.Service.SetFeedEvents(res.Listings)
	if r.OnUpdate != nil {
		r.OnUpdate()
	}
	return err
}

// Snapshot captures the timeline page to a PNG file.
type Snapshot struct {
	Options capture.Options
	// Capture defaults to capture.CaptureTimelinePNG.
	Capture func(ctx context.Context, opts capture.Options) error
}

// Run takes one screenshot.
func (s *Snapshot) Run(ctx context.Context) error {
	fn := s.Capture
	if fn == nil {
		fn = capture.CaptureTimelinePNG
	}
	return fn(ctx, s.Options)
}

// LocalURL returns a URL for path on the server listening at listen. A
// wildcard host such as ":8080" or "0.0.0.0:8080" is reached via loopback.
func LocalURL(listen, path string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen + path
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + path
}
