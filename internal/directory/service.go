package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "hackcal/internal/log"
	"hackcal/internal/model"
	"hackcal/internal/store"
	"hackcal/internal/timeline"
)

// maxSlugAttempts is how many numbered suffixes Submit tries before falling
// back to a random one.
const maxSlugAttempts = 20

// Service combines stored listings with listings imported from feeds.
type Service struct {
	store store.Store
	now   func() time.Time

	mu   sync.RWMutex
	feed []model.Hackathon
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService returns a Service over st.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFeedEvents replaces the imported listings.
func (s *Service) SetFeedEvents(list []model.Hackathon) {
	cp := make([]model.Hackathon, len(list))
	copy(cp, list)

	s.mu.Lock()
	s.feed = cp
	s.mu.Unlock()
}

func (s *Service) feedEvents() []model.Hackathon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feed
}

// approved returns every displayed listing: stored rows first, then feed
// imports.
func (s *Service) approved(ctx context.Context) ([]model.Hackathon, error) {
	rows, err := s.store.List(ctx, store.ListOptions{})
	if err != nil {
		return nil, err
	}
	feed := s.feedEvents()
	out := make([]model.Hackathon, 0, len(rows)+len(feed))
	out = append(out, rows...)
	out = append(out, feed...)
	return out, nil
}

// List returns approved listings matching q.
func (s *Service) List(ctx context.Context, q Query) ([]model.Hackathon, error) {
	all, err := s.approved(ctx)
	if err != nil {
		return nil, fmt.Errorf("list hackathons: %w", err)
	}
	return Apply(all, q), nil
}

// AllTags returns every tag used by approved listings.
func (s *Service) AllTags(ctx context.Context) ([]string, error) {
	all, err := s.approved(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return Tags(all), nil
}

// Get returns the approved listing with the given slug. Hidden submissions
// are reported as store.ErrNotFound.
func (s *Service) Get(ctx context.Context, slug string) (*model.Hackathon, error) {
	h, err := s.store.GetBySlug(ctx, slug)
	switch {
	case err == nil && h.Display:
		return h, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("get hackathon: %w", err)
	}

	for _, f := range s.feedEvents() {
		if f.Slug == slug {
			return &f, nil
		}
	}
	return nil, store.ErrNotFound
}

// Submit validates sub and stores it as a hidden listing. Validation
// failures are returned as *model.FieldError.
func (s *Service) Submit(ctx context.Context, sub model.Submission) (*model.Hackathon, error) {
	h, err := sub.Hackathon(s.now())
	if err != nil {
		return nil, err
	}
	if h.Slug == "" {
		h.Slug = "hackathon"
	}

	slug, err := s.uniqueSlug(ctx, h.Slug)
	if err != nil {
		return nil, err
	}
	h.Slug = slug

	saved, err := s.store.Insert(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("submit hackathon: %w", err)
	}
	appLog.Info("hackathon submitted", "id", saved.ID, "slug", saved.Slug)
	return saved, nil
}

func (s *Service) uniqueSlug(ctx context.Context, base string) (string, error) {
	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		taken, err := s.slugTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(i)
	}
	return base + "-" + uuid.NewString()[:8], nil
}

func (s *Service) slugTaken(ctx context.Context, slug string) (bool, error) {
	_, err := s.store.GetBySlug(ctx, slug)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
	default:
		return false, fmt.Errorf("check slug: %w", err)
	}
	for _, f := range s.feedEvents() {
		if f.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

// Pending lists submissions awaiting approval.
func (s *Service) Pending(ctx context.Context) ([]model.Hackathon, error) {
	rows, err := s.store.List(ctx, store.ListOptions{HiddenOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return Apply(rows, Query{}), nil
}

// Approve makes a submission public.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*model.Hackathon, error) {
	h, err := s.store.SetDisplay(ctx, id, true)
	if err != nil {
		return nil, fmt.Errorf("approve %s: %w", id, err)
	}
	appLog.Info("hackathon approved", "id", id, "slug", h.Slug)
	return h, nil
}

// Reject deletes a submission.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("reject %s: %w", id, err)
	}
	appLog.Info("hackathon rejected", "id", id)
	return nil
}

// ErrNoHistory is returned by History when the store keeps no change log.
var ErrNoHistory = errors.New("store keeps no history")

// History returns the most recent store changes, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]store.Change, error) {
	a, ok := s.store.(store.Auditor)
	if !ok {
		return nil, ErrNoHistory
	}
	changes, err := a.History(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return changes, nil
}

// Timeline is the grid for approved listings plus the listings themselves,
// keyed by the event IDs used in the layout.
type Timeline struct {
	Layout     *timeline.Layout
	Hackathons map[string]model.Hackathon
}

// Timeline lays out every approved listing for the given day. Rows that
// cannot be laid out are logged and left out rather than failing the page.
func (s *Service) Timeline(ctx context.Context, today time.Time) (*Timeline, error) {
	all, err := s.approved(ctx)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	// Rows appear in order of each platform's earliest listing.
	all = Apply(all, Query{})

	events := model.TimelineEvents(all)
	layout, err := timeline.Compute(events, today, timeline.WithSkipInvalid())
	if err != nil {
		return nil, err
	}
	for _, rej := range layout.Rejected {
		appLog.Warn("timeline: listing skipped", "id", rej.EventID, "reason", rej.Reason)
	}

	byID := make(map[string]model.Hackathon, len(all))
	for i, ev := range events {
		if !ev.Placeable() {
			continue
		}
		if _, dup := byID[ev.ID]; !dup {
			byID[ev.ID] = all[i]
		}
	}
	return &Timeline{Layout: layout, Hackathons: byID}, nil
}
