// Package store persists hackathon listings.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"hackcal/internal/config"
	"hackcal/internal/model"
)

var (
	// ErrNotFound is returned when no row matches a slug or id.
	ErrNotFound = errors.New("hackathon not found")
	// ErrConflict is returned when an insert would duplicate an id or slug.
	ErrConflict = errors.New("hackathon already exists")
)

// ListOptions filters List by approval state. The zero value lists approved
// rows only.
type ListOptions struct {
	IncludeHidden bool
	HiddenOnly    bool
}

func (o ListOptions) match(h *model.Hackathon) bool {
	switch {
	case o.HiddenOnly:
		return !h.Display
	case o.IncludeHidden:
		return true
	default:
		return h.Display
	}
}

// Store is the persistence boundary for listings.
type Store interface {
	List(ctx context.Context, opts ListOptions) ([]model.Hackathon, error)
	// GetBySlug returns the row with the given slug regardless of its
	// approval state.
	GetBySlug(ctx context.Context, slug string) (*model.Hackathon, error)
	Insert(ctx context.Context, h *model.Hackathon) (*model.Hackathon, error)
	SetDisplay(ctx context.Context, id uuid.UUID, display bool) (*model.Hackathon, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Open returns the backend selected by cfg.Store.Backend.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Store.Backend {
	case config.BackendSupabase:
		sc := cfg.Store.Supabase
		if sc.URL == "" || sc.APIKey == "" {
			return nil, errors.New("store: supabase backend needs url and api_key")
		}
		return NewSupabase(sc.URL, sc.APIKey, sc.Table), nil
	case config.BackendFile, "":
		fs, err := OpenFile(cfg.Store.File)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case config.BackendGit:
		gc := cfg.Store.Git
		gs, err := OpenGit(gc.Dir, gc.AuthorName, gc.AuthorEmail)
		if err != nil {
			return nil, err
		}
		return gs, nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Store.Backend)
	}
}
