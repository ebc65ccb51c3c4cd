package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"hackcal/internal/model"
	"hackcal/internal/postgrest"
)

// Supabase stores listings in a Supabase (PostgREST) table.
type Supabase struct {
	client *postgrest.Client
	path   string
}

// NewSupabase returns a store for table at the project URL.
func NewSupabase(projectURL, apiKey, table string, opts ...postgrest.Option) *Supabase {
	if table == "" {
		table = "hackathons"
	}
	return &Supabase{
		client: postgrest.New(projectURL, apiKey, opts...),
		path:   postgrest.Table(table),
	}
}

func (s *Supabase) List(ctx context.Context, opts ListOptions) ([]model.Hackathon, error) {
	q := url.Values{
		"select": {"*"},
		"order":  {"start_date.asc"},
	}
	switch {
	case opts.HiddenOnly:
		q.Set("display", postgrest.Eq("false"))
	case !opts.IncludeHidden:
		q.Set("display", postgrest.Eq("true"))
	}

	var rows []model.Hackathon
	if err := s.client.Get(ctx, s.path, q, &rows); err != nil {
		return nil, fmt.Errorf("supabase list: %w", err)
	}
	return rows, nil
}

func (s *Supabase) GetBySlug(ctx context.Context, slug string) (*model.Hackathon, error) {
	q := url.Values{
		"select": {"*"},
		"slug":   {postgrest.Eq(slug)},
		"limit":  {"1"},
	}
	var rows []model.Hackathon
	if err := s.client.Get(ctx, s.path, q, &rows); err != nil {
		return nil, fmt.Errorf("supabase get %q: %w", slug, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (s *Supabase) Insert(ctx context.Context, h *model.Hackathon) (*model.Hackathon, error) {
	var rows []model.Hackathon
	if err := s.client.Post(ctx, s.path, url.Values{"select": {"*"}}, []*model.Hackathon{h}, &rows); err != nil {
		var apiErr *postgrest.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("supabase insert: %w", err)
	}
	if len(rows) == 0 {
		return h, nil
	}
	return &rows[0], nil
}

func (s *Supabase) SetDisplay(ctx context.Context, id uuid.UUID, display bool) (*model.Hackathon, error) {
	q := url.Values{"id": {postgrest.Eq(id.String())}}
	body := map[string]bool{"display": display}

	var rows []model.Hackathon
	if err := s.client.Patch(ctx, s.path, q, body, &rows); err != nil {
		return nil, fmt.Errorf("supabase update %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (s *Supabase) Delete(ctx context.Context, id uuid.UUID) error {
	q := url.Values{"id": {postgrest.Eq(id.String())}}

	var rows []model.Hackathon
	if err := s.client.Delete(ctx, s.path, q, &rows); err != nil {
		return fmt.Errorf("supabase delete %s: %w", id, err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}
