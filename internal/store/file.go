package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"hackcal/internal/model"
)

// FileStore keeps listings in a single JSON file. It is meant for local runs
// and tests; every write rewrites the whole file.
type FileStore struct {
	path string

	mu   sync.RWMutex
	rows []model.Hackathon
}

// OpenFile loads path if it exists. A missing file is an empty store; the
// file is created on the first write.
func OpenFile(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("store: file path is empty")
	}
	s := &FileStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.rows); err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", path, err)
		}
	}
	return s, nil
}

func (s *FileStore) List(_ context.Context, opts ListOptions) ([]model.Hackathon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Hackathon, 0, len(s.rows))
	for i := range s.rows {
		if opts.match(&s.rows[i]) {
			out = append(out, s.rows[i])
		}
	}
	return out, nil
}

func (s *FileStore) GetBySlug(_ context.Context, slug string) (*model.Hackathon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.rows {
		if s.rows[i].Slug == slug {
			h := s.rows[i]
			return &h, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) Insert(_ context.Context, h *model.Hackathon) (*model.Hackathon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := *h
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	for i := range s.rows {
		if s.rows[i].ID == row.ID || s.rows[i].Slug == row.Slug {
			return nil, ErrConflict
		}
	}

	rows := append(s.rows[:len(s.rows):len(s.rows)], row)
	if err := s.save(rows); err != nil {
		return nil, err
	}
	s.rows = rows
	return &row, nil
}

func (s *FileStore) SetDisplay(_ context.Context, id uuid.UUID, display bool) (*model.Hackathon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, ErrNotFound
	}

	rows := make([]model.Hackathon, len(s.rows))
	copy(rows, s.rows)
	rows[idx].Display = display
	if err := s.save(rows); err != nil {
		return nil, err
	}
	s.rows = rows
	row := rows[idx]
	return &row, nil
}

func (s *FileStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return ErrNotFound
	}

	rows := make([]model.Hackathon, 0, len(s.rows)-1)
	rows = append(rows, s.rows[:idx]...)
	rows = append(rows, s.rows[idx+1:]...)
	if err := s.save(rows); err != nil {
		return err
	}
	s.rows = rows
	return nil
}

func (s *FileStore) get(id uuid.UUID) (model.Hackathon, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx := s.indexOf(id); idx >= 0 {
		return s.rows[idx], true
	}
	return model.Hackathon{}, false
}

func (s *FileStore) indexOf(id uuid.UUID) int {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return i
		}
	}
	return -1
}

// save writes rows atomically via a temp file + rename. The previous file is
// kept as <path>.backup.
func (s *FileStore) save(rows []model.Hackathon) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".hackcal-store-*.tmp")
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if prev, err := os.ReadFile(s.path); err == nil {
		if err := os.WriteFile(s.path+".backup", prev, 0o600); err != nil {
			return fmt.Errorf("store: backup: %w", err)
		}
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}
