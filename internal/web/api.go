package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"hackcal/internal/directory"
	appLog "hackcal/internal/log"
	"hackcal/internal/model"
	"hackcal/internal/store"
)

// hackathonsResponse is the JSON response shape for GET /api/hackathons.
type hackathonsResponse struct {
	Hackathons []model.Hackathon `json:"hackathons"`
	Count      int               `json:"count"`
}

// tagsResponse lists the tag filter choices; the first entry is always
// directory.AllTags.
type tagsResponse struct {
	Tags []string `json:"tags"`
}

type historyResponse struct {
	Changes []store.Change `json:"changes"`
}

// defaultHistoryLimit caps GET /api/admin/history without ?limit.
const defaultHistoryLimit = 50

// handleList returns approved listings.
//
// GET /api/hackathons?q=&tag=&sort=
//   - q:    case-insensitive name search
//   - tag:  exact tag, "All" or empty for every tag
//   - sort: start_date (default) or prize_pool
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := directory.Query{
		Search: params.Get("q"),
		Tag:    params.Get("tag"),
		SortBy: params.Get("sort"),
	}
	if !directory.ValidSort(q.SortBy) {
		writeError(w, http.StatusBadRequest, "invalid sort: "+q.SortBy)
		return
	}

	key := "list\x00" + strings.ToLower(strings.TrimSpace(q.Search)) + "\x00" + q.Tag + "\x00" + q.SortBy
	if body, ok := s.cached(key); ok {
		writeJSON(w, http.StatusOK, body)
		return
	}

	list, err := s.svc.List(r.Context(), q)
	if err != nil {
		appLog.Error("api hackathons: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load hackathons")
		return
	}
	resp := hackathonsResponse{Hackathons: list, Count: len(list)}
	s.remember(key, resp)
	writeJSON(w, http.StatusOK, resp)
}

// handleSubmit stores a new listing awaiting approval.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmissionBytes)

	var sub model.Submission
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h, err := s.svc.Submit(r.Context(), sub)
	var fe *model.FieldError
	switch {
	case errors.As(err, &fe):
		writeError(w, http.StatusBadRequest, fe.Message)
		return
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "a hackathon with this name already exists")
		return
	case err != nil:
		appLog.Error("api hackathons: submit failed", err)
		writeError(w, http.StatusInternalServerError, "failed to submit hackathon")
		return
	}

	writeJSON(w, http.StatusCreated, h)
}

// handleDetail returns one approved listing by slug.
func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	h, err := s.svc.Get(r.Context(), slug)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, store.ErrNotFound.Error())
		return
	case err != nil:
		appLog.Error("api hackathons: get failed", err, "slug", slug)
		writeError(w, http.StatusInternalServerError, "failed to load hackathon")
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// handleTags returns the tag filter choices.
func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	const key = "tags"
	if body, ok := s.cached(key); ok {
		writeJSON(w, http.StatusOK, body)
		return
	}

	tags, err := s.svc.AllTags(r.Context())
	if err != nil {
		appLog.Error("api tags: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load tags")
		return
	}
	resp := tagsResponse{Tags: append([]string{directory.AllTags}, tags...)}
	s.remember(key, resp)
	writeJSON(w, http.StatusOK, resp)
}

// handlePending lists submissions awaiting approval. Never cached.
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Pending(r.Context())
	if err != nil {
		appLog.Error("api admin: pending failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load pending hackathons")
		return
	}
	writeJSON(w, http.StatusOK, hackathonsResponse{Hackathons: list, Count: len(list)})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h, err := s.svc.Approve(r.Context(), id)
	if err != nil {
		writeStoreError(w, "approve", err)
		return
	}
	s.Invalidate()
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Reject(r.Context(), id); err != nil {
		writeStoreError(w, "reject", err)
		return
	}
	s.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	changes, err := s.svc.History(r.Context(), limit)
	if errors.Is(err, directory.ErrNoHistory) {
		writeError(w, http.StatusNotFound, "history is not available for this store")
		return
	}
	if err != nil {
		appLog.Error("api admin: history failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Changes: changes})
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, store.ErrNotFound.Error())
		return
	}
	appLog.Error("api admin: "+op+" failed", err)
	writeError(w, http.StatusInternalServerError, "failed to "+op+" hackathon")
}
