package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"sync"
	"time"

	"hackcal/internal/auth"
	"hackcal/internal/config"
	"hackcal/internal/directory"
	appLog "hackcal/internal/log"
)

// listCacheTTL bounds how long a listing response is served from memory.
const listCacheTTL = 30 * time.Second

// maxSubmissionBytes caps the size of a submission body.
const maxSubmissionBytes = 64 << 10

// Server serves the public API, the timeline page, the calendar feed and,
// when credentials are configured, the admin endpoints.
type Server struct {
	cfg *config.Config
	svc *directory.Service
	mux *http.ServeMux
	now func() time.Time
	tpl *template.Template

	// In-memory cache for listing responses keyed by the normalized query,
	// so repeated page loads don't hit the backend every time.
	cacheMu sync.RWMutex
	cache   map[string]listCacheEntry
}

type listCacheEntry struct {
	body      any
	updatedAt time.Time
}

//go:embed templates
var embeddedTemplates embed.FS

// Option configures a Server.
type Option func(*Server)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, svc *directory.Service, opts ...Option) *Server {
	s := &Server{
		cfg:   cfg,
		svc:   svc,
		mux:   http.NewServeMux(),
		now:   time.Now,
		tpl:   template.Must(template.New("").Funcs(templateFuncs).ParseFS(embeddedTemplates, "templates/*.html")),
		cache: make(map[string]listCacheEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Invalidate drops cached listing responses. Call it whenever the set of
// approved listings changes outside the server, e.g. after a feed refresh.
func (s *Server) Invalidate() {
	s.cacheMu.Lock()
	clear(s.cache)
	s.cacheMu.Unlock()
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/hackathons", s.handleList)
	s.mux.HandleFunc("POST /api/hackathons", s.handleSubmit)
	s.mux.HandleFunc("GET /api/hackathons/{slug}", s.handleDetail)
	s.mux.HandleFunc("GET /api/tags", s.handleTags)
	s.mux.HandleFunc("GET /api/timeline", s.handleTimelineJSON)

	s.mux.HandleFunc("GET /timeline", s.handleTimelinePage)
	s.mux.HandleFunc("GET /calendar.ics", s.handleCalendar)
	s.mux.HandleFunc("GET /snapshot.png", s.handleSnapshot)

	if !s.cfg.AdminEnabled() {
		appLog.Info("admin endpoints disabled (no admin credentials configured)")
		return
	}
	guard := auth.Middleware(s.cfg.Admin.Username, s.cfg.Admin.PasswordHash)
	s.mux.Handle("GET /api/admin/pending", guard(http.HandlerFunc(s.handlePending)))
	s.mux.Handle("POST /api/admin/hackathons/{id}/approve", guard(http.HandlerFunc(s.handleApprove)))
	s.mux.Handle("POST /api/admin/hackathons/{id}/reject", guard(http.HandlerFunc(s.handleReject)))
	s.mux.Handle("GET /api/admin/history", guard(http.HandlerFunc(s.handleHistory)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleSnapshot serves the last captured timeline PNG from disk.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Snapshot.Output == "" {
		http.NotFound(w, r)
		return
	}
	// http.ServeFile answers 404 for a missing file.
	http.ServeFile(w, r, s.cfg.Snapshot.Output)
}

// cached returns a fresh cached body for key, if any.
func (s *Server) cached(key string) (any, bool) {
	s.cacheMu.RLock()
	e, ok := s.cache[key]
	s.cacheMu.RUnlock()
	if !ok || s.now().Sub(e.updatedAt) >= listCacheTTL {
		return nil, false
	}
	return e.body, true
}

func (s *Server) remember(key string, body any) {
	s.cacheMu.Lock()
	s.cache[key] = listCacheEntry{body: body, updatedAt: s.now()}
	s.cacheMu.Unlock()
}

// today is the current instant in the configured timezone.
func (s *Server) today() time.Time {
	return s.now().In(resolveLocationOrLocal(s.cfg.Timezone))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

