package web

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"hackcal/internal/directory"
	"hackcal/internal/ics"
	appLog "hackcal/internal/log"
	"hackcal/internal/model"
	"hackcal/internal/timeline"
)

// otherCategory labels the row of listings without a platform.
const otherCategory = "Other"

// Day column width bounds for the HTML grid, in pixels.
const (
	defaultCellPx = 28
	minCellPx     = 8
	maxCellPx     = 64
)

// timelineView is both the /api/timeline response and the template data
// for /timeline.
type timelineView struct {
	Today    model.Date                  `json:"today"`
	Range    timeline.Range              `json:"range"`
	Rows     []timelineRow               `json:"rows"`
	Months   []monthLabel                `json:"months"`
	Rejected []*timeline.ValidationError `json:"rejected,omitempty"`

	// TodayColumn is the 1-based grid column of today.
	TodayColumn int `json:"today_column"`
	CellPx      int `json:"-"`
}

type timelineRow struct {
	Category string          `json:"category"`
	Label    string          `json:"label"`
	Style    string          `json:"style"`
	Lanes    int             `json:"lanes"`
	Events   []timelineEvent `json:"events"`
}

type timelineEvent struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Slug      string             `json:"slug"`
	StartDate model.Date         `json:"start_date"`
	EndDate   model.Date         `json:"end_date"`
	PrizePool *float64           `json:"prize_pool"`
	Tags      []string           `json:"tags"`
	Placement timeline.Placement `json:"placement"`
	Live      bool               `json:"live"`
}

// monthLabel is a header cell spanning the visible days of one month.
type monthLabel struct {
	Name        string `json:"name"`
	ColumnStart int    `json:"column_start"`
	ColumnSpan  int    `json:"column_span"`
}

var templateFuncs = template.FuncMap{
	"prize": model.FormatPrize,
	"add":   func(a, b int) int { return a + b },
}

// buildTimeline lays out the approved listings for now.
func (s *Server) buildTimeline(r *http.Request, now time.Time) (*timelineView, error) {
	tl, err := s.svc.Timeline(r.Context(), now)
	if err != nil {
		return nil, err
	}
	layout := tl.Layout

	view := &timelineView{
		Today:       model.DateOf(now),
		Range:       layout.Range,
		Rows:        make([]timelineRow, 0, len(layout.Rows)),
		Months:      monthLabels(layout.Range),
		Rejected:    layout.Rejected,
		TodayColumn: timeline.DaysBetween(layout.Range.Start, now) + 1,
	}
	for _, row := range layout.Rows {
		label := row.Category
		if label == "" {
			label = otherCategory
		}
		vr := timelineRow{
			Category: row.Category,
			Label:    label,
			Style:    s.cfg.Style(row.Category),
			Lanes:    row.Lanes,
			Events:   make([]timelineEvent, 0, len(row.EventIDs)),
		}
		for _, id := range row.EventIDs {
			h := tl.Hackathons[id]
			ev := h.TimelineEvent()
			vr.Events = append(vr.Events, timelineEvent{
				ID:        id,
				Name:      h.Name,
				Slug:      h.Slug,
				StartDate: h.StartDate,
				EndDate:   h.EndDate,
				PrizePool: h.PrizePool,
				Tags:      h.Tags,
				Placement: layout.Positions[id],
				Live:      timeline.LiveAt(ev, now),
			})
		}
		view.Rows = append(view.Rows, vr)
	}
	return view, nil
}

// monthLabels splits the visible range into per-month header cells.
func monthLabels(rng timeline.Range) []monthLabel {
	var out []monthLabel
	for i, day := range rng.Days() {
		if i == 0 || day.Day() == 1 {
			out = append(out, monthLabel{
				Name:        day.Format("Jan 2006"),
				ColumnStart: i + 1,
			})
		}
		out[len(out)-1].ColumnSpan++
	}
	return out
}

// handleTimelineJSON returns the grid layout with a style token per row.
func (s *Server) handleTimelineJSON(w http.ResponseWriter, r *http.Request) {
	const key = "timeline"
	if body, ok := s.cached(key); ok {
		writeJSON(w, http.StatusOK, body)
		return
	}

	view, err := s.buildTimeline(r, s.today())
	if err != nil {
		appLog.Error("api timeline: layout failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build timeline")
		return
	}
	s.remember(key, view)
	writeJSON(w, http.StatusOK, view)
}

// handleTimelinePage renders the grid as HTML.
//
// GET /timeline?cell=28
//   - cell: day column width in pixels (8..64)
func (s *Server) handleTimelinePage(w http.ResponseWriter, r *http.Request) {
	view, err := s.buildTimeline(r, s.today())
	if err != nil {
		appLog.Error("timeline page: layout failed", err)
		http.Error(w, "failed to build timeline", http.StatusInternalServerError)
		return
	}
	view.CellPx = min(max(parseIntDefault(r.URL.Query().Get("cell"), defaultCellPx), minCellPx), maxCellPx)

	var buf bytes.Buffer
	if err := s.tpl.ExecuteTemplate(&buf, "timeline.html", view); err != nil {
		appLog.Error("timeline page: render failed", err)
		http.Error(w, "failed to render timeline", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// handleCalendar serves approved listings as an iCalendar feed.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.List(r.Context(), directory.Query{})
	if err != nil {
		appLog.Error("calendar: list failed", err)
		http.Error(w, "failed to load hackathons", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	err = ics.WriteCalendar(&buf, list, ics.CalendarOptions{
		Name:        "Web3 Hackathons",
		Description: "Approved hackathons listed on hackcal",
		URL:         requestURL(r),
		Now:         s.now(),
	})
	if err != nil {
		appLog.Error("calendar: serialize failed", err)
		http.Error(w, "failed to build calendar", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="hackathons.ics"`)
	_, _ = buf.WriteTo(w)
}

// requestURL reconstructs the public URL of r.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.Path
}
