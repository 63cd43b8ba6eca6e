package web

import (
	"net/http"
	"strconv"
)

// historyPeriods are the filter chips shown above the list. They do not
// filter the data.
var historyPeriods = []string{"Today", "Weekly", "Monthly"}

// handleHistory renders the loading skeleton for a new fetch cycle. The page
// then requests /history/entries for that cycle.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.history.Begin()
	data := map[string]any{
		"View":      s.history.View(),
		"Periods":   historyPeriods,
		"Period":    r.URL.Query().Get("period"),
		"Query":     r.URL.Query().Get("q"),
		"ActiveNav": "history",
	}
	if err := s.renderPage(w, http.StatusOK, data, "pages/history.html", "partials/history_entries.html"); err != nil {
		s.logger.Error("render page failed", "page", "history", "error", err)
	}
}

// handleHistoryEntries fetches for the cycle named by ?gen, or a fresh cycle
// when it is absent, and returns the entries fragment.
func (s *Server) handleHistoryEntries(w http.ResponseWriter, r *http.Request) {
	gen, err := strconv.ParseUint(r.URL.Query().Get("gen"), 10, 64)
	if err != nil || gen == 0 {
		gen = s.history.Begin()
	}

	view := s.history.Load(r.Context(), gen)
	if err := s.renderPartial(w, "history_entries", view, "partials/history_entries.html"); err != nil {
		s.logger.Error("render partial failed", "error", err)
	}
}

func (s *Server) handleNutritionDetail(w http.ResponseWriter, r *http.Request) {
	record, ok := s.history.Lookup(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	data := map[string]any{"Record": record, "ActiveNav": "history"}
	if err := s.renderPage(w, http.StatusOK, data, "pages/detail.html", "partials/nutrition.html"); err != nil {
		s.logger.Error("render page failed", "page", "detail", "error", err)
	}
}
