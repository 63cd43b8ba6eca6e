package web

import (
	"net/http"

	"github.com/vbonduro/foodguard/internal/summary"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	period, err := summary.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		http.Error(w, "invalid period", http.StatusBadRequest)
		return
	}
	nutrient, err := summary.ParseNutrient(r.URL.Query().Get("nutrient"))
	if err != nil {
		http.Error(w, "invalid nutrient", http.StatusBadRequest)
		return
	}

	view := s.history.Refresh(r.Context())
	sum := summary.Compute(s.history.Records(), period, nutrient, s.now(), s.history.Location(), s.sugarLimit)

	data := map[string]any{
		"Summary":   sum,
		"Recent":    view,
		"Periods":   summary.Periods,
		"Nutrients": summary.Nutrients,
		"Err":       view.Err,
		"ActiveNav": "summary",
	}
	if err := s.renderPage(w, http.StatusOK, data, "pages/summary.html"); err != nil {
		s.logger.Error("render page failed", "page", "summary", "error", err)
	}
}
