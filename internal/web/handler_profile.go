package web

import (
	"net/http"
	"strings"

	"github.com/vbonduro/foodguard/internal/education"
)

// settingGroups are the entries listed on the profile screen. They are not
// links yet.
var settingGroups = []struct {
	Title string
	Items []string
}{
	{Title: "General Settings", Items: []string{"Account Settings", "Privacy & Security", "Consumption Reminders", "Diet & Allergy Preferences"}},
	{Title: "Help and Settings", Items: []string{"Help Center", "Terms & Conditions", "Consumption History", "Synchronization Settings"}},
}

func (s *Server) handleEducation(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	courses := education.Search(query)

	if r.Header.Get("HX-Request") == "true" {
		if err := s.renderPartial(w, "courses", courses, "pages/education.html"); err != nil {
			s.logger.Error("render partial failed", "error", err)
		}
		return
	}

	data := map[string]any{"Courses": courses, "Query": query, "ActiveNav": "education"}
	if err := s.renderPage(w, http.StatusOK, data, "pages/education.html"); err != nil {
		s.logger.Error("render page failed", "page", "education", "error", err)
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	scans, err := s.scans.ListScans(r.Context())
	if err != nil {
		s.logger.Error("list scans failed", "error", err)
	}

	data := map[string]any{
		"Account":   s.session.Account(),
		"ScanCount": len(scans),
		"Groups":    settingGroups,
		"ActiveNav": "profile",
	}
	if err := s.renderPage(w, http.StatusOK, data, "pages/profile.html"); err != nil {
		s.logger.Error("render page failed", "page", "profile", "error", err)
	}
}
