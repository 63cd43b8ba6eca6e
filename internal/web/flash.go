package web

import (
	"net/http"
)

const (
	flashTitle   = "alert_title"
	flashMessage = "alert_message"
)

// alert is a modal-style notice rendered by partials/alert.html.
type alert struct {
	Title   string
	Message string
}

// addFlash stores a for the next page render, surviving one redirect.
func (s *Server) addFlash(w http.ResponseWriter, r *http.Request, a alert) {
	sess, err := s.cookies.Get(r, cookieName)
	if err != nil {
		s.logger.Debug("discarding unreadable flash cookie", "error", err)
	}
	sess.AddFlash(a.Title, flashTitle)
	sess.AddFlash(a.Message, flashMessage)
	if err := sess.Save(r, w); err != nil {
		s.logger.Error("failed to save flash", "error", err)
	}
}

// popFlash returns and clears the pending alert, if any.
func (s *Server) popFlash(w http.ResponseWriter, r *http.Request) *alert {
	sess, err := s.cookies.Get(r, cookieName)
	if err != nil {
		s.logger.Debug("discarding unreadable flash cookie", "error", err)
	}
	titles := sess.Flashes(flashTitle)
	messages := sess.Flashes(flashMessage)
	if len(titles) == 0 && len(messages) == 0 {
		return nil
	}
	if err := sess.Save(r, w); err != nil {
		s.logger.Error("failed to clear flash", "error", err)
	}

	a := &alert{}
	if len(titles) > 0 {
		a.Title, _ = titles[len(titles)-1].(string)
	}
	if len(messages) > 0 {
		a.Message, _ = messages[len(messages)-1].(string)
	}
	return a
}
