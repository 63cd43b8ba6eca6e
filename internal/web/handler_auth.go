package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vbonduro/foodguard/internal/service"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.session.Authenticated() {
		http.Redirect(w, r, "/history", http.StatusSeeOther)
		return
	}
	s.renderLogin(w, http.StatusOK, map[string]any{"Alert": s.popFlash(w, r), "Email": ""})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if err := s.auth.Login(r.Context(), email, password); err != nil {
		s.renderLogin(w, http.StatusOK, map[string]any{
			"Alert": alertFromError(err),
			"Email": email,
		})
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/history")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/history", http.StatusSeeOther)
}

func (s *Server) renderLogin(w http.ResponseWriter, status int, data map[string]any) {
	data["Authenticated"] = false
	if err := s.renderPage(w, status, data, "pages/login.html"); err != nil {
		s.logger.Error("render page failed", "page", "login", "error", err)
	}
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.renderRegister(w, http.StatusOK, map[string]any{"Email": "", "Username": ""})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	in := service.RegisterInput{
		Email:           strings.TrimSpace(r.FormValue("email")),
		Username:        strings.TrimSpace(r.FormValue("username")),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirm_password"),
	}

	if err := s.auth.Register(r.Context(), in); err != nil {
		s.renderRegister(w, http.StatusOK, map[string]any{
			"Alert":    alertFromError(err),
			"Email":    in.Email,
			"Username": in.Username,
		})
		return
	}

	s.addFlash(w, r, alert{Title: service.TitleSuccess, Message: service.MsgRegistrationComplete})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) renderRegister(w http.ResponseWriter, status int, data map[string]any) {
	data["Authenticated"] = false
	if err := s.renderPage(w, status, data, "pages/register.html"); err != nil {
		s.logger.Error("render page failed", "page", "register", "error", err)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context()); err != nil {
		http.Error(w, "failed to log out", http.StatusInternalServerError)
		s.logger.Error("logout failed", "error", err)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func alertFromError(err error) *alert {
	var ae *service.AlertError
	if errors.As(err, &ae) {
		return &alert{Title: ae.Title, Message: ae.Message}
	}
	return &alert{Title: "Error", Message: "Something went wrong. Please try again."}
}
