package web

import (
	"html/template"
	"io/fs"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vbonduro/foodguard/internal/domain"
	"github.com/vbonduro/foodguard/internal/history"
	"github.com/vbonduro/foodguard/internal/photostore"
	"github.com/vbonduro/foodguard/internal/service"
)

const cookieName = "foodguard"

// authState is the subset of session.Session the server reads.
type authState interface {
	Authenticated() bool
	Account() string
}

// Deps are the collaborators a Server renders and acts on.
type Deps struct {
	Auth       *service.AuthService
	Scans      *service.ScanService
	History    *history.Composer
	Session    authState
	Photos     photostore.PhotoStore
	Templates  fs.FS
	SugarLimit float64
	// CookieSecret authenticates the flash cookie.
	CookieSecret string
}

type Server struct {
	auth       *service.AuthService
	scans      *service.ScanService
	history    *history.Composer
	session    authState
	photoStore photostore.PhotoStore
	templates  fs.FS
	cookies    *sessions.CookieStore
	sugarLimit float64
	now        func() time.Time
	mux        *http.ServeMux
	tmplFuncs  template.FuncMap
	logger     *slog.Logger
}

func NewServer(d Deps, logger *slog.Logger) *Server {
	cookies := sessions.NewCookieStore([]byte(d.CookieSecret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		auth:       d.Auth,
		scans:      d.Scans,
		history:    d.History,
		session:    d.Session,
		photoStore: d.Photos,
		templates:  d.Templates,
		cookies:    cookies,
		sugarLimit: d.SugarLimit,
		now:        time.Now,
		mux:        http.NewServeMux(),
		logger:     logger,
	}
	s.tmplFuncs = template.FuncMap{
		"grams":      grams,
		"amount":     func(v *float64) string { return grams(domain.Amount(v)) },
		"formatTime": s.formatTime,
		"barHeight":  barHeight,
		"inc":        func(i int) int { return i + 1 },
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("GET /register", s.handleRegisterPage)
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("POST /logout", s.handleLogout)
	s.mux.HandleFunc("GET /history", s.requireAuth(s.handleHistory))
	s.mux.HandleFunc("GET /history/entries", s.requireAuth(s.handleHistoryEntries))
	s.mux.HandleFunc("GET /nutritions/{id}", s.requireAuth(s.handleNutritionDetail))
	s.mux.HandleFunc("GET /scan", s.requireAuth(s.handleScanPage))
	s.mux.HandleFunc("POST /scan", s.requireAuth(s.handleScan))
	s.mux.HandleFunc("GET /scans/{id}", s.requireAuth(s.handleScanDetail))
	s.mux.HandleFunc("POST /scans/{id}/delete", s.requireAuth(s.handleDeleteScan))
	s.mux.HandleFunc("GET /photos/{key...}", s.requireAuth(s.handleGetPhoto))
	s.mux.HandleFunc("GET /summary", s.requireAuth(s.handleSummary))
	s.mux.HandleFunc("GET /education", s.requireAuth(s.handleEducation))
	s.mux.HandleFunc("GET /profile", s.requireAuth(s.handleProfile))
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if s.session.Authenticated() {
		http.Redirect(w, r, "/history", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// requireAuth sends logged-out visitors to the login screen. htmx requests
// get an HX-Redirect so the whole page navigates.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.session.Authenticated() {
			next(w, r)
			return
		}
		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", "/login")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' 'unsafe-inline' https://unpkg.com; "+
				"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; "+
				"font-src https://fonts.gstatic.com; "+
				"img-src 'self' data:; "+
				"connect-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}

// renderPage parses base.html with files and executes "base".
func (s *Server) renderPage(w http.ResponseWriter, status int, data map[string]any, files ...string) error {
	if _, ok := data["Authenticated"]; !ok {
		data["Authenticated"] = s.session.Authenticated()
	}
	if _, ok := data["ActiveNav"]; !ok {
		data["ActiveNav"] = ""
	}
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, append([]string{"base.html", "partials/alert.html"}, files...)...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return tmpl.ExecuteTemplate(w, "base", data)
}

// renderPartial executes the {{define name}} block found in files.
func (s *Server) renderPartial(w http.ResponseWriter, name string, data any, files ...string) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, files...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tmpl.ExecuteTemplate(w, name, data)
}

func (s *Server) formatTime(createdAt string) string {
	formatted, err := history.FormatTime(createdAt, s.history.Location())
	if err != nil {
		return ""
	}
	return formatted
}

// grams renders a nutrient quantity with at most one decimal.
func grams(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

// barHeight scales v against peak to a percentage for chart bars.
func barHeight(v, peak float64) int {
	if peak <= 0 || v <= 0 {
		return 0
	}
	return int(math.Round(v / peak * 100))
}
