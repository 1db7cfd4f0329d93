package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"kalena/internal/auth"
	"kalena/internal/config"
	"kalena/internal/ics"
	appLog "kalena/internal/log"
	"kalena/internal/model"
	"kalena/internal/session"
)

// Backend is the part of the backend API the web UI needs.
type Backend interface {
	UpcomingEvents(ctx context.Context, token string) ([]model.Event, error)
	Profile(ctx context.Context, token string) (model.User, error)
	LinkURL(provider, redirect, state string) (string, error)
}

// EventSource supplies events that do not come from the backend, such as
// subscribed ICS feeds.
type EventSource interface {
	EventsBetween(from, to time.Time, loc *time.Location) []model.Event
}

// FeedStatus is implemented by event sources that can report what they
// subscribe to, such as *ics.Feeds.
type FeedStatus interface {
	Sources() []ics.Source
	RefreshedAt() time.Time
}

// Options wires a Server. Feeds and Now are optional.
type Options struct {
	Config  *config.Config
	Backend Backend
	Feeds   EventSource
	// Now is the clock used for "today"; it defaults to time.Now.
	Now func() time.Time
}

// Server renders the month view and the session pages.
type Server struct {
	cfg     *config.Config
	backend Backend
	feeds   EventSource
	now     func() time.Time
	loc     *time.Location
	mux     *http.ServeMux
	pages   *template.Template

	// Per-token cache of backend events so paging through months does not
	// hit the backend on every request.
	eventsMu    sync.RWMutex
	eventsCache map[string]eventsCacheEntry
}

type eventsCacheEntry struct {
	events    []model.Event
	updatedAt time.Time
}

//go:embed templates/*.html
var embeddedTemplates embed.FS

//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a Server and registers its routes.
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("web: config is nil")
	}
	if opts.Backend == nil {
		return nil, errors.New("web: backend is nil")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:         opts.Config,
		backend:     opts.Backend,
		feeds:       opts.Feeds,
		now:         opts.Now,
		loc:         opts.Config.Location(),
		mux:         http.NewServeMux(),
		pages:       pages,
		eventsCache: make(map[string]eventsCacheEntry),
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the server with its middleware applied.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "user", s.cfg.BasicAuth.Username)
		h = auth.BasicAuth(h, "Kalena", s.cfg.BasicAuth.Username, s.cfg.BasicAuth.PasswordHash, "/health")
	}
	return withRequestID(withAccessLog(h))
}

func (s *Server) basicAuthEnabled() bool {
	return s.cfg.BasicAuth != nil && s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.PasswordHash != ""
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleMonth)
	s.mux.HandleFunc("GET /login", s.handleLogin)
	s.mux.HandleFunc("GET /auth/callback", s.handleAuthCallback)
	s.mux.HandleFunc("POST /logout", s.handleLogout)
	s.mux.HandleFunc("GET /profile", s.handleProfile)
	s.mux.HandleFunc("GET /api/month", s.handleAPIMonth)
	s.mux.HandleFunc("GET /api/month.ics", s.handleMonthICS)
	s.mux.HandleFunc("GET /api/day", s.handleAPIDay)
	s.mux.HandleFunc("GET /api/feeds", s.handleAPIFeeds)
	s.mux.Handle("GET /static/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static files not available", http.StatusServiceUnavailable)
		})
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// session returns the cookie-backed session of this request.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	store := session.NewCookieStore(w, r, session.CookieOptions{
		Secure: s.cfg.Session.SecureCookies,
		MaxAge: s.cfg.Session.MaxAge(),
	})
	return session.New(store)
}

// displayCap reads the optional ?cap= override of the summaries shown per
// day; missing, malformed and non-positive values use the configured cap.
func (s *Server) displayCap(r *http.Request) int {
	n := parseIntDefault(r.URL.Query().Get("cap"), s.cfg.DisplayCap)
	if n <= 0 {
		return s.cfg.DisplayCap
	}
	return n
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
