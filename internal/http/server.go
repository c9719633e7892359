// Package http serves the web UI: login, weekly check-in form, trend
// dashboards and question administration.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"checkin/internal/auth"
	"checkin/internal/cache"
	"checkin/internal/core"
	applog "checkin/internal/log"
	"checkin/internal/middleware/ratelimit"
	"checkin/internal/middleware/security"
	"checkin/internal/middleware/trace"
	"checkin/internal/services"
	appweb "checkin/web"
)

// Store is the storage surface the handlers need.
type Store interface {
	Ping(ctx context.Context) error

	GetUserByID(ctx context.Context, id int64) (core.User, error)
	GetUserBySlug(ctx context.Context, slug string) (core.User, error)
	ListUsers(ctx context.Context) ([]core.User, error)

	CreateQuestion(ctx context.Context, text string, kind core.QuestionKind) (core.Question, error)
	ListQuestions(ctx context.Context) ([]core.Question, error)
	FirstScaleQuestion(ctx context.Context) (core.Question, error)
	DeleteQuestion(ctx context.Context, id int64) error

	GetCheckIn(ctx context.Context, id int64) (core.CheckInWithAnswers, error)
	ListCheckInsWithAnswers(ctx context.Context, userID int64) ([]core.CheckInWithAnswers, error)
	LatestCheckIn(ctx context.Context, userID int64) (core.CheckInWithAnswers, error)
	WeekStarts(ctx context.Context, userID int64) ([]time.Time, error)
}

// Options configures the server.
type Options struct {
	Addr      string
	AdminSlug string
}

type Server struct {
	http.Server
	templates *template.Template
	store     Store
	checkins  *services.CheckInService
	sessions  *auth.SessionManager
	adminSlug string
	logger    *applog.Logger

	seriesCache cache.Cache[core.QuestionSeries]
	coupleCache cache.Cache[core.CoupleSeries]
	caches      *cache.Manager

	loginLimiter *ratelimit.Limiter
	writeLimiter *ratelimit.Limiter
	ips          *security.IPResolver

	shutdownOnce sync.Once
}

// NewServer wires routes, templates and middleware.
func NewServer(opts Options, store Store, checkins *services.CheckInService, sessions *auth.SessionManager, logger *applog.Logger) (*Server, error) {
	mux := http.NewServeMux()

	seriesCache := cache.NewLRU[core.QuestionSeries](100, 5*time.Minute)
	coupleCache := cache.NewLRU[core.CoupleSeries](50, 5*time.Minute)

	s := &Server{
		Server: http.Server{
			Addr:         opts.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		store:     store,
		checkins:  checkins,
		sessions:  sessions,
		adminSlug: opts.AdminSlug,
		logger:    logger,

		seriesCache: seriesCache,
		coupleCache: coupleCache,
		caches:      cache.NewManager(logger.WithComponent(applog.ComponentCache)),

		loginLimiter: ratelimit.NewLimiter(ratelimit.Config{Limit: 10, Interval: time.Minute}),
		writeLimiter: ratelimit.NewLimiter(ratelimit.Config{Limit: 60, Interval: time.Minute}),
		ips:          security.NewIPResolver(),
	}

	s.caches.Register(seriesCache)
	s.caches.Register(coupleCache)
	s.caches.StartCleanup(10 * time.Minute)

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = t

	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static fs: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	loginGuard := s.loginLimiter.Middleware(s.ips.ClientIP, nil)
	mux.Handle("/login", loginGuard(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("/logout", s.handleLogout)

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/checkin", s.requireUser(s.handleCheckIn))
	mux.HandleFunc("/dashboard", s.requireUser(s.handleDashboard))
	mux.HandleFunc("/week/", s.requireUser(s.handleWeekDetail))
	mux.HandleFunc("/couple", s.requireUser(s.handleCouple))
	mux.HandleFunc("/admin/questions", s.requireAdmin(s.handleAdminQuestions))
	mux.HandleFunc("/admin/questions/delete", s.requireAdmin(s.handleAdminDeleteQuestion))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(logger.WithComponent(applog.ComponentHTTP), s.ips.ClientIP)
	writeGuard := s.postOnly(s.writeLimiter.Middleware(s.ips.ClientIP, nil))
	s.Server.Handler = tracer.Middleware(headers.Middleware(writeGuard(mux)))

	return s, nil
}

// postOnly applies a rate-limit guard to POST requests and passes
// everything else straight through.
func (s *Server) postOnly(guard func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limited := guard(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				limited.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.loginLimiter.Stop()
		s.writeLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.ErrorContext(ctx, "readiness check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleIndex sends visitors to their dashboard, or to login.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if _, err := s.sessions.FromRequest(r); err == nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
