// Package web provides the HTTP server for the company dashboard.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/crm/internal/clock"
	"github.com/JonMunkholm/crm/internal/config"
	"github.com/JonMunkholm/crm/internal/metrics"
	"github.com/JonMunkholm/crm/internal/source"
	crmmw "github.com/JonMunkholm/crm/internal/web/middleware"
)

// Options configures a Server.
type Options struct {
	Config  *config.Config
	Source  source.Source
	Metrics *metrics.Metrics // nil disables /metrics and request metrics
	Clock   clock.Clock
}

// Server is the HTTP server for the dashboard.
type Server struct {
	src      source.Source
	cfg      *config.Config
	metrics  *metrics.Metrics
	sessions *sessionStore
	limiter  *rateLimiter
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new Server instance.
func NewServer(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	s := &Server{
		src:      opts.Source,
		cfg:      opts.Config,
		metrics:  opts.Metrics,
		sessions: newSessionStore(opts.Source, opts.Clock, opts.Config.Grid),
		limiter:  newRateLimiter(opts.Clock, opts.Config.Security.RateLimit, time.Minute),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(crmmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(crmmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
	s.router.Use(s.limiter.middleware)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.With(crmmw.APIKeyAuth(&s.cfg.Security)).Handle(s.cfg.Metrics.Path, s.metrics.Handler())
	}

	// Pages and htmx partials share per-browser view state.
	s.router.Group(func(r chi.Router) {
		r.Use(s.withSession)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/companies", http.StatusFound)
		})
		r.Get("/notification", s.handleNotification)

		r.Route("/companies", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Post("/", s.handleCreate)
			r.Get("/new", s.handleNewForm)
			r.Post("/validate", s.handleValidateField)
			r.Get("/search", s.handleSearch)

			r.Get("/grid", s.handleGrid)
			r.Post("/grid/confirm/cancel", s.handleCancelRowDelete)
			r.Get("/grid/rows/{id}", s.handleRow)
			r.Post("/grid/rows/{id}", s.handleSaveRow)
			r.Get("/grid/rows/{id}/edit", s.handleEditRow)
			r.Get("/grid/rows/{id}/delete", s.handleAskRowDelete)
			r.Post("/grid/rows/{id}/delete", s.handleRowDelete)

			r.Get("/{id}", s.handleDetail)
			r.Post("/{id}", s.handleUpdate)
			r.Get("/{id}/edit", s.handleEditForm)
			r.Get("/{id}/delete", s.handleAskDelete)
			r.Post("/{id}/delete", s.handleDelete)
		})

		r.Get("/stats", s.handleStats)
	})

	// JSON API
	s.router.Route("/api", func(r chi.Router) {
		r.Use(crmmw.APIKeyAuth(&s.cfg.Security))
		r.Get("/companies", s.handleAPIList)
		r.Get("/companies/search", s.handleAPISearch)
		r.Get("/companies/{id}", s.handleAPIGet)
		r.Get("/stats", s.handleAPIStats)
		r.Get("/dashboard", s.handleAPIDashboard)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				// Inline styles for the page shell, htmx from its CDN.
				w.Header().Set("Content-Security-Policy",
					"default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter implements a simple fixed-window limiter per IP. Idle entries
// are swept lazily, at most once per window.
type rateLimiter struct {
	mu        sync.Mutex
	clock     clock.Clock
	visitors  map[string]*visitor
	rate      int           // requests per window
	window    time.Duration // time window
	lastSweep time.Time
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(c clock.Clock, rate int, window time.Duration) *rateLimiter {
	if rate < 1 {
		rate = 1
	}
	return &rateLimiter{
		clock:     c,
		visitors:  make(map[string]*visitor),
		rate:      rate,
		window:    window,
		lastSweep: c.Now(),
	}
}

// sweep removes stale visitors. Caller holds mu.
func (rl *rateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now
	for ip, v := range rl.visitors {
		if now.Sub(v.lastReset) > rl.window*2 {
			delete(rl.visitors, ip)
		}
	}
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	rl.sweep(now)

	v, exists := rl.visitors[ip]
	if !exists || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware rate limits by client IP. RemoteAddr has already been
// rewritten by TrustedRealIP when the request came through a trusted proxy.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", fmt.Sprint(int(rl.window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, message)
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
