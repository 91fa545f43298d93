// Package web provides the HTTP API and status pages of the onboarding
// service.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sievert/ingreso/internal/config"
	"github.com/sievert/ingreso/internal/core"
	"github.com/sievert/ingreso/internal/geo"
	"github.com/sievert/ingreso/internal/web/middleware"
)

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// Options are the optional collaborators of a Server.
type Options struct {
	// Geo serves department and municipality lists; geo.Backup() when nil.
	Geo *geo.Directory

	// Ready maps a dependency name to its readiness check for /readyz.
	Ready map[string]ReadinessCheck
}

// Server is the HTTP server of the onboarding service.
type Server struct {
	service *core.Service
	cfg     *config.Config
	geo     *geo.Directory
	ready   map[string]ReadinessCheck
	router  *chi.Mux
	server  *http.Server

	limiters []*rateLimiter
}

// NewServer creates a Server for service.
func NewServer(service *core.Service, cfg *config.Config, opts Options) *Server {
	if opts.Geo == nil {
		opts.Geo = geo.Backup()
	}
	s := &Server{
		service: service,
		cfg:     cfg,
		geo:     opts.Geo,
		ready:   opts.Ready,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(instrument)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	s.router.Handle("/metrics", promhttp.Handler())

	// Pages
	s.router.Get("/sessions/{id}", s.handleStatusPage)

	heavy := func(next http.Handler) http.Handler { return next }
	if s.cfg.Rate.Enabled {
		heavy = s.newRateLimiter(s.cfg.Rate.ImportLimit, time.Minute).middleware
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		// Master lists
		r.Get("/lists", s.handleLists)
		r.Get("/geo/departments", s.handleDepartments)
		r.Get("/geo/departments/{department}/municipalities", s.handleMunicipalities)

		r.Get("/imports/status", s.handleImportStatus)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Get("/status", s.handleSessionStatus)

			r.Put("/client", s.handleSetClient)

			r.Post("/facilities", s.handleAddFacility)
			r.Put("/facilities/{index}", s.handleUpdateFacility)
			r.Delete("/facilities/{index}", s.handleRemoveFacility)

			r.Post("/users", s.handleAddUser)
			r.Post("/users/generate", s.handleGenerateRows)
			r.Put("/users/{index}", s.handleUpdateUser)
			r.Delete("/users/{index}", s.handleRemoveUser)

			// Files
			r.Get("/template", s.handleDownloadTemplate)
			r.Get("/export", s.handleExportRoster)
			r.Get("/snapshot", s.handleExportSnapshot)
			r.Put("/snapshot", s.handleRestoreSnapshot)
			r.With(heavy).Post("/import", s.handleImport)

			r.With(heavy).Post("/submit", s.handleSubmit)
		})
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, l := range s.limiters {
		l.stop()
	}
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
				w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter is a fixed-window request counter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func (s *Server) newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		done:     make(chan struct{}),
	}
	s.limiters = append(s.limiters, rl)
	go rl.cleanup()
	return rl
}

// cleanup drops visitors idle for two windows.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}

// allow consumes a token for ip when one is left.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: time.Now()}
		return true
	}

	if time.Since(v.lastReset) > rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = time.Now()
		return true
	}

	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware rate limits by the client IP resolved by TrustedRealIP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			respondErrorJSON(w, core.MapError(errRateLimited), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
