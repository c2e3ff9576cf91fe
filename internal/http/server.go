// Package http serves the JSON API: authentication, categories, expenses,
// the stats dashboard, user settings and the operational endpoints.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"spendlog/internal/auth"
	"spendlog/internal/cache"
	applog "spendlog/internal/log"
	"spendlog/internal/middleware/ratelimit"
	"spendlog/internal/middleware/security"
	"spendlog/internal/middleware/trace"
	"spendlog/internal/services"
)

const (
	// maxBodyBytes caps every request body.
	maxBodyBytes = 1 << 20
	// handlerTimeout bounds the store work behind a single request.
	handlerTimeout = 7 * time.Second
)

// Pinger reports whether the data backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the use cases the handlers call.
type Services struct {
	Accounts   *services.AccountService
	Categories *services.CategoryService
	Expenses   *services.ExpenseService
	Stats      *services.StatsService
}

// Options configures the server around its services.
type Options struct {
	Tokens         *auth.Tokens
	Store          Pinger
	Logger         *applog.Logger
	AdminToken     string
	SecureCookies  bool
	RateLimitRPM   int
	TrustedProxies []string
	// CacheStats reports the snapshot cache counters on /metrics when set.
	CacheStats func() cache.Stats
}

type Server struct {
	http.Server

	svc        Services
	tokens     *auth.Tokens
	store      Pinger
	logger     *applog.Logger
	events     *applog.StructuredLogger
	adminToken string
	secure     bool
	cacheStats func() cache.Stats
	started    time.Time

	headers         *security.HeadersMiddleware
	detector        *security.Detector
	rateLimiter     *ratelimit.Limiter
	traceMiddleware *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires routes and the middleware chain. The rate limiter's cleanup
// goroutine runs until Shutdown.
func NewServer(addr string, svc Services, opts Options) (*Server, error) {
	if opts.Tokens == nil {
		return nil, fmt.Errorf("http server: tokens are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector, err := security.NewDetector(opts.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("http server: trusted proxies: %w", err)
	}

	s := &Server{
		svc:        svc,
		tokens:     opts.Tokens,
		store:      opts.Store,
		logger:     logger,
		events:     applog.NewStructuredLogger(logger),
		adminToken: opts.AdminToken,
		secure:     opts.SecureCookies,
		cacheStats: opts.CacheStats,
		started:    time.Now(),
		headers:    security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		detector:   detector,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitRPM,
		}),
	}
	s.traceMiddleware = trace.NewMiddleware(logger, detector.ExtractClientIP)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.chain(s.routes()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	authed := func(h http.HandlerFunc) http.Handler { return s.tokens.Middleware(h) }

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)

	mux.Handle("GET /api/expenses", authed(s.handleListExpenses))
	mux.Handle("POST /api/expenses", authed(s.handleCreateExpense))
	mux.Handle("DELETE /api/expenses/{id}", authed(s.handleDeleteExpense))
	mux.Handle("GET /api/expenses/stats", authed(s.handleStats))
	mux.Handle("GET /api/expenses/summary", authed(s.handleSummary))

	mux.Handle("GET /api/categories", authed(s.handleListCategories))
	mux.Handle("POST /api/categories", authed(s.handleCreateCategory))
	mux.Handle("DELETE /api/categories/{id}", authed(s.handleDeleteCategory))
	mux.Handle("PUT /api/categories/reorder", authed(s.handleReorderCategories))
	mux.Handle("POST /api/categories/update-colors", authed(s.handleUpdateColors))

	mux.Handle("GET /api/user/settings", authed(s.handleGetSettings))
	mux.Handle("PUT /api/user/settings", authed(s.handleUpdateSettings))

	mux.HandleFunc("POST /api/migration/add-category-order", s.handleBackfillOrder)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	return mux
}

// chain applies the middleware, outermost first: security headers, suspicious
// request detection, per-IP rate limit, request tracing.
func (s *Server) chain(h http.Handler) http.Handler {
	h = s.traceMiddleware.Middleware(h)
	h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldComponent, applog.ComponentRateLimit,
			applog.FieldClientIP, s.detector.ExtractClientIP(r),
			applog.FieldPath, r.URL.Path)
		writeError(w, http.StatusTooManyRequests, "Too many requests")
	})(h)
	h = s.detector.Middleware(h)
	h = s.headers.Middleware(h)
	return h
}

// Shutdown stops background goroutines and drains the HTTP server. Safe to call twice.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// requestContext bounds store work for one request.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), handlerTimeout)
}

// principal is only called behind the auth middleware.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}
