// Package http exposes the finance services as a JSON API.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"eventfin/internal/attachments"
	"eventfin/internal/cache"
	"eventfin/internal/core"
	"eventfin/internal/log"
	"eventfin/internal/middleware/ratelimit"
	"eventfin/internal/middleware/security"
	"eventfin/internal/middleware/trace"
	"eventfin/internal/ocr"
	"eventfin/internal/services"
)

// Deps are the collaborators the handlers call into.
type Deps struct {
	Events      *services.EventService
	Budget      *services.BudgetService
	Expenses    *services.ExpenseService
	Incomes     *services.IncomeService
	Dashboard   *services.DashboardService
	Reconciler  *services.Reconciler
	Extractor   ocr.Extractor
	Attachments *attachments.Store
	// Ready reports whether the backend can serve requests.
	Ready func(ctx context.Context) error
}

type Options struct {
	RateLimitPerMinute int
	CacheTTL           time.Duration
	MaxUploadBytes     int64
	RequestTimeout     time.Duration
	Logger             *log.Logger

	// TrustedProxies are CIDRs, in addition to private ranges, whose
	// forwarding headers name the client.
	TrustedProxies []string
}

func DefaultOptions() Options {
	return Options{
		RateLimitPerMinute: 60,
		CacheTTL:           time.Minute,
		MaxUploadBytes:     10 << 20,
		RequestTimeout:     30 * time.Second,
		Logger:             log.Discard(),
	}
}

type Server struct {
	http.Server
	deps   Deps
	opts   Options
	logger *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	// dashboardCache holds summaries per period; any mutation purges it.
	// cacheGen counts purges so a summary computed across one is not stored.
	dashboardCache *cache.LRUCache[core.DashboardSummary]
	cacheManager   *cache.Manager
	cacheMu        sync.Mutex
	cacheGen       uint64

	metrics appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	def := DefaultOptions()
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = def.MaxUploadBytes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}

	s := &Server{
		deps:     deps,
		opts:     opts,
		logger:   opts.Logger.WithComponent(log.ComponentHTTP),
		detector: security.NewDetector(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			Methods:           []string{http.MethodPost, http.MethodPatch, http.MethodDelete},
		}),
		dashboardCache: cache.NewLRUCache[core.DashboardSummary](8, opts.CacheTTL),
		cacheManager:   cache.NewManager(opts.Logger),
		metrics:        appMetrics{started: time.Now()},
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(strings.TrimSpace(cidr)); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(s.detector.ClientIP)
	s.cacheManager.Register(s.dashboardCache)
	if opts.CacheTTL > 0 {
		s.cacheManager.StartCleanup(opts.CacheTTL)
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/dashboard", s.api(s.handleDashboard))

	mux.HandleFunc("GET /api/events", s.api(s.handleListEvents))
	mux.HandleFunc("POST /api/events", s.mutation(s.handleCreateEvent))
	mux.HandleFunc("GET /api/events/{id}", s.api(s.handleGetEvent))
	mux.HandleFunc("PATCH /api/events/{id}", s.mutation(s.handleUpdateEvent))
	mux.HandleFunc("DELETE /api/events/{id}", s.mutation(s.handleDeleteEvent))
	mux.HandleFunc("GET /api/events/{id}/budget", s.api(s.handleEventBudget))
	mux.HandleFunc("GET /api/events/{id}/categories", s.api(s.handleEventCategories))
	mux.HandleFunc("GET /api/events/{id}/expenses", s.api(s.handleEventExpenses))
	mux.HandleFunc("GET /api/events/{id}/incomes", s.api(s.handleEventIncomes))

	mux.HandleFunc("GET /api/categories", s.api(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.mutation(s.handleCreateCategory))
	mux.HandleFunc("GET /api/categories/{id}", s.api(s.handleGetCategory))
	mux.HandleFunc("PATCH /api/categories/{id}", s.mutation(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.mutation(s.handleDeleteCategory))

	mux.HandleFunc("GET /api/expenses", s.api(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.mutation(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses/{id}", s.api(s.handleGetExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.mutation(s.handleDeleteExpense))
	mux.HandleFunc("POST /api/expenses/{id}/approve", s.mutation(s.handleApproveExpense))
	mux.HandleFunc("POST /api/expenses/{id}/reject", s.mutation(s.handleRejectExpense))

	mux.HandleFunc("GET /api/approvals", s.api(s.handleApprovals))

	mux.HandleFunc("GET /api/incomes", s.api(s.handleListIncomes))
	mux.HandleFunc("POST /api/incomes", s.mutation(s.handleCreateIncome))
	mux.HandleFunc("GET /api/incomes/{id}", s.api(s.handleGetIncome))
	mux.HandleFunc("PATCH /api/incomes/{id}", s.mutation(s.handleUpdateIncome))
	mux.HandleFunc("DELETE /api/incomes/{id}", s.mutation(s.handleDeleteIncome))

	mux.HandleFunc("POST /api/ocr", s.api(s.handleOCR))
	mux.HandleFunc("GET /api/reconcile", s.api(s.handleReconcile))
}

// middleware wraps the mux, outermost first: logger, trace, detection,
// security headers, rate limiting.
func (s *Server) middleware(next http.Handler) http.Handler {
	h := s.limiter.Middleware(s.detector.ClientIP, s.onRateLimit)(next)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	return log.Middleware(s.logger)(h)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later", Code: codeRateLimited})
}

// apiFunc is a handler whose error is rendered by writeError.
type apiFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Server) api(fn apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
		defer cancel()
		r = r.WithContext(ctx)
		if err := fn(w, r); err != nil {
			writeError(w, r, err)
		}
	}
}

// mutation is api plus dashboard cache invalidation. The cache is dropped
// before the first byte of the response is written, so a client that has
// seen the response never reads a summary from before the change.
func (s *Server) mutation(fn apiFunc) http.HandlerFunc {
	return s.api(func(w http.ResponseWriter, r *http.Request) error {
		iw := &invalidatingWriter{ResponseWriter: w, invalidate: s.invalidateDashboard}
		err := fn(iw, r)
		iw.once.Do(iw.invalidate)
		if err != nil {
			return err
		}
		s.metrics.mutations.Add(1)
		return nil
	})
}

func (s *Server) invalidateDashboard() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheGen++
	s.dashboardCache.Purge()
}

// dashboardGeneration is taken before reading the backend.
func (s *Server) dashboardGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cacheGen
}

// cacheSummary stores summary unless a mutation happened since gen was taken.
func (s *Server) cacheSummary(key string, gen uint64, summary core.DashboardSummary) bool {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if gen != s.cacheGen {
		return false
	}
	s.dashboardCache.Set(key, summary)
	return true
}

type invalidatingWriter struct {
	http.ResponseWriter
	invalidate func()
	once       sync.Once
}

func (w *invalidatingWriter) WriteHeader(code int) {
	w.once.Do(w.invalidate)
	w.ResponseWriter.WriteHeader(code)
}

func (w *invalidatingWriter) Write(b []byte) (int, error) {
	w.once.Do(w.invalidate)
	return w.ResponseWriter.Write(b)
}

func (w *invalidatingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// Close releases background goroutines without waiting on connections.
func (s *Server) Close() error {
	return s.Shutdown(context.Background())
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "backend unavailable", Code: codeUnavailable})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
