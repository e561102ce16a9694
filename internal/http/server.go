// Package http exposes the budgeting API over JSON.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/reports"
	"bilancio/internal/storage"
	"bilancio/internal/theme"
)

// Service surfaces consumed by the handlers.
type (
	ExpenseService interface {
		Create(ctx context.Context, e core.Expense) (core.Expense, error)
		Get(ctx context.Context, id int64) (core.Expense, error)
		List(ctx context.Context, f storage.ExpenseFilter) ([]core.Expense, error)
		Update(ctx context.Context, e core.Expense) (core.Expense, error)
		Delete(ctx context.Context, id int64) error
		ReplacePurchases(ctx context.Context, id int64, purchases []core.Purchase) (core.Expense, error)
	}

	IncomeService interface {
		Create(ctx context.Context, in core.Income) (core.Income, error)
		Get(ctx context.Context, id int64) (core.Income, error)
		List(ctx context.Context, f storage.IncomeFilter) ([]core.Income, error)
		Update(ctx context.Context, in core.Income) (core.Income, error)
		Delete(ctx context.Context, id int64) error
	}

	MonthService interface {
		Create(ctx context.Context, year, month int) (core.Month, error)
		Get(ctx context.Context, id int64) (core.Month, error)
		GetByYearMonth(ctx context.Context, year, month int) (core.Month, error)
		List(ctx context.Context) ([]core.Month, error)
		Close(ctx context.Context, id int64) error
		Reopen(ctx context.Context, id int64) error
		CloneToNext(ctx context.Context, sourceID int64) (storage.CloneResult, error)
	}

	MetadataStore interface {
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		ListCategories(ctx context.Context) ([]core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) error
		DeleteCategory(ctx context.Context, id int64) error
		CreatePeriod(ctx context.Context, p core.Period) (core.Period, error)
		ListPeriods(ctx context.Context) ([]core.Period, error)
		UpdatePeriod(ctx context.Context, p core.Period) error
		DeletePeriod(ctx context.Context, id int64) error
		CreateIncomeType(ctx context.Context, it core.IncomeType) (core.IncomeType, error)
		ListIncomeTypes(ctx context.Context) ([]core.IncomeType, error)
		UpdateIncomeType(ctx context.Context, it core.IncomeType) error
		DeleteIncomeType(ctx context.Context, id int64) error
	}

	ReportService interface {
		MonthSummary(ctx context.Context, monthID int64) (reports.MonthSummary, error)
		Trends(ctx context.Context, window int) (reports.TrendReport, error)
	}

	// ReadyChecker reports whether the storage backend is reachable.
	ReadyChecker interface {
		Ping(ctx context.Context) error
	}
)

type Deps struct {
	Expenses ExpenseService
	Incomes  IncomeService
	Months   MonthService
	Metadata MetadataStore
	Reports  ReportService
	Ready    ReadyChecker
}

type Options struct {
	Palette      theme.Palette
	CacheTTL     time.Duration
	CacheMaxSize int
	TrendWindow  int // default months per trend report
	RateLimit    int // mutations per minute per client
}

type Server struct {
	http.Server

	expenses ExpenseService
	incomes  IncomeService
	months   MonthService
	metadata MetadataStore
	reports  ReportService
	ready    ReadyChecker

	pal         theme.Palette
	trendWindow int

	rateLimiter  *rateLimiter
	cacheManager *cache.Manager
	summaryCache *cache.LRUCache[reports.MonthSummary]
	trendsCache  *cache.LRUCache[reports.TrendReport]

	shutdownOnce sync.Once
}

func NewServer(addr string, deps Deps, opts Options) *Server {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.CacheMaxSize <= 0 {
		opts.CacheMaxSize = 100
	}
	if opts.TrendWindow <= 0 {
		opts.TrendWindow = 12
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 60
	}

	mux := http.NewServeMux()

	s := &Server{
		Server:       http.Server{Addr: addr, Handler: mux},
		expenses:     deps.Expenses,
		incomes:      deps.Incomes,
		months:       deps.Months,
		metadata:     deps.Metadata,
		reports:      deps.Reports,
		ready:        deps.Ready,
		pal:          opts.Palette,
		trendWindow:  opts.TrendWindow,
		rateLimiter:  newRateLimiter(opts.RateLimit),
		cacheManager: cache.NewManager(),
		summaryCache: cache.NewLRUCache[reports.MonthSummary](opts.CacheMaxSize, opts.CacheTTL),
		trendsCache:  cache.NewLRUCache[reports.TrendReport](opts.CacheMaxSize, opts.CacheTTL),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.Register(s.trendsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.withMiddleware(h))
	}

	route("GET /api/expenses", s.handleListExpenses)
	route("POST /api/expenses", s.handleCreateExpense)
	route("GET /api/expenses/{id}", s.handleGetExpense)
	route("PUT /api/expenses/{id}", s.handleUpdateExpense)
	route("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	route("PUT /api/expenses/{id}/purchases", s.handleReplacePurchases)

	route("GET /api/incomes", s.handleListIncomes)
	route("POST /api/incomes", s.handleCreateIncome)
	route("GET /api/incomes/{id}", s.handleGetIncome)
	route("PUT /api/incomes/{id}", s.handleUpdateIncome)
	route("DELETE /api/incomes/{id}", s.handleDeleteIncome)

	route("GET /api/categories", s.handleListCategories)
	route("POST /api/categories", s.handleCreateCategory)
	route("PUT /api/categories/{id}", s.handleUpdateCategory)
	route("DELETE /api/categories/{id}", s.handleDeleteCategory)

	route("GET /api/periods", s.handleListPeriods)
	route("POST /api/periods", s.handleCreatePeriod)
	route("PUT /api/periods/{id}", s.handleUpdatePeriod)
	route("DELETE /api/periods/{id}", s.handleDeletePeriod)

	route("GET /api/income-types", s.handleListIncomeTypes)
	route("POST /api/income-types", s.handleCreateIncomeType)
	route("PUT /api/income-types/{id}", s.handleUpdateIncomeType)
	route("DELETE /api/income-types/{id}", s.handleDeleteIncomeType)

	route("GET /api/months", s.handleListMonths)
	route("POST /api/months", s.handleCreateMonth)
	route("GET /api/months/{id}", s.handleGetMonth)
	route("POST /api/months/{id}/close", s.handleCloseMonth)
	route("POST /api/months/{id}/reopen", s.handleReopenMonth)
	route("POST /api/months/{id}/clone-to-next", s.handleCloneMonth)

	route("GET /api/categories/summary", s.handleCategoriesSummary)
	route("GET /api/reports/summary", s.handleReportSummary)
	route("GET /api/reports/trends", s.handleReportTrends)
	route("GET /api/reports/trends/chart", s.handleReportTrendsChart)

	return s
}

// withMiddleware wraps a handler with request id, request logging,
// security headers and mutation rate limiting.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ip := clientIP(r)

		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", requestID)

		slog.InfoContext(ctx, "Request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, ip)

		if isMutation(r.Method) && !s.rateLimiter.allow(ip) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, ip,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, r, http.StatusTooManyRequests, errorResponse{
				Error:     "rate limit exceeded",
				RequestID: requestID,
			})
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, ip)
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready.Ping(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Cache keys per request family.
func summaryCacheKey(monthID int64) string { return fmt.Sprintf("summary:%d", monthID) }
func trendsCacheKey(window int) string     { return fmt.Sprintf("trends:%d", window) }

// invalidation maps each mutation kind to the cached key prefixes it
// makes stale. %d expands to the affected month id; metadata and month
// mutations have no single month, so they sweep the whole family.
var invalidation = map[string][]string{
	"record":   {"summary:%d", "trends:"},
	"clone":    {"summary:", "trends:"},
	"month":    {"summary:%d", "trends:"},
	"metadata": {"summary:", "trends:"},
}

func (s *Server) invalidate(kind string, monthID int64) {
	for _, pattern := range invalidation[kind] {
		prefix := pattern
		if strings.Contains(pattern, "%d") {
			prefix = fmt.Sprintf(pattern, monthID)
		}
		removed := s.summaryCache.DeletePrefix(prefix) + s.trendsCache.DeletePrefix(prefix)
		if removed > 0 {
			slog.Debug("Cache invalidated",
				"mutation", kind,
				"prefix", prefix,
				"removed", removed)
		}
	}
}

// Shutdown stops the background loops along with the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		s.cacheManager.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
