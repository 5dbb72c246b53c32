package http

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"categorizer/internal/config"
	"categorizer/internal/log"
	"categorizer/internal/middleware/ratelimit"
	"categorizer/internal/middleware/security"
	"categorizer/internal/middleware/trace"
	"categorizer/internal/services"
)

// Services bundles the rule engines the handlers call into.
type Services struct {
	Transactions *services.TransactionService
	Taxonomy     *services.TaxonomyService
	Settings     *services.SettingsService
	Documents    *services.DocumentService
	Backup       *services.BackupService
	Maintenance  *services.MaintenanceService
}

type Server struct {
	http.Server
	cfg        *config.Config
	svc        Services
	logger     *log.Logger
	structured *log.StructuredLogger

	detector    *security.Detector
	tracer      *trace.Middleware
	rateLimiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(cfg *config.Config, svc Services, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		cfg:        cfg,
		svc:        svc,
		logger:     logger.WithComponent(log.ComponentHTTP),
		structured: log.NewStructuredLogger(logger),
		detector:   security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)
	if cfg.RateLimitRPM > 0 {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitRPM})
	}

	api := http.NewServeMux()
	s.routes(api)

	root := api
	if cfg.APIPrefix != "" {
		root = http.NewServeMux()
		root.Handle(cfg.APIPrefix+"/", http.StripPrefix(cfg.APIPrefix, api))
		root.HandleFunc("GET /healthz", s.handleHealth)
		root.HandleFunc("GET /readyz", s.handleReady)
	}
	if cfg.FrontendDir != "" {
		// Method-less so the prefix mount stays the more specific pattern.
		root.Handle("/", s.frontend(cfg.FrontendDir))
	}

	var handler http.Handler = jsonFallback(root)
	if s.rateLimiter != nil {
		handler = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)(handler)
	}
	handler = security.NewCORS(cfg.CORSAllowedOrigins).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = log.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = log.Middleware(s.logger)(handler)
	handler = s.tracer.Middleware(handler)
	handler = s.recoverer(handler)

	s.Server = http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	api := security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, api(h))
	}

	handle("POST /transactions/new", s.handleCreateTransaction)
	handle("GET /transactions", s.handleListTransactions)
	handle("GET /transactions/view/{id}", s.handleGetTransaction)
	handle("PATCH /transactions/update/{id}", s.handleUpdateTransaction)
	handle("DELETE /transactions/delete/{id}", s.handleDeleteTransaction)
	handle("POST /transactions/{id}/split", s.handleSplitTransaction)
	handle("POST /transactions/check-duplicates-bulk", s.handleCheckDuplicates)

	handle("POST /tag-groups", s.handleCreateTagGroup)
	handle("GET /tag-groups", s.handleListTagGroups)
	handle("GET /tag-groups/{id}", s.handleGetTagGroup)
	handle("DELETE /tag-groups/{id}", s.handleDeleteTagGroup)

	handle("POST /tags", s.handleCreateTag)
	handle("GET /tags", s.handleListTags)
	handle("GET /tags/{id}", s.handleGetTag)
	handle("DELETE /tags/{id}", s.handleDeleteTag)

	handle("POST /transactions/{id}/tags", s.handleAddTransactionTag)
	handle("DELETE /transactions/{id}/tags/{tagId}", s.handleRemoveTransactionTag)

	handle("GET /settings/{key}", s.handleGetSetting)
	handle("POST /settings/{key}", s.handleSetSetting)

	handle("POST /transactions/{id}/documents", s.handleUploadDocument)
	handle("GET /documents/{id}/view", s.handleViewDocument)
	handle("GET /documents/{id}/download", s.handleDownloadDocument)
	handle("DELETE /documents/{id}", s.handleDeleteDocument)

	handle("GET /backup/all", s.handleBackup)
	if !s.cfg.IsProduction() {
		handle("POST /testing/reset-db", s.handleResetDB)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
}

// recoverer turns a handler panic into a logged 500. Storage transactions
// have already rolled back by the time the panic reaches here.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.ErrorContext(r.Context(), "Handler panic",
					"panic", rec,
					log.FieldMethod, r.Method,
					log.FieldPath, r.URL.Path,
					"stack", string(debug.Stack()))
				InternalServerError(msgUnexpected).Write(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// jsonFallback rewrites the mux's plain-text 404 and 405 replies as JSON errors.
func jsonFallback(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&fallbackWriter{ResponseWriter: w}, r)
	})
}

type fallbackWriter struct {
	http.ResponseWriter
	swallow bool
}

func (fw *fallbackWriter) WriteHeader(code int) {
	plain := strings.HasPrefix(fw.Header().Get("Content-Type"), "text/plain")
	if plain && (code == http.StatusNotFound || code == http.StatusMethodNotAllowed) {
		fw.swallow = true
		fw.Header().Del("Content-Length")
		if code == http.StatusNotFound {
			NotFoundError("The requested URL was not found on the server.").Write(fw.ResponseWriter)
		} else {
			MethodNotAllowedError("").Write(fw.ResponseWriter)
		}
		return
	}
	fw.ResponseWriter.WriteHeader(code)
}

func (fw *fallbackWriter) Write(b []byte) (int, error) {
	if fw.swallow {
		return len(b), nil
	}
	return fw.ResponseWriter.Write(b)
}

func (fw *fallbackWriter) Unwrap() http.ResponseWriter {
	return fw.ResponseWriter
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.svc.Maintenance.Ready(ctx); err != nil {
		s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "Database is not reachable.").Write(w)
		return
	}

	metrics := s.tracer.GetMetrics()
	NewJSONResponse().Body(map[string]any{
		"status":           "ready",
		"requests":         metrics.TotalRequests,
		"server_errors":    metrics.ServerErrors,
		"avg_response_us":  metrics.AverageResponseTime,
		"suspicious_total": s.detector.GetMetrics().SuspiciousRequests,
	}).Write(w)
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}
