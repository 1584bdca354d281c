// Package server implements the HTTP API for building efficiency calculations.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/codeGROOVE-dev/efftrack/pkg/efficiency"
)

const (
	// DefaultRateLimit is the default requests per second limit.
	DefaultRateLimit = 100
	// DefaultRateBurst is the default burst size for rate limiting.
	DefaultRateBurst = 100
	// errorKey is the logging key for error messages.
	errorKey = "error"
	// maxBodyBytes caps calculation request bodies.
	maxBodyBytes = 1 << 20
	// healthTimeout bounds the store ping done by /health.
	healthTimeout = 3 * time.Second
	// serviceName is reported by the root endpoint.
	serviceName = "Building Energy Efficiency API"
	// apiPrefix is shared by every rate-limited route.
	apiPrefix = "/api/efficiency"
)

// Server is the HTTP front end of an efficiency.Service.
type Server struct {
	logger         *slog.Logger
	svc            *efficiency.Service
	metrics        *Metrics
	csrfProtection *http.CrossOriginProtection
	handler        http.Handler
	ipLimiters     map[string]*rate.Limiter
	serverCommit   string
	allowedOrigins []string
	rateLimit      int
	rateBurst      int
	ipLimitersMu   sync.RWMutex
	allowAllCors   bool
}

// New creates a Server that answers requests with svc.
func New(svc *efficiency.Service) *Server {
	ctx := context.Background()
	logger := slog.Default().With("component", "efftrack-server")

	// Blocks cross-origin POSTs using Sec-Fetch-Site and Origin headers.
	// Requests without either header are treated as same-origin or non-browser.
	csrfProtection := http.NewCrossOriginProtection()

	logger.InfoContext(ctx, "Server initialized with CSRF protection enabled")

	s := &Server{
		logger:         logger,
		svc:            svc,
		metrics:        NewMetrics(),
		csrfProtection: csrfProtection,
		ipLimiters:     make(map[string]*rate.Limiter),
		rateLimit:      DefaultRateLimit,
		rateBurst:      DefaultRateBurst,
	}

	recoveryLog := slog.NewLogLogger(logger.Handler(), slog.LevelError)
	s.handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLog),
		handlers.PrintRecoveryStack(true),
	)(handlers.CompressHandler(s.routes()))
	return s
}

// routes builds the router. Every API route is rate limited per client IP.
func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, s.logger, fmt.Errorf("%w: %s", ErrRouteNotFound, req.URL.Path))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, s.logger, fmt.Errorf("%w: %s %s", ErrMethodNotAllowed, req.Method, req.URL.Path))
	})

	handle := func(path, route string, fn http.HandlerFunc, method string) {
		r.Handle(path, s.metrics.WrapHandler(route, fn)).Methods(method)
	}
	// API routes stay on the root router so method mismatches reach MethodNotAllowedHandler.
	api := func(path, route string, fn http.HandlerFunc, method string) {
		r.Handle(apiPrefix+path, s.metrics.WrapHandler(route, s.rateLimitMiddleware(fn))).Methods(method)
	}

	handle("/", "root", s.handleRoot, http.MethodGet)
	handle("/health", "health", s.handleHealth, http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api("/calculate", "calculate", s.handleCalculate, http.MethodPost)
	api("/building/{building_id}", "building", s.handleBuilding, http.MethodGet)
	api("/building/{building_id}/period/{period}", "building_period", s.handleBuildingPeriod, http.MethodGet)
	api("/building/{building_id}/summary", "building_summary", s.handleBuildingSummary, http.MethodGet)
	return r
}

// SetCommit sets the server commit hash.
func (s *Server) SetCommit(commit string) {
	s.serverCommit = commit
}

// SetCORSConfig sets the CORS configuration.
//
//nolint:revive // flag-parameter: allowAll is a clear boolean flag for CORS configuration
func (s *Server) SetCORSConfig(origins string, allowAll bool) {
	ctx := context.Background()
	defer s.trustCORSOrigins(ctx)
	if allowAll {
		s.allowAllCors = true
		s.logger.WarnContext(ctx, "CORS configured to allow all origins - DEVELOPMENT MODE ONLY")
		return
	}

	s.allowAllCors = false
	s.allowedOrigins = nil
	if origins == "" {
		return
	}
	for _, origin := range strings.Split(origins, ",") {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}

		// Wildcards must look like *.domain.com or https://*.domain.com.
		if strings.Contains(origin, "*") {
			valid := strings.HasPrefix(origin, "*.") ||
				strings.HasPrefix(origin, "https://*.") ||
				strings.HasPrefix(origin, "http://*.")
			if !valid || strings.Count(origin, "*") > 1 {
				s.logger.ErrorContext(ctx, "Invalid wildcard CORS origin", "origin", origin)
				continue
			}
		}

		s.allowedOrigins = append(s.allowedOrigins, origin)
	}
	s.logger.InfoContext(ctx, "CORS origins configured", "origins", s.allowedOrigins)
}

// trustCORSOrigins rebuilds the CSRF guard so exact CORS origins may POST.
// Wildcard entries and allow-all mode are handled by csrfExempt.
func (s *Server) trustCORSOrigins(ctx context.Context) {
	csrf := http.NewCrossOriginProtection()
	for _, origin := range s.allowedOrigins {
		if strings.Contains(origin, "*") {
			continue
		}
		if err := csrf.AddTrustedOrigin(origin); err != nil {
			s.logger.ErrorContext(ctx, "CORS origin cannot be trusted for POST requests", "origin", origin, errorKey, err)
		}
	}
	s.csrfProtection = csrf
}

// csrfExempt reports whether origin is allowed by allow-all mode or by a wildcard CORS entry.
func (s *Server) csrfExempt(origin string) bool {
	if origin == "" {
		return false
	}
	if s.allowAllCors {
		return true
	}
	return s.matchesWildcardOrigin(origin)
}

// SetRateLimit sets the rate limiting configuration.
func (s *Server) SetRateLimit(rps int, burst int) {
	ctx := context.Background()
	s.ipLimitersMu.Lock()
	s.rateLimit = rps
	s.rateBurst = burst
	s.ipLimiters = make(map[string]*rate.Limiter)
	s.ipLimitersMu.Unlock()
	s.logger.InfoContext(ctx, "Rate limit configured (per-IP)", "requests_per_sec", rps, "burst", burst)
}

// limiter returns a rate limiter for the given IP address.
func (s *Server) limiter(ctx context.Context, ip string) *rate.Limiter {
	s.ipLimitersMu.RLock()
	limiter, exists := s.ipLimiters[ip]
	s.ipLimitersMu.RUnlock()

	if exists {
		return limiter
	}

	s.ipLimitersMu.Lock()
	defer s.ipLimitersMu.Unlock()

	// Double-check after acquiring write lock.
	if existingLimiter, exists := s.ipLimiters[ip]; exists {
		return existingLimiter
	}

	limiter = rate.NewLimiter(rate.Limit(s.rateLimit), s.rateBurst)
	s.ipLimiters[ip] = limiter

	// Keep the map bounded.
	const maxLimiters = 10000
	if len(s.ipLimiters) > maxLimiters {
		count := 0
		target := len(s.ipLimiters) / 2
		for ip := range s.ipLimiters {
			delete(s.ipLimiters, ip)
			count++
			if count >= target {
				break
			}
		}
		s.logger.InfoContext(ctx, "Cleaned up old IP rate limiters", "removed", count, "remaining", len(s.ipLimiters))
	}

	return limiter
}

// clientIP extracts the caller's address.
// X-Forwarded-For is trusted: Cloud Run replaces client-provided values with the real client IP.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.limiter(r.Context(), ip).Allow() {
			s.logger.WarnContext(r.Context(), "[rateLimit] Rate limit exceeded", "client_ip", ip, "path", r.URL.Path)
			s.metrics.RateLimited()
			writeError(w, r, s.logger, ErrRateLimit)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")

	// CSRF check runs first. Safe methods always pass.
	if s.csrfProtection != nil && !s.csrfExempt(origin) {
		if err := s.csrfProtection.Check(r); err != nil {
			s.logger.WarnContext(r.Context(), "CSRF check failed - cross-origin request denied",
				"origin", r.Header.Get("Origin"),
				"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr,
				errorKey, err)
			http.Error(w, "Cross-origin request denied", http.StatusForbidden)
			return
		}
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-XSS-Protection", "1; mode=block")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")

	if s.allowAllCors {
		// Echo the origin rather than "*".
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			s.logger.DebugContext(r.Context(), "CORS allowed (dev mode)", "origin", origin)
		}
	} else if origin != "" && s.isOriginAllowed(origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.handler.ServeHTTP(w, r)
}

// isOriginAllowed checks if an origin is in the allowed list.
// Supports exact matches and wildcard subdomain patterns (*.example.com or https://*.example.com).
func (s *Server) isOriginAllowed(origin string) bool {
	if _, _, ok := splitOrigin(origin); !ok {
		return false
	}

	for _, allowed := range s.allowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return s.matchesWildcardOrigin(origin)
}

// matchesWildcardOrigin checks origin against the wildcard entries only.
func (s *Server) matchesWildcardOrigin(origin string) bool {
	protocol, host, ok := splitOrigin(origin)
	if !ok {
		return false
	}

	for _, allowed := range s.allowedOrigins {
		if !strings.Contains(allowed, "*") {
			continue
		}

		var wildcardDomain string
		switch {
		case strings.HasPrefix(allowed, "http://"), strings.HasPrefix(allowed, "https://"):
			requiredProtocol, rest, _ := strings.Cut(allowed, "://")
			if !strings.HasPrefix(rest, "*.") || protocol != requiredProtocol {
				continue
			}
			wildcardDomain = rest[2:]
		case strings.HasPrefix(allowed, "*."):
			wildcardDomain = allowed[2:]
		default:
			continue
		}

		// sub.example.com matches, notexample.com does not.
		if host == wildcardDomain || strings.HasSuffix(host, "."+wildcardDomain) {
			return true
		}
	}
	return false
}

// splitOrigin returns the scheme and bare host of an http(s) origin.
func splitOrigin(origin string) (protocol, host string, ok bool) {
	if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
		return "", "", false
	}
	protocol, host, _ = strings.Cut(origin, "://")
	if i := strings.Index(host, "/"); i != -1 {
		host = host[:i]
	}
	if i := strings.Index(host, ":"); i != -1 {
		host = host[:i]
	}
	return protocol, host, true
}

func (s *Server) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any, handler string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.ErrorContext(ctx, "["+handler+"] Error encoding response", errorKey, err)
	}
}

// handleRoot reports the service name and build.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	version := s.serverCommit
	if version == "" {
		version = "dev"
	}
	s.writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"message":   serviceName,
		"version":   version,
		"status":    "running",
		"timestamp": time.Now().UTC(),
	}, "handleRoot")
}

// handleHealth reports whether the store is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.svc.Ping(ctx); err != nil {
		s.logger.ErrorContext(ctx, "[handleHealth] Store ping failed", errorKey, err)
		s.writeJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"database": "disconnected",
			"error":    err.Error(),
		}, "handleHealth")
		return
	}
	s.writeJSON(ctx, w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"database": "connected",
	}, "handleHealth")
}

// handleCalculate evaluates a measure and stores the resulting record.
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.logger.InfoContext(ctx, "[handleCalculate] Incoming request", "client_ip", clientIP(r))

	req, err := efficiency.DecodeRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.logger.WarnContext(ctx, "[handleCalculate] Failed to parse request", "remote_addr", r.RemoteAddr, errorKey, err)
		writeError(w, r, s.logger, err)
		return
	}

	rec, err := s.svc.Calculate(ctx, req)
	if err != nil {
		if errors.Is(err, efficiency.ErrPersistenceFailure) {
			s.metrics.PersistenceFailure()
		}
		if efficiency.IsClientError(err) {
			s.logger.WarnContext(ctx, "[handleCalculate] Rejected request",
				"building_id", req.BuildingID, errorKey, err)
		}
		writeError(w, r, s.logger, err)
		return
	}
	s.metrics.Calculation(rec.Summary.OverallPerformanceGrade)

	s.logger.InfoContext(ctx, "[handleCalculate] Request completed",
		"record_id", rec.ID,
		"building_id", rec.BuildingID,
		"periods", len(rec.Periods),
		"average_improvement", rec.Summary.AverageImprovementPercent,
		"grade", rec.Summary.OverallPerformanceGrade)
	s.writeJSON(ctx, w, http.StatusCreated, rec, "handleCalculate")
}

// handleBuilding lists every calculation for a building, newest first.
func (s *Server) handleBuilding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buildingID := mux.Vars(r)["building_id"]

	recs, err := s.svc.Calculations(ctx, buildingID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	s.logger.DebugContext(ctx, "[handleBuilding] Records loaded", "building_id", buildingID, "count", len(recs))
	s.writeJSON(ctx, w, http.StatusOK, recs, "handleBuilding")
}

// handleBuildingPeriod lists calculations that include one period, reduced to that period.
func (s *Server) handleBuildingPeriod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)

	period, err := efficiency.ParsePeriod(vars["period"])
	if err != nil {
		writeError(w, r, s.logger, &efficiency.PeriodError{Index: -1, Field: "period", Reason: err.Error()})
		return
	}
	recs, err := s.svc.PeriodCalculations(ctx, vars["building_id"], period)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	s.writeJSON(ctx, w, http.StatusOK, recs, "handleBuildingPeriod")
}

// handleBuildingSummary returns the latest record, or with ?scope=all a rollup over the full history.
func (s *Server) handleBuildingSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buildingID := mux.Vars(r)["building_id"]

	switch scope := r.URL.Query().Get("scope"); scope {
	case "", "latest":
		rec, err := s.svc.Summary(ctx, buildingID)
		if err != nil {
			writeError(w, r, s.logger, err)
			return
		}
		s.writeJSON(ctx, w, http.StatusOK, rec, "handleBuildingSummary")
	case "all":
		rollup, err := s.svc.BuildingRollup(ctx, buildingID)
		if err != nil {
			writeError(w, r, s.logger, err)
			return
		}
		s.writeJSON(ctx, w, http.StatusOK, rollup, "handleBuildingSummary")
	default:
		writeError(w, r, s.logger, fmt.Errorf("%w: scope must be latest or all, got %q", efficiency.ErrInvalidRequest, scope))
	}
}
