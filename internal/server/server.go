// Package server provides the HTTP REST API for the talent sourcer: jobs, candidates, sourcing
// runs, the learning engine and team matching.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/config"
	"github.com/jonathan/talent-sourcer/internal/funnel"
	"github.com/jonathan/talent-sourcer/internal/ingestion"
	"github.com/jonathan/talent-sourcer/internal/learning"
	"github.com/jonathan/talent-sourcer/internal/logging"
	"github.com/jonathan/talent-sourcer/internal/pipeline"
	"github.com/jonathan/talent-sourcer/internal/server/middleware"
	"github.com/jonathan/talent-sourcer/internal/server/ratelimit"
	"github.com/jonathan/talent-sourcer/internal/teammatch"
	"github.com/jonathan/talent-sourcer/internal/types"
)

// Store is the read side of persistence the handlers use directly. Writes go through the
// services.
type Store interface {
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	ListJobs(ctx context.Context, limit, offset int) ([]types.Job, error)
	ListJobCandidates(ctx context.Context, jobID uuid.UUID, stage *types.PipelineStage) ([]types.JobCandidate, error)
	GetCandidate(ctx context.Context, id uuid.UUID) (*types.Candidate, error)
	ListCandidates(ctx context.Context, limit, offset int) ([]types.Candidate, error)
	ListCandidateJobs(ctx context.Context, candidateID uuid.UUID) ([]types.JobCandidate, error)
	CreateTeam(ctx context.Context, t *types.Team) error
	GetTeam(ctx context.Context, id uuid.UUID) (*types.Team, error)
	ListTeams(ctx context.Context, activeOnly bool) ([]types.Team, error)
	GetPipelineRun(ctx context.Context, id uuid.UUID) (*types.PipelineRun, error)
	ListRunSteps(ctx context.Context, runID uuid.UUID) ([]types.RunStep, error)
}

// pinger is implemented by stores backed by a database connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server configuration
type Config struct {
	Port         int
	Store        Store
	Jobs         *ingestion.Service
	Funnel       *funnel.Service
	Pipeline     *pipeline.Orchestrator
	Learning     *learning.Engine
	Teams        *teammatch.Matcher
	Agent        string
	LearningRate float64
	// JWT enables bearer authentication on write routes. Nil leaves the API open.
	JWT       *config.JWTConfig
	RateLimit *ratelimit.Config
	Logger    *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer   *http.Server
	store        Store
	jobs         *ingestion.Service
	funnel       *funnel.Service
	pipeline     *pipeline.Orchestrator
	learning     *learning.Engine
	teams        *teammatch.Matcher
	agent        string
	learningRate float64
	jwtService   *JWTService
	rateLimiter  *ratelimit.Limiter
	logger       *zap.Logger
	handler      http.Handler
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil || cfg.Jobs == nil || cfg.Funnel == nil || cfg.Pipeline == nil ||
		cfg.Learning == nil || cfg.Teams == nil {
		return nil, errors.New("server requires a store and every service")
	}
	if cfg.Agent == "" {
		cfg.Agent = types.DefaultAgentName
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = types.DefaultLearningRate
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = ratelimit.DefaultConfig()
	}

	s := &Server{
		store:        cfg.Store,
		jobs:         cfg.Jobs,
		funnel:       cfg.Funnel,
		pipeline:     cfg.Pipeline,
		learning:     cfg.Learning,
		teams:        cfg.Teams,
		agent:        cfg.Agent,
		learningRate: cfg.LearningRate,
		rateLimiter:  ratelimit.NewLimiter(cfg.RateLimit),
		logger:       logging.WithFields(cfg.Logger, zap.String("component", "server")),
	}
	if cfg.JWT != nil {
		if err := cfg.JWT.Validate(); err != nil {
			return nil, fmt.Errorf("invalid jwt config: %w", err)
		}
		s.jwtService = NewJWTService(cfg.JWT)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	// Jobs and candidates
	mux.Handle("POST /jobs", s.protect(s.handleCreateJob))
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /jobs/{id}/candidates", s.handleListJobCandidates)
	mux.Handle("PUT /jobs/{job_id}/candidates/{candidate_id}/stage", s.protect(s.handleUpdateStage))
	mux.HandleFunc("GET /candidates", s.handleListCandidates)
	mux.HandleFunc("GET /candidates/{id}", s.handleGetCandidate)
	mux.HandleFunc("GET /candidates/{id}/jobs", s.handleListCandidateJobs)

	// Sourcing pipeline
	mux.Handle("POST /sourcing/start", s.protect(s.handleStartSourcing))
	mux.Handle("POST /sourcing/start/stream", s.protect(s.handleStreamSourcing))
	mux.HandleFunc("GET /sourcing/status/{job_id}", s.handleSourcingStatus)
	mux.Handle("POST /sourcing/stop/{job_id}", s.protect(s.handleStopSourcing))
	mux.HandleFunc("GET /sourcing/pipelines", s.handleListPipelines)
	mux.HandleFunc("GET /sourcing/runs/{run_id}/steps", s.handleListRunSteps)

	// Learning
	mux.Handle("POST /learning/outcomes", s.protect(s.handleRecordOutcome))
	mux.HandleFunc("GET /learning/outcomes", s.handleListOutcomes)
	mux.HandleFunc("GET /learning/outcomes/stats", s.handleOutcomeStats)
	mux.HandleFunc("GET /learning/params", s.handleListParams)
	mux.HandleFunc("GET /learning/params/{agent}", s.handleGetParams)
	mux.Handle("PUT /learning/params/{agent}", s.protect(s.handleUpdateParams))
	mux.HandleFunc("GET /learning/params/{agent}/history", s.handleParamsHistory)
	mux.HandleFunc("POST /learning/params/{agent}/replay", s.handleReplay)
	mux.HandleFunc("GET /learning/metrics/{agent}", s.handleMetrics)
	mux.HandleFunc("POST /learning/simulate", s.handleSimulate)

	// Teams
	mux.Handle("POST /teams", s.protect(s.handleCreateTeam))
	mux.HandleFunc("GET /teams", s.handleListTeams)
	mux.HandleFunc("GET /teams/{id}", s.handleGetTeam)
	mux.Handle("PUT /teams/{id}", s.protect(s.handleUpdateTeam))
	mux.Handle("POST /teams/match", s.protect(s.handleMatchTeams))
	mux.HandleFunc("GET /teams/matches/candidate/{candidate_id}", s.handleListCandidateMatches)
	mux.HandleFunc("GET /teams/matches/{id}", s.handleGetMatch)
	mux.Handle("POST /teams/matches/{id}/approve", s.protect(s.handleApproveMatch))

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Long timeout for streamed pipeline runs
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	defer s.rateLimiter.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr), zap.Bool("auth", s.jwtService != nil))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Close stops background work without serving. Used when the server was never started.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// protect requires a bearer token on h when authentication is configured.
func (s *Server) protect(h http.HandlerFunc) http.Handler {
	if s.jwtService == nil {
		return h
	}
	return middleware.RequireBearer(s.jwtService, s.rejectUnauthorized)(h)
}

func (s *Server) rejectUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	w.Header().Set("WWW-Authenticate", `Bearer realm="`+TokenIssuer+`"`)
	s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
}

// recruiter returns the authenticated recruiter, or fallback when the request is anonymous.
func recruiter(r *http.Request, fallback string) string {
	if name, ok := middleware.Recruiter(r.Context()); ok {
		return name
	}
	return fallback
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush lets streamed responses pass through the logging wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

func requestFields(r *http.Request, status int, err error) []zap.Field {
	return []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"running_pipelines": len(s.pipeline.Running()),
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON reads the request body into v, answering 400 on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// pathUUID parses the named path value, answering 400 on failure.
func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s format", name))
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads a non-negative integer query parameter with a default and an upper bound.
func queryInt(r *http.Request, name string, def, upper int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &types.ValidationError{Field: name, Message: "must be a non-negative integer"}
	}
	if upper > 0 && n > upper {
		n = upper
	}
	return n, nil
}

// queryUUID reads an optional UUID query parameter.
func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, &types.ValidationError{Field: name, Message: "must be a UUID"}
	}
	return &id, nil
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", s.extractClientID(r)),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit),
	)
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
