// Package server provides the HTTP REST API for the painting generator.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/painting-generator/internal/cache"
	"github.com/jonathan/painting-generator/internal/config"
	"github.com/jonathan/painting-generator/internal/eventbus"
	"github.com/jonathan/painting-generator/internal/fetch"
	"github.com/jonathan/painting-generator/internal/orchestrator"
	"github.com/jonathan/painting-generator/internal/server/middleware"
	"github.com/jonathan/painting-generator/internal/server/ratelimit"
)

// DefaultKeepAlive is the interval between SSE comment frames.
const DefaultKeepAlive = 25 * time.Second

// Generator starts painting jobs and reports on the running ones.
type Generator interface {
	StartGeneration(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
	Active(titleID uuid.UUID) bool
	Progress(titleID uuid.UUID) (orchestrator.Counters, bool)
}

// EventSource hands out per-user event subscriptions.
type EventSource interface {
	Subscribe(userID uuid.UUID) *eventbus.Subscription
	Unsubscribe(sub *eventbus.Subscription)
}

// ImageFetcher downloads a reference image, resolving HTML pages to their preview image.
type ImageFetcher func(ctx context.Context, url string) (*fetch.Image, error)

// PublicConfig is the generation configuration exposed to clients.
type PublicConfig struct {
	ImageProvider   string `json:"imageProvider"`
	DefaultQuantity int    `json:"defaultQuantity"`
	MaxQuantity     int    `json:"maxQuantity"`
	MaxReferences   int    `json:"maxReferences"`
}

// Deps are the collaborators the server is wired with.
type Deps struct {
	Store     Store
	Generator Generator
	Events    EventSource
	// Cache fronts reference payload reads. Nil disables caching.
	Cache cache.ReferenceCache
	// Uploads serves generated images under /uploads/. Nil disables the route.
	Uploads http.Handler
	// FetchImage defaults to fetch.FetchImage with default options.
	FetchImage ImageFetcher
	JWT        *config.JWTConfig
	Password   *config.PasswordConfig
	RateLimit  ratelimit.Config
	Public     PublicConfig
	// KeepAlive defaults to DefaultKeepAlive.
	KeepAlive time.Duration
	Logger    *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	store       Store
	generator   Generator
	events      EventSource
	cache       cache.ReferenceCache
	fetchImage  ImageFetcher
	public      PublicConfig
	keepAlive   time.Duration
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	authHandler *AuthHandler
	logger      *zap.Logger

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New wires the routes. addr is only used by ListenAndServe.
func New(addr string, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("server: generator is required")
	}
	if deps.Events == nil {
		return nil, errors.New("server: event source is required")
	}
	if deps.JWT == nil || deps.Password == nil {
		return nil, errors.New("server: auth configuration is required")
	}
	if err := deps.JWT.Check(); err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{
		store:      deps.Store,
		generator:  deps.Generator,
		events:     deps.Events,
		cache:      deps.Cache,
		fetchImage: deps.FetchImage,
		public:     deps.Public,
		keepAlive:  deps.KeepAlive,
		logger:     deps.Logger,
		shutdown:   make(chan struct{}),
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.fetchImage == nil {
		s.fetchImage = func(ctx context.Context, url string) (*fetch.Image, error) {
			return fetch.FetchImage(ctx, url, fetch.DefaultOptions())
		}
	}
	if s.keepAlive <= 0 {
		s.keepAlive = DefaultKeepAlive
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	s.rateLimiter = ratelimit.NewLimiter(deps.RateLimit)
	s.jwtService = NewJWTService(deps.JWT)
	s.authHandler = NewAuthHandler(NewUserService(deps.Store, deps.Password), s.jwtService)

	auth := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
	streamAuth := middleware.AuthMiddleware(s.jwtService.AsTokenValidator(), middleware.AllowQueryToken("token"))
	protect := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/config", s.handleConfig)

	// Auth
	mux.HandleFunc("POST /api/auth/register", s.authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", s.authHandler.Login)
	mux.Handle("GET /api/auth/me", protect(s.authHandler.Me))

	// Titles
	mux.Handle("GET /api/titles", protect(s.handleListTitles))
	mux.Handle("POST /api/titles", protect(s.handleCreateTitle))
	mux.Handle("GET /api/titles/{id}", protect(s.handleGetTitle))
	mux.Handle("PUT /api/titles/{id}", protect(s.handleUpdateTitle))
	mux.Handle("DELETE /api/titles/{id}", protect(s.handleDeleteTitle))

	// Reference images
	mux.Handle("POST /api/references", protect(s.handleCreateReference))
	mux.Handle("POST /api/references/import", protect(s.handleImportReference))
	mux.Handle("GET /api/references/title/{titleId}", protect(s.handleListTitleReferences))
	mux.Handle("GET /api/references/global", protect(s.handleListGlobalReferences))
	mux.Handle("DELETE /api/references/{id}", protect(s.handleDeleteReference))

	// Paintings
	mux.Handle("POST /api/paintings/generate", protect(s.handleGenerate))
	mux.Handle("GET /api/paintings/title/{titleId}", protect(s.handleListPaintings))
	mux.Handle("GET /api/paintings/title/{titleId}/progress", protect(s.handleProgress))

	// Event stream
	mux.Handle("GET /api/events/{userId}", streamAuth(http.HandlerFunc(s.handleEvents)))

	if deps.Uploads != nil {
		mux.Handle("GET /uploads/", deps.Uploads)
	}

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      300 * time.Second, // idea stage runs inside the generate request
		IdleTimeout:       60 * time.Second,
	}
	s.httpServer.RegisterOnShutdown(s.closeStreams)

	return s, nil
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe blocks until the server stops. A graceful Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown ends open event streams, drains requests and stops the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.rateLimiter.Stop()
	s.closeStreams()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) closeStreams() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
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
			zap.String("client", s.extractClientID(r)))
	})
}

// statusRecorder captures the response status. It forwards Flush so event
// streams keep working behind the logging middleware.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// handleHealth reports whether the repository is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleConfig exposes the client-facing generation settings.
func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.public)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	writeError(w, status, message)
}

// serviceError logs unexpected failures and writes the mapped response.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	if HTTPStatus(err) >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeServiceError(w, err)
}

// extractClientID uses the IP from RemoteAddr.
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

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Round(time.Second).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", s.extractClientID(r)),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// requestUser returns the authenticated user ID placed by AuthMiddleware.
func requestUser(r *http.Request) (uuid.UUID, error) {
	id, err := middleware.GetUserID(r)
	if err != nil {
		return uuid.Nil, &ErrUnauthorized{}
	}
	return id, nil
}

// pathID parses a UUID path value.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, &ErrValidation{Field: name, Message: "must be a valid UUID"}
	}
	return id, nil
}
