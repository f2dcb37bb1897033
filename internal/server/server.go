// Package server exposes the retrieval engine over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	retrerrors "github.com/civicmesh/retrieval/internal/errors"
	"github.com/civicmesh/retrieval/internal/metrics"
	"github.com/civicmesh/retrieval/internal/retrieval"
)

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address.
	Addr string

	// RequestTimeout bounds each retrieval request.
	RequestTimeout time.Duration

	// RateLimit is requests per second per server (0 = unlimited).
	RateLimit float64

	// RateBurst is the rate limiter burst size.
	RateBurst int

	// Probes report optional collaborator availability on /healthz,
	// keyed by component name. A down collaborator does not fail the
	// liveness check; retrieval degrades instead.
	Probes map[string]func(ctx context.Context) bool
}

// Server hosts the retrieval API.
type Server struct {
	engine  *retrieval.Engine
	metrics *metrics.Metrics
	config  Config
	logger  *slog.Logger
	httpSrv *http.Server
}

// retrieveRequest is the POST /v1/retrieve body.
type retrieveRequest struct {
	Query        string `json:"query"`
	TopK         int    `json:"topK"`
	CommunityID  string `json:"communityId"`
	UseReranking *bool  `json:"useReranking"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// New creates the server and its routes.
func New(engine *retrieval.Engine, m *metrics.Metrics, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8087"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	s := &Server{
		engine:  engine,
		metrics: m,
		config:  cfg,
		logger:  slog.Default().With(slog.String("component", "server")),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(s.logger))
	if cfg.RateLimit > 0 {
		router.Use(RateLimit(cfg.RateLimit, cfg.RateBurst))
	}

	router.GET("/healthz", s.handleHealth)
	if m != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/v1")
	v1.Use(RequireUser())
	v1.POST("/retrieve", s.handleRetrieve)

	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("server_listening", slog.String("addr", s.config.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if len(s.config.Probes) > 0 {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		components := make(map[string]bool, len(s.config.Probes))
		for name, probe := range s.config.Probes {
			components[name] = probe(ctx)
		}
		body["components"] = components
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleRetrieve(c *gin.Context) {
	var req retrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error: "invalid request body",
			Code:  retrerrors.ErrCodeInvalidInput,
		})
		return
	}

	useReranking := true
	if req.UseReranking != nil {
		useReranking = *req.UseReranking
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.RequestTimeout)
	defer cancel()

	resp, err := s.engine.Retrieve(ctx, retrieval.Request{
		Query:        req.Query,
		TopK:         req.TopK,
		UserID:       c.GetString(userIDKey),
		CommunityID:  req.CommunityID,
		UseReranking: useReranking,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// writeError maps the error taxonomy to HTTP status codes. Only
// validation, configuration, and total retrieval failure reach this
// point; everything else degrades inside the pipeline.
func (s *Server) writeError(c *gin.Context, err error) {
	code := retrerrors.CodeOf(err)

	status := http.StatusInternalServerError
	switch {
	case retrerrors.IsValidation(err):
		status = http.StatusBadRequest
	case retrerrors.IsConfig(err):
		status = http.StatusServiceUnavailable
	}

	var re *retrerrors.RetrievalError
	message := "internal error"
	if errors.As(err, &re) {
		message = re.Message
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request_failed",
			slog.String("code", code),
			slog.String("error", err.Error()))
	}

	c.JSON(status, errorResponse{Error: message, Code: code})
}
