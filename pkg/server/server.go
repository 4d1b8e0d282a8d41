// Package server exposes the job endpoints over Server-Sent Events and the
// cost, budget, log and post queries as JSON.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/postwright/postwright/pkg/budget"
	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/ledger"
	"github.com/postwright/postwright/pkg/logger"
	"github.com/postwright/postwright/pkg/metrics"
	"github.com/postwright/postwright/pkg/models"
	"github.com/postwright/postwright/pkg/progress"
	"github.com/postwright/postwright/pkg/store"
)

// Jobs starts generation jobs.
type Jobs interface {
	StartText(ctx context.Context, req models.GenerateRequest) (*progress.Reporter, error)
	StartReel(ctx context.Context, req models.ReelRequest) (*progress.Reporter, error)
	StartInfographic(ctx context.Context, req models.InfographicRequest) (*progress.Reporter, error)
	StartImprove(ctx context.Context, req models.ImproveRequest) (*progress.Reporter, error)
	StartAnalyze(ctx context.Context, req models.AnalyzeRequest) (*progress.Reporter, error)
	StartUpload(ctx context.Context, req models.UploadRequest) (*progress.Reporter, error)
}

// Logs queries the processing log.
type Logs interface {
	Query(ctx context.Context, q models.ProcessingLogQuery) ([]models.ProcessingLog, error)
}

// Posts reads and updates stored posts.
type Posts interface {
	List(ctx context.Context, status models.PostStatus, limit int) ([]models.Post, error)
	Get(ctx context.Context, id int64) (models.Post, error)
	UpdateStatus(ctx context.Context, id int64, status models.PostStatus) error
	UpdateArtifact(ctx context.Context, id int64, upd models.ArtifactUpdate) error
}

// Options wires a Server.
type Options struct {
	Listen       string
	ArtifactsDir string
	Jobs         Jobs
	Ledger       ledger.Ledger
	Budget       *budget.Policy
	Logs         Logs
	Posts        Posts
	// Files stores uploaded post images. Image uploads are refused when
	// it is nil.
	Files store.Files
	// TempDir receives uploaded videos until their job ends. Empty means
	// the system temp dir.
	TempDir string
	// MaxUploadMB caps uploaded files. Zero means 25.
	MaxUploadMB int
	Metrics     *metrics.Metrics
	Log         *logger.Logger
}

// Server is the postwright HTTP API.
type Server struct {
	opts   Options
	log    *logger.Logger
	engine *gin.Engine
}

// New creates a Server with all routes registered.
func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 25
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{opts: opts, log: opts.Log.Named("http"), engine: gin.New()}
	s.engine.Use(gin.Recovery(), s.accessLog())

	api := s.engine.Group("/api")
	api.POST("/ai/generate", s.handleGenerate)
	api.POST("/instagram/analyze", s.handleReel)
	api.POST("/infographic/generate", s.handleInfographic)
	api.POST("/ai/improve", s.handleImprove)
	api.POST("/ai/analyze", s.handleAnalyze)
	api.POST("/instagram/upload", s.handleUpload)

	api.GET("/costs/summary", s.handleCostSummary)
	api.GET("/costs/operations", s.handleCostOperations)
	api.GET("/costs/export", s.handleCostExport)
	api.GET("/costs/recent", s.handleRecentCosts)
	api.GET("/budget", s.handleBudget)
	api.GET("/logs", s.handleLogs)
	api.GET("/posts", s.handleListPosts)
	api.GET("/posts/:id", s.handleGetPost)
	api.PATCH("/posts/:id", s.handleUpdatePost)
	api.PUT("/posts/:id/image", s.handlePostImage)

	if opts.ArtifactsDir != "" {
		s.engine.Static("/artifacts", opts.ArtifactsDir)
	}
	s.engine.GET("/healthz", s.handleHealth)
	if opts.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("postwright listening", "addr", s.opts.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debugw("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.opts.Budget != nil {
		if h, err := s.opts.Budget.Health(c.Request.Context()); err == nil {
			body["budget"] = h
		}
	}
	c.JSON(http.StatusOK, body)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrBudgetExceeded):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Errorw("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
