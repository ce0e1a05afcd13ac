// Package web – HTTP API (gin): sync, postęp, webhook stanów, kategorie, historia.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/bartek5186/dopi2woo/internal/categories"
	"github.com/bartek5186/dopi2woo/internal/db"
	"github.com/bartek5186/dopi2woo/internal/importer"
	"github.com/bartek5186/dopi2woo/internal/metrics"
	"github.com/bartek5186/dopi2woo/internal/progress"
	"github.com/bartek5186/dopi2woo/internal/syncer"
)

type Sync interface {
	Trigger(ctx context.Context) string
	Token(ctx context.Context) (string, error)
	History(ctx context.Context) ([]syncer.HistoryEntry, error)
	ImportRecords(ctx context.Context, records []json.RawMessage, source string) *importer.Result
}

type Progress interface {
	Get(ctx context.Context, key string) (*progress.Record, bool, error)
}

type Stock interface {
	UpdateStock(ctx context.Context, variantID string, qty int) error
}

type Categories interface {
	ImportFeed(ctx context.Context, raw []byte) (*categories.FeedReport, error)
	ListPending(ctx context.Context) ([]int64, error)
}

type Catalog interface {
	FetchToken(ctx context.Context, username, password string) (string, error)
	FetchCategoryFeed(ctx context.Context, feedURL string) ([]byte, error)
	TestConnection(ctx context.Context, token string) error
}

type Issues interface {
	ListIssues(ctx context.Context, limit int) ([]db.ImportIssue, error)
}

type Deps struct {
	Sync       Sync
	Progress   Progress
	Stock      Stock
	Categories Categories
	Catalog    Catalog
	Issues     Issues
	// FeedURL – aktualny adres feedu XML z configu.
	FeedURL func() string
}

type Server struct {
	log    zerolog.Logger
	deps   Deps
	engine *gin.Engine
}

func New(log zerolog.Logger, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		log:    log.With().Str("component", "web").Logger(),
		deps:   deps,
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.POST("/sync", s.triggerSync)
	api.GET("/sync/progress/:key", s.syncProgress)
	api.POST("/webhook/stock-update", s.stockUpdate)
	api.POST("/categories/import", s.importCategories)
	api.GET("/categories/pending", s.pendingCategories)
	api.GET("/history", s.history)
	api.GET("/issues", s.issues)
	api.POST("/test-connection", s.testConnection)
	api.POST("/token", s.generateToken)
	api.POST("/products/import", s.importProducts)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run nasłuchuje do anulowania ctx, potem łagodne zamknięcie.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("HTTP API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		took := time.Since(start)

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := c.Writer.Status()
		metrics.RecordRequest(c.Request.Method, endpoint, status, took)

		ev := s.log.Debug()
		if status >= http.StatusInternalServerError {
			ev = s.log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("took", took).
			Msg("request")
	}
}
