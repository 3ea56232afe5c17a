// Package server assembles the HTTP router and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/admin"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/auth"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/likes"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/logging"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/metrics"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/posts"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/stats"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/tags"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ShutdownTimeout bounds how long in-flight requests get after a stop signal
const ShutdownTimeout = 10 * time.Second

// Deps are the collaborators the router wires into handlers
type Deps struct {
	DB    *gorm.DB
	Likes likes.Store
	Log   *zap.Logger
	// StatsTopN is the ranking length of the stats report
	StatsTopN int
}

// NewRouter creates a gin engine with every route registered
func NewRouter(d Deps) *gin.Engine {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(logging.RequestID(), logging.GinZap(log), logging.Recovery(log), metrics.Middleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	store := posts.NewStore(d.DB, log)

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"service": "inkwell",
			})
		})

		auth.NewHandler(d.DB, log).RegisterRoutes(api.Group("/auth"))
		posts.NewHandler(store, d.Likes, log).RegisterRoutes(api)
		tags.NewHandler(d.DB, log).RegisterRoutes(api)
		likes.NewHandler(d.Likes, d.DB, log).RegisterRoutes(api)
		stats.NewHandler(stats.NewAggregator(d.DB, d.Likes, d.StatsTopN, log)).RegisterRoutes(api)
		admin.NewHandler(d.DB, store, log).RegisterRoutes(api)
	}

	return r
}

// Run serves handler on addr until ctx is cancelled, then drains in-flight
// requests for up to ShutdownTimeout
func Run(ctx context.Context, addr string, handler http.Handler, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting inkwell server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down inkwell server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
