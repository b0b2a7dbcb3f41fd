package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/repair-desk/internal/app"
	"github.com/jwalitptl/repair-desk/internal/config"
	"github.com/jwalitptl/repair-desk/internal/handler/health"
	promhandler "github.com/jwalitptl/repair-desk/internal/handler/prometheus"
	"github.com/jwalitptl/repair-desk/internal/middleware"
	"github.com/jwalitptl/repair-desk/pkg/logger"
)

func setupHealthCheck(port int, checks map[string]health.Check, a *app.App, l *logger.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.Recovery())
	health.NewHandler(checks).RegisterRoutes(engine)
	engine.GET("/metrics", promhandler.Handler(a.Registry))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: engine}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal(err, "Health check server failed")
		}
	}()
	return srv
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	// The worker owns delivery, so nothing dispatches inline here.
	cfg.Outbox.Embedded = false

	l := app.NewLogger(cfg.Logging)
	l = l.WithFields(map[string]interface{}{"component": "outbox-worker"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, l)
	defer a.Close(context.Background())
	if err != nil {
		l.Fatal(err, "Failed to initialize worker")
	}

	srv := setupHealthCheck(cfg.Outbox.HealthPort, map[string]health.Check{"store": a.Store.Ping}, a, l)

	a.Outbox.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error(err, "Health server forced to shutdown")
	}
	l.Info("Worker exited")
}
