package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/repair-desk/internal/app"
	"github.com/jwalitptl/repair-desk/internal/config"
	authHandler "github.com/jwalitptl/repair-desk/internal/handler/auth"
	"github.com/jwalitptl/repair-desk/internal/handler/health"
	notificationHandler "github.com/jwalitptl/repair-desk/internal/handler/notification"
	"github.com/jwalitptl/repair-desk/internal/handler/objects"
	repairHandler "github.com/jwalitptl/repair-desk/internal/handler/repair"
	technicianHandler "github.com/jwalitptl/repair-desk/internal/handler/technician"
	"github.com/jwalitptl/repair-desk/internal/middleware"
	"github.com/jwalitptl/repair-desk/internal/router"
	authService "github.com/jwalitptl/repair-desk/internal/service/auth"
	"github.com/jwalitptl/repair-desk/pkg/auth"
	"github.com/jwalitptl/repair-desk/pkg/discovery/consul"
	"github.com/jwalitptl/repair-desk/pkg/security"
	"github.com/jwalitptl/repair-desk/pkg/tracing"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := app.NewLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Init(ctx, tracing.Config{
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.Tracing.ServiceName,
			Insecure:    cfg.Tracing.Insecure,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			logger.Fatal(err, "Failed to initialize tracer")
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error(err, "Failed to flush traces")
			}
		}()
	}

	a, err := app.New(ctx, cfg, logger)
	defer a.Close(context.Background())
	if err != nil {
		logger.Fatal(err, "Failed to initialize application")
	}

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	authSvc := authService.NewService(a.Store.Users, jwtSvc, security.NewBcryptHasher(0), logger)

	checks := map[string]health.Check{"store": a.Store.Ping}
	if a.Broker != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.Broker.Publish(ctx, "health", "ping")
		}
	}

	authH := authHandler.NewHandler(authSvc)
	routerCfg := router.RouterConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		Mode:         cfg.Server.Mode,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		RateLimit:    cfg.RateLimit,
		CORS:         cfg.CORS,
		MetricsPath:  cfg.Metrics.Path,
	}
	if cfg.Metrics.Enabled {
		routerCfg.Gatherer = a.Registry
	}
	if a.MemoryObjects != nil {
		routerCfg.Objects = objects.NewHandler(a.MemoryObjects)
	}
	r := router.NewRouter(routerCfg, logger, a.Metrics,
		middleware.NewAuthMiddleware(jwtSvc),
		health.NewHandler(checks),
		[]router.PublicHandler{authH},
		authH,
		repairHandler.NewHandler(a.Repairs),
		technicianHandler.NewHandler(a.Technicians),
		notificationHandler.NewHandler(a.Notifications),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Unread counts cached here are evicted when the worker writes.
	if err := a.Notifications.WatchInvalidations(ctx); err != nil {
		logger.Fatal(err, "Failed to watch unread invalidations")
	}

	// Events that failed inline dispatch are retried by the poller.
	if cfg.Outbox.Embedded {
		go a.Outbox.Start(ctx)
	}

	var registrar *consul.Registrar
	if cfg.Consul.Enabled {
		host := cfg.Consul.ServiceHost
		if host == "" {
			host, _ = os.Hostname()
		}
		registrar, err = consul.NewRegistrar(cfg.Consul.Address, consul.Registration{
			Name: cfg.Consul.ServiceName,
			Host: host,
			Port: cfg.Server.Port,
		})
		if err != nil {
			logger.Fatal(err, "Failed to create consul registrar")
		}
		if err := registrar.Register(); err != nil {
			logger.Fatal(err, "Failed to register with consul")
		}
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Server.Port, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err, "Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	if registrar != nil {
		if err := registrar.Deregister(); err != nil {
			logger.Error(err, "Failed to deregister from consul")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "Server forced to shutdown")
	}

	logger.Info("Server exited properly")
}
