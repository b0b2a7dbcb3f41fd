// Package app assembles the repair desk from configuration. Both binaries and
// the admin CLI build their dependencies here.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/repair-desk/internal/config"
	"github.com/jwalitptl/repair-desk/internal/email"
	"github.com/jwalitptl/repair-desk/internal/handler/objects"
	promhandler "github.com/jwalitptl/repair-desk/internal/handler/prometheus"
	"github.com/jwalitptl/repair-desk/internal/repository"
	"github.com/jwalitptl/repair-desk/internal/repository/memory"
	"github.com/jwalitptl/repair-desk/internal/repository/mongo"
	"github.com/jwalitptl/repair-desk/internal/repository/postgres"
	"github.com/jwalitptl/repair-desk/internal/service/notification"
	"github.com/jwalitptl/repair-desk/internal/service/repair"
	"github.com/jwalitptl/repair-desk/internal/service/technician"
	"github.com/jwalitptl/repair-desk/internal/storage"
	"github.com/jwalitptl/repair-desk/pkg/logger"
	"github.com/jwalitptl/repair-desk/pkg/messaging"
	"github.com/jwalitptl/repair-desk/pkg/messaging/kafka"
	"github.com/jwalitptl/repair-desk/pkg/messaging/redis"
	"github.com/jwalitptl/repair-desk/pkg/metrics"
	"github.com/jwalitptl/repair-desk/pkg/worker"
)

// EventsChannel carries lifecycle events when Kafka is disabled.
const EventsChannel = "repair-events"

type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Store     *repository.Store
	Broker    messaging.Broker
	Publisher messaging.Publisher
	Mailer    email.Sender
	Objects   storage.ObjectStore

	// MemoryObjects is set when images are kept in process and must be
	// served by the API itself.
	MemoryObjects *storage.MemoryStore

	Technicians   *technician.Service
	Notifications *notification.Service
	Outbox        *worker.OutboxProcessor
	Repairs       *repair.Service

	closers []func(ctx context.Context) error
}

// NewLogger builds the process logger and installs it as the zerolog global.
func NewLogger(cfg config.LoggingConfig) *logger.Logger {
	l := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Format != "console",
	})
	log.Logger = l.ZL
	return l
}

// OpenStore connects the configured storage driver.
func OpenStore(ctx context.Context, cfg config.StorageConfig, l *logger.Logger) (*repository.Store, error) {
	switch cfg.Driver {
	case "memory":
		l.Warn("Using in-memory storage, data is lost on restart")
		return memory.NewStore().Repositories(), nil
	case "postgres":
		db, err := postgres.NewDB(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return postgres.Repositories(db), nil
	case "mongo":
		client, err := mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Timeout)
		if err != nil {
			return nil, err
		}
		s := mongo.NewStore(client, cfg.Mongo.Database)
		if cfg.Mongo.EnsureIndex {
			if err := s.EnsureIndexes(ctx); err != nil {
				_ = client.Disconnect(ctx)
				return nil, err
			}
		}
		return s.Repositories(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// New connects every enabled backend and wires the services. Call Close on
// the result even when New fails part way.
func New(ctx context.Context, cfg *config.Config, l *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: l, Registry: promhandler.NewRegistry()}
	a.Metrics = metrics.NewMetrics(cfg.Metrics.Namespace, a.Registry)

	store, err := OpenStore(ctx, cfg.Storage, l)
	if err != nil {
		return a, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	if cfg.Redis.Enabled {
		broker, err := redis.NewRedisBroker(redis.Config{URL: cfg.Redis.URL, MaxRetries: 3}, &l.ZL)
		if err != nil {
			return a, err
		}
		a.Broker = broker
		a.closers = append(a.closers, func(context.Context) error { return broker.Close() })
		a.Publisher = messaging.NewBrokerPublisher(broker, EventsChannel)
	}

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.Kafka.ClientID,
		}, l)
		if err != nil {
			return a, err
		}
		a.Publisher = producer
		a.closers = append(a.closers, func(context.Context) error {
			producer.Close()
			return nil
		})
	}

	if cfg.SMTP.Enabled {
		a.Mailer = email.NewSMTPSender(email.SMTPConfig{
			Host:          cfg.SMTP.Host,
			Port:          cfg.SMTP.Port,
			Username:      cfg.SMTP.Username,
			Password:      cfg.SMTP.Password,
			From:          cfg.SMTP.From,
			RatePerSecond: cfg.SMTP.RatePerSecond,
			Burst:         cfg.SMTP.Burst,
		})
	} else {
		a.Mailer = email.NewLogSender(l)
	}

	if cfg.Minio.Enabled {
		minio, err := storage.NewMinioStore(ctx, cfg.Minio)
		if err != nil {
			return a, err
		}
		a.Objects = minio
	} else {
		a.MemoryObjects = storage.NewMemoryStore(objects.Prefix)
		a.Objects = a.MemoryObjects
	}

	a.Technicians = technician.NewService(store, l)
	a.Notifications = notification.NewService(store, a.Mailer, a.Broker, l, a.Metrics)
	a.Outbox = worker.NewOutboxProcessor(store.Outbox, a.Notifications, a.Publisher, OutboxConfig(cfg.Outbox), l, a.Metrics)
	a.Repairs = repair.NewService(store, a.Technicians, a.dispatcher(), l, a.Metrics).
		WithObjectStore(a.Objects, cfg.Minio.PresignExpiry)

	return a, nil
}

// dispatcher delivers events inline when the processor runs in-process. A
// standalone worker picks them up from the outbox otherwise.
func (a *App) dispatcher() repair.Dispatcher {
	if a.Config.Outbox.Embedded {
		return a.Outbox
	}
	return nil
}

func OutboxConfig(cfg config.OutboxConfig) worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     cfg.BatchSize,
		PollInterval:  cfg.PollInterval,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		ClaimTimeout:  cfg.ClaimTimeout,
		Retention:     cfg.Retention,
	}
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.Log.Error(err, "Failed to close resource")
		}
	}
	a.closers = nil
}
