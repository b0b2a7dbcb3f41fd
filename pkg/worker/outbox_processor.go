package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
	"github.com/jwalitptl/repair-desk/pkg/logger"
	"github.com/jwalitptl/repair-desk/pkg/messaging"
	"github.com/jwalitptl/repair-desk/pkg/metrics"
)

// EventHandler runs the side effects of one repair event. Warnings describe
// best-effort failures; an error asks for the event to be retried.
type EventHandler interface {
	Handle(ctx context.Context, evt *model.RepairEvent) ([]string, error)
}

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// ClaimTimeout after which a processing event is considered abandoned.
	ClaimTimeout time.Duration
	// Retention of processed events. Zero keeps them forever.
	Retention       time.Duration
	CleanupInterval time.Duration
}

type OutboxProcessor struct {
	repo      repository.OutboxRepository
	handler   EventHandler
	publisher messaging.Publisher
	config    OutboxProcessorConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	handler EventHandler,
	publisher messaging.Publisher,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	// Config validation instead of defaults
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Hour
	}
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}

	return &OutboxProcessor{
		repo:      repo,
		handler:   handler,
		publisher: publisher,
		config:    config,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (p *OutboxProcessor) WithClock(now func() time.Time) *OutboxProcessor {
	p.now = now
	return p
}

// Dispatch processes freshly committed events in the caller's goroutine.
// Events another worker already claimed are skipped.
func (p *OutboxProcessor) Dispatch(ctx context.Context, events ...*model.OutboxEvent) []string {
	var warnings []string
	for _, e := range events {
		claimed, err := p.repo.Claim(ctx, e.ID, p.now())
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if err != nil {
			p.logger.Error(err, "Failed to claim event", "event_id", e.ID)
			warnings = append(warnings, fmt.Sprintf("notification dispatch deferred: %v", err))
			continue
		}
		warnings = append(warnings, p.processEvent(ctx, claimed)...)
	}
	return warnings
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()
	cleanup := time.NewTicker(p.config.CleanupInterval)
	defer cleanup.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		case <-cleanup.C:
			if p.config.Retention <= 0 {
				continue
			}
			if _, err := p.Cleanup(ctx, p.now().Add(-p.config.Retention)); err != nil {
				p.logger.Error(err, "Failed to clean up processed events")
			}
		}
	}
}

// ProcessBatch claims and processes one batch of due events, returning how
// many were claimed.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	now := p.now()
	var staleBefore time.Time
	if p.config.ClaimTimeout > 0 {
		staleBefore = now.Add(-p.config.ClaimTimeout)
	}

	events, err := p.repo.ClaimBatch(ctx, p.config.BatchSize, now, staleBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to claim events: %w", err)
	}

	for _, event := range events {
		for _, w := range p.processEvent(ctx, event) {
			p.logger.Warn("event processed with warnings", "event_id", event.ID, "warning", w)
		}
	}
	return len(events), nil
}

// Drain processes batches until nothing is due.
func (p *OutboxProcessor) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := p.ProcessBatch(ctx)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
}

func (p *OutboxProcessor) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	n, err := p.repo.DeleteProcessedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	p.metrics.OutboxCleaned.Add(float64(n))
	if n > 0 {
		p.logger.Info("Cleaned up processed events", "count", n)
	}
	return n, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) []string {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	evt, err := event.RepairEvent()
	if err != nil {
		// A payload that cannot be decoded never will be.
		p.fail(ctx, event, err)
		return []string{err.Error()}
	}

	warnings, err := p.handler.Handle(ctx, evt)
	if err == nil {
		err = p.publisher.Publish(ctx, string(evt.Type), evt)
	}
	if err != nil {
		p.logger.Error(err, "Failed to process event",
			"event_id", event.ID,
			"event_type", event.EventType,
			"attempt", event.Attempts)
		p.retryOrFail(ctx, event, err)
		return append(warnings, fmt.Sprintf("notification dispatch deferred: %v", err))
	}

	if err := p.repo.MarkProcessed(ctx, event.ID, p.now()); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID)
	}
	p.metrics.OutboxEventsProcessed.Inc()
	return warnings
}

// retryOrFail schedules another attempt with linear backoff, or gives up once
// the attempts are used up.
func (p *OutboxProcessor) retryOrFail(ctx context.Context, event *model.OutboxEvent, cause error) {
	if event.Attempts >= p.config.RetryAttempts {
		p.fail(ctx, event, cause)
		return
	}
	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	retryAt := p.now().Add(p.config.RetryDelay * time.Duration(event.Attempts))
	if err := p.repo.MarkRetry(ctx, event.ID, cause.Error(), retryAt); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID)
	}
}

func (p *OutboxProcessor) fail(ctx context.Context, event *model.OutboxEvent, cause error) {
	p.metrics.OutboxEventsFailed.Inc()
	if err := p.repo.MarkFailed(ctx, event.ID, cause.Error()); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID)
	}
}
