package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
)

const outboxColumns = `id, aggregate_id, event_type, payload, status, attempts, error_message,
	retry_at, claimed_at, processed_at, created_at, updated_at`

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	if event.Status == "" {
		event.Status = model.OutboxStatusPending
	}

	query := `
		INSERT INTO outbox_events (
			id, aggregate_id, event_type, payload, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`
	_, err := r.exec(ctx, query,
		event.ID,
		event.AggregateID,
		event.EventType,
		[]byte(event.Payload),
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) Claim(ctx context.Context, id string, now time.Time) (*model.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET status = 'processing', attempts = attempts + 1, claimed_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + outboxColumns
	var event model.OutboxEvent
	if err := r.get(ctx, &event, query, id, now); err != nil {
		if translate(err) == repository.ErrNotFound {
			return nil, r.versionMiss(ctx, "outbox_events", id)
		}
		return nil, fmt.Errorf("failed to claim outbox event: %w", err)
	}
	return &event, nil
}

func (r *outboxRepository) ClaimBatch(ctx context.Context, limit int, now, staleBefore time.Time) ([]*model.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET status = 'processing', attempts = attempts + 1, claimed_at = $2, updated_at = $2
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = 'pending'
			OR (status = 'retry' AND (retry_at IS NULL OR retry_at <= $2))
			OR (status = 'processing' AND claimed_at < $3)
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns
	var events []*model.OutboxEvent
	if err := r.selectRows(ctx, &events, query, limit, now, staleBefore); err != nil {
		return nil, fmt.Errorf("failed to claim outbox batch: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	return r.mark(ctx, `
		UPDATE outbox_events
		SET status = 'processed', processed_at = $2, error_message = NULL, updated_at = $2
		WHERE id = $1
	`, id, at)
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id string, errMsg string, retryAt time.Time) error {
	return r.mark(ctx, `
		UPDATE outbox_events
		SET status = 'retry', error_message = $2, retry_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id, errMsg, retryAt)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.mark(ctx, `
		UPDATE outbox_events
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1
	`, id, errMsg)
}

func (r *outboxRepository) mark(ctx context.Context, query string, args ...interface{}) error {
	rows, err := r.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update outbox event: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = 'processed'
		AND processed_at < $1
	`
	rows, err := r.exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return rows, nil
}
