package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
)

type outboxRepository struct {
	s *Store
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.outbox[event.ID]; ok {
		return repository.ErrDuplicate
	}
	if event.Status == "" {
		event.Status = model.OutboxStatusPending
	}
	r.s.outbox[event.ID] = *event
	return nil
}

func claimable(e model.OutboxEvent, now, staleBefore time.Time) bool {
	switch e.Status {
	case model.OutboxStatusPending:
		return true
	case model.OutboxStatusRetry:
		return e.RetryAt == nil || !e.RetryAt.After(now)
	case model.OutboxStatusProcessing:
		return !staleBefore.IsZero() && e.ClaimedAt != nil && e.ClaimedAt.Before(staleBefore)
	}
	return false
}

func (r *outboxRepository) claim(e model.OutboxEvent, now time.Time) *model.OutboxEvent {
	e.Status = model.OutboxStatusProcessing
	e.Attempts++
	e.ClaimedAt = &now
	e.UpdatedAt = now
	r.s.outbox[e.ID] = e
	out := e
	return &out
}

func (r *outboxRepository) Claim(ctx context.Context, id string, now time.Time) (*model.OutboxEvent, error) {
	defer r.s.lock(ctx)()
	e, ok := r.s.outbox[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if e.Status != model.OutboxStatusPending {
		return nil, repository.ErrConflict
	}
	return r.claim(e, now), nil
}

func (r *outboxRepository) ClaimBatch(ctx context.Context, limit int, now, staleBefore time.Time) ([]*model.OutboxEvent, error) {
	defer r.s.lock(ctx)()
	var due []model.OutboxEvent
	for _, e := range r.s.outbox {
		if claimable(e, now, staleBefore) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]*model.OutboxEvent, 0, len(due))
	for _, e := range due {
		out = append(out, r.claim(e, now))
	}
	return out, nil
}

func (r *outboxRepository) update(ctx context.Context, id string, fn func(e *model.OutboxEvent)) error {
	defer r.s.lock(ctx)()
	e, ok := r.s.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&e)
	r.s.outbox[id] = e
	return nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusProcessed
		e.ProcessedAt = &at
		e.ErrorMessage = nil
		e.UpdatedAt = at
	})
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id string, errMsg string, retryAt time.Time) error {
	return r.update(ctx, id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusRetry
		e.ErrorMessage = &errMsg
		e.RetryAt = &retryAt
		e.UpdatedAt = time.Now()
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.update(ctx, id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusFailed
		e.ErrorMessage = &errMsg
		e.UpdatedAt = time.Now()
	})
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	defer r.s.lock(ctx)()
	var count int64
	for id, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.s.outbox, id)
			count++
		}
	}
	return count, nil
}

// Get is used by tests and the CLI to inspect an event.
func (r *outboxRepository) Get(ctx context.Context, id string) (*model.OutboxEvent, error) {
	defer r.s.lock(ctx)()
	e, ok := r.s.outbox[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}
