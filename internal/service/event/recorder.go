// Package event records repair lifecycle events in the outbox.
package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
)

type Recorder struct {
	outbox repository.OutboxRepository
	now    func() time.Time
}

func NewRecorder(outbox repository.OutboxRepository) *Recorder {
	return &Recorder{outbox: outbox, now: time.Now}
}

// WithClock replaces the time source.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record stamps evt with an ID and time, snapshots repair into it and writes
// it to the outbox. Call it with the ctx of the transaction that changed the
// repair so the event commits or rolls back with it.
func (r *Recorder) Record(ctx context.Context, evt *model.RepairEvent, repair *model.RepairRequest) (*model.OutboxEvent, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = r.now()
	}
	evt.RepairID = repair.ID
	evt.CustomerID = repair.CustomerID
	if evt.TechnicianID == "" {
		evt.TechnicianID = repair.AssignedTechnician
	}
	evt.Snapshot = repair.Snapshot()

	out, err := model.NewOutboxEvent(evt)
	if err != nil {
		return nil, err
	}
	if err := r.outbox.Create(ctx, out); err != nil {
		return nil, fmt.Errorf("failed to create outbox event: %w", err)
	}
	return out, nil
}
