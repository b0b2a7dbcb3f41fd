package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository/memory"
)

func TestRecord(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore().Repositories()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewRecorder(store.Outbox).WithClock(func() time.Time { return now })

	repair := &model.RepairRequest{
		ID:                 "rep-1",
		CustomerID:         "cust-1",
		DamageType:         "Broken grille",
		Status:             model.RepairStatusInRepair,
		AssignedTechnician: "tech-1",
		RepairProgress:     25,
	}
	evt := &model.RepairEvent{Type: model.EventProgressUpdated, Milestone: true}

	out, err := r.Record(ctx, evt, repair)
	require.NoError(t, err)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, evt.ID, out.ID)
	assert.Equal(t, "rep-1", out.AggregateID)
	assert.Equal(t, model.OutboxStatusPending, out.Status)
	assert.Equal(t, now, out.CreatedAt)

	decoded, err := out.RepairEvent()
	require.NoError(t, err)
	assert.Equal(t, "tech-1", decoded.TechnicianID)
	assert.Equal(t, "cust-1", decoded.CustomerID)
	assert.Equal(t, 25, decoded.Snapshot.RepairProgress)
	assert.True(t, decoded.Milestone)

	_, err = r.Record(ctx, evt, repair)
	assert.Error(t, err, "same event ID twice")
}
