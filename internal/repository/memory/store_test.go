package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
)

func TestRepairUpdateVersionCheck(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()

	r := &model.RepairRequest{ID: "r1", CustomerID: "c1", DamageType: "crack", Status: model.RepairStatusPending}
	require.NoError(t, repos.Repairs.Create(ctx, r))

	stored, err := repos.Repairs.Get(ctx, "r1")
	require.NoError(t, err)
	stored.Status = model.RepairStatusApproved
	require.NoError(t, repos.Repairs.Update(ctx, stored, 0))
	assert.Equal(t, int64(1), stored.Version)

	stale := &model.RepairRequest{ID: "r1", Status: model.RepairStatusRejected}
	assert.ErrorIs(t, repos.Repairs.Update(ctx, stale, 0), repository.ErrConflict)

	_, err = repos.Repairs.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	boom := errors.New("boom")

	err := repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, repos.Repairs.Create(ctx, &model.RepairRequest{ID: "r1"}))
		require.NoError(t, repos.Outbox.Create(ctx, &model.OutboxEvent{ID: "e1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repos.Repairs.Get(ctx, "r1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	n, err := repos.Outbox.ClaimBatch(ctx, 10, time.Now(), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, n)
}

func TestCountActiveByTechnician(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	for i, st := range []model.RepairStatus{
		model.RepairStatusInRepair,
		model.RepairStatusHalfwayCompleted,
		model.RepairStatusReadyForPickup,
		model.RepairStatusCompleted,
	} {
		require.NoError(t, repos.Repairs.Create(ctx, &model.RepairRequest{
			ID:                 string(rune('a' + i)),
			AssignedTechnician: "t1",
			Status:             st,
		}))
	}
	n, err := repos.Repairs.CountActiveByTechnician(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNotificationDedupeAndScope(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	now := time.Now()

	require.NoError(t, repos.Notifications.Create(ctx, &model.RepairNotification{ID: "n1", CustomerID: "c1", EventID: "e1", CreatedAt: now}))
	assert.ErrorIs(t, repos.Notifications.Create(ctx, &model.RepairNotification{ID: "n2", CustomerID: "c1", EventID: "e1"}), repository.ErrDuplicate)
	require.NoError(t, repos.Notifications.Create(ctx, &model.RepairNotification{ID: "n3", CustomerID: "c1", EventID: "e3", CreatedAt: now.Add(time.Second)}))

	assert.ErrorIs(t, repos.Notifications.MarkRead(ctx, "c2", "n1", now), repository.ErrNotFound)
	require.NoError(t, repos.Notifications.MarkRead(ctx, "c1", "n1", now))

	unread, err := repos.Notifications.CountUnread(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	list, err := repos.Notifications.List(ctx, "c1", &model.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n3", list[0].ID)

	deleted, err := repos.Notifications.DeleteAll(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestOutboxClaim(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	now := time.Now()

	require.NoError(t, repos.Outbox.Create(ctx, &model.OutboxEvent{ID: "e1", CreatedAt: now}))
	claimed, err := repos.Outbox.Claim(ctx, "e1", now)
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusProcessing, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)

	_, err = repos.Outbox.Claim(ctx, "e1", now)
	assert.ErrorIs(t, err, repository.ErrConflict)

	// stale claims are picked up again by the poller
	batch, err := repos.Outbox.ClaimBatch(ctx, 10, now.Add(time.Minute), now.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, 2, batch[0].Attempts)

	require.NoError(t, repos.Outbox.MarkProcessed(ctx, "e1", now))
	removed, err := repos.Outbox.DeleteProcessedBefore(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
