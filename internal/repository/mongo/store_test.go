package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
)

func TestRepairRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("get found", func(mt *mtest.T) {
		repos := NewStore(mt.Client, "test").Repositories()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.repair_requests", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "r1"},
			{Key: "customer_id", Value: "c1"},
			{Key: "damage_type", Value: "cracked handle"},
			{Key: "status", Value: "Pending"},
			{Key: "version", Value: int64(2)},
		}))

		r, err := repos.Repairs.Get(ctx, "r1")
		require.NoError(mt, err)
		assert.Equal(mt, "c1", r.CustomerID)
		assert.Equal(mt, model.RepairStatusPending, r.Status)
		assert.Equal(mt, int64(2), r.Version)
	})

	mt.Run("get missing", func(mt *mtest.T) {
		repos := NewStore(mt.Client, "test").Repositories()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.repair_requests", mtest.FirstBatch))

		_, err := repos.Repairs.Get(ctx, "nope")
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})

	mt.Run("update bumps version", func(mt *mtest.T) {
		repos := NewStore(mt.Client, "test").Repositories()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		r := &model.RepairRequest{ID: "r1", Status: model.RepairStatusApproved, Version: 3}
		require.NoError(mt, repos.Repairs.Update(ctx, r, 3))
		assert.Equal(mt, int64(4), r.Version)
	})

	mt.Run("update stale version", func(mt *mtest.T) {
		repos := NewStore(mt.Client, "test").Repositories()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, "test.repair_requests", mtest.FirstBatch, bson.D{{Key: "n", Value: 1}}),
		)

		r := &model.RepairRequest{ID: "r1", Version: 1}
		err := repos.Repairs.Update(ctx, r, 1)
		assert.ErrorIs(mt, err, repository.ErrConflict)
		assert.Equal(mt, int64(1), r.Version)
	})

	mt.Run("count active", func(mt *mtest.T) {
		repos := NewStore(mt.Client, "test").Repositories()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.repair_requests", mtest.FirstBatch, bson.D{{Key: "n", Value: 7}}))

		n, err := repos.Repairs.CountActiveByTechnician(ctx, "t1")
		require.NoError(mt, err)
		assert.Equal(mt, 7, n)
	})
}

func TestNotificationRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("duplicate event id", func(mt *mtest.T) {
		repos := NewStore(mt.Client, "test").Repositories()
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repos.Notifications.Create(ctx, &model.RepairNotification{ID: "n1", EventID: "e1", CreatedAt: time.Now()})
		assert.ErrorIs(mt, err, repository.ErrDuplicate)
	})

	mt.Run("mark read wrong customer", func(mt *mtest.T) {
		repos := NewStore(mt.Client, "test").Repositories()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := repos.Notifications.MarkRead(ctx, "c2", "n1", time.Now())
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})

	mt.Run("list", func(mt *mtest.T) {
		repos := NewStore(mt.Client, "test").Repositories()
		first := mtest.CreateCursorResponse(1, "test.repair_notifications", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "n1"},
			{Key: "customer_id", Value: "c1"},
			{Key: "type", Value: "repair_approved"},
			{Key: "title", Value: "Repair Request Approved"},
		})
		end := mtest.CreateCursorResponse(0, "test.repair_notifications", mtest.NextBatch)
		mt.AddMockResponses(first, end)

		list, err := repos.Notifications.List(ctx, "c1", &model.NotificationFilter{Limit: 10})
		require.NoError(mt, err)
		require.Len(mt, list, 1)
		assert.Equal(mt, model.NotificationRepairApproved, list[0].Type)
	})
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(mongo.ErrNoDocuments), repository.ErrNotFound)
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}
	assert.ErrorIs(t, translate(dup), repository.ErrDuplicate)
}
