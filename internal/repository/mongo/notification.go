package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
)

type notificationRepository struct {
	s *Store
}

func (r *notificationRepository) Create(ctx context.Context, n *model.RepairNotification) error {
	ctx, span := startSpan(ctx, "MongoCreateNotification")
	defer span.End()

	if _, err := r.s.notifications.InsertOne(ctx, n); err != nil {
		return fail(span, translate(err), "Failed to insert notification")
	}
	span.SetAttributes(
		attribute.String("notificationID", n.ID),
		attribute.String("customerID", n.CustomerID),
		attribute.String("type", string(n.Type)),
	)
	return nil
}

func (r *notificationRepository) List(ctx context.Context, customerID string, filter *model.NotificationFilter) ([]*model.RepairNotification, error) {
	ctx, span := startSpan(ctx, "MongoListNotifications")
	defer span.End()

	if filter == nil {
		filter = &model.NotificationFilter{}
	}
	query := bson.M{"customer_id": customerID}
	if filter.UnreadOnly {
		query["is_read"] = false
	}
	cursor, err := r.s.notifications.Find(ctx, query, findOptions(filter.Limit, filter.Offset, bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to find notifications: %w", err), "Failed to find notifications")
	}
	defer cursor.Close(ctx)

	out := []*model.RepairNotification{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fail(span, fmt.Errorf("failed to decode notifications: %w", err), "Failed to decode notifications")
	}
	return out, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, customerID, id string, at time.Time) error {
	ctx, span := startSpan(ctx, "MongoMarkNotificationRead")
	defer span.End()

	res, err := r.s.notifications.UpdateOne(ctx,
		bson.M{"_id": id, "customer_id": customerID},
		bson.M{"$set": bson.M{"is_read": true, "read_at": at}},
	)
	if err != nil {
		return fail(span, err, "Failed to mark notification read")
	}
	if res.MatchedCount == 0 {
		return fail(span, repository.ErrNotFound, "Notification not found")
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, customerID string, at time.Time) (int64, error) {
	ctx, span := startSpan(ctx, "MongoMarkAllNotificationsRead")
	defer span.End()

	res, err := r.s.notifications.UpdateMany(ctx,
		bson.M{"customer_id": customerID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true, "read_at": at}},
	)
	if err != nil {
		return 0, fail(span, err, "Failed to mark notifications read")
	}
	return res.ModifiedCount, nil
}

func (r *notificationRepository) Delete(ctx context.Context, customerID, id string) error {
	ctx, span := startSpan(ctx, "MongoDeleteNotification")
	defer span.End()

	res, err := r.s.notifications.DeleteOne(ctx, bson.M{"_id": id, "customer_id": customerID})
	if err != nil {
		return fail(span, err, "Failed to delete notification")
	}
	if res.DeletedCount == 0 {
		return fail(span, repository.ErrNotFound, "Notification not found")
	}
	return nil
}

func (r *notificationRepository) DeleteAll(ctx context.Context, customerID string) (int64, error) {
	ctx, span := startSpan(ctx, "MongoDeleteAllNotifications")
	defer span.End()

	res, err := r.s.notifications.DeleteMany(ctx, bson.M{"customer_id": customerID})
	if err != nil {
		return 0, fail(span, err, "Failed to delete notifications")
	}
	return res.DeletedCount, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, customerID string) (int64, error) {
	ctx, span := startSpan(ctx, "MongoCountUnreadNotifications")
	defer span.End()

	n, err := r.s.notifications.CountDocuments(ctx, bson.M{"customer_id": customerID, "is_read": false})
	if err != nil {
		return 0, fail(span, err, "Failed to count notifications")
	}
	return n, nil
}
