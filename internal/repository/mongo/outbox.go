package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
)

type outboxRepository struct {
	s *Store
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	ctx, span := startSpan(ctx, "MongoCreateOutboxEvent")
	defer span.End()

	if event.Status == "" {
		event.Status = model.OutboxStatusPending
	}
	if _, err := r.s.outbox.InsertOne(ctx, event); err != nil {
		return fail(span, translate(err), "Failed to insert outbox event")
	}
	span.SetAttributes(
		attribute.String("eventID", event.ID),
		attribute.String("eventType", event.EventType),
	)
	return nil
}

func claimUpdate(now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{"status": model.OutboxStatusProcessing, "claimed_at": now, "updated_at": now},
		"$inc": bson.M{"attempts": 1},
	}
}

func (r *outboxRepository) Claim(ctx context.Context, id string, now time.Time) (*model.OutboxEvent, error) {
	ctx, span := startSpan(ctx, "MongoClaimOutboxEvent")
	defer span.End()

	var event model.OutboxEvent
	err := r.s.outbox.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": model.OutboxStatusPending},
		claimUpdate(now),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&event)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fail(span, versionMiss(ctx, r.s.outbox, id), "Event not claimable")
	}
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to claim outbox event: %w", err), "Failed to claim event")
	}
	return &event, nil
}

func (r *outboxRepository) ClaimBatch(ctx context.Context, limit int, now, staleBefore time.Time) ([]*model.OutboxEvent, error) {
	ctx, span := startSpan(ctx, "MongoClaimOutboxBatch")
	defer span.End()

	due := bson.A{
		bson.M{"status": model.OutboxStatusPending},
		bson.M{"status": model.OutboxStatusRetry, "$or": bson.A{
			bson.M{"retry_at": bson.M{"$exists": false}},
			bson.M{"retry_at": bson.M{"$lte": now}},
		}},
	}
	if !staleBefore.IsZero() {
		due = append(due, bson.M{"status": model.OutboxStatusProcessing, "claimed_at": bson.M{"$lt": staleBefore}})
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	events := []*model.OutboxEvent{}
	for len(events) < limit {
		var event model.OutboxEvent
		err := r.s.outbox.FindOneAndUpdate(ctx, bson.M{"$or": due}, claimUpdate(now), opts).Decode(&event)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return events, fail(span, fmt.Errorf("failed to claim outbox batch: %w", err), "Failed to claim batch")
		}
		events = append(events, &event)
	}
	span.SetAttributes(attribute.Int("claimed", len(events)))
	return events, nil
}

func (r *outboxRepository) set(ctx context.Context, span string, id string, fields bson.M) error {
	ctx, s := startSpan(ctx, span)
	defer s.End()

	res, err := r.s.outbox.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fail(s, fmt.Errorf("failed to update outbox event: %w", err), "Failed to update event")
	}
	if res.MatchedCount == 0 {
		return fail(s, repository.ErrNotFound, "Event not found")
	}
	return nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	return r.set(ctx, "MongoMarkOutboxProcessed", id, bson.M{
		"status": model.OutboxStatusProcessed, "processed_at": at, "updated_at": at, "error_message": nil,
	})
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id string, errMsg string, retryAt time.Time) error {
	return r.set(ctx, "MongoMarkOutboxRetry", id, bson.M{
		"status": model.OutboxStatusRetry, "error_message": errMsg, "retry_at": retryAt, "updated_at": time.Now(),
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.set(ctx, "MongoMarkOutboxFailed", id, bson.M{
		"status": model.OutboxStatusFailed, "error_message": errMsg, "updated_at": time.Now(),
	})
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	ctx, span := startSpan(ctx, "MongoDeleteProcessedOutbox")
	defer span.End()

	res, err := r.s.outbox.DeleteMany(ctx, bson.M{
		"status":       model.OutboxStatusProcessed,
		"processed_at": bson.M{"$lt": before},
	})
	if err != nil {
		return 0, fail(span, fmt.Errorf("failed to delete processed events: %w", err), "Failed to delete events")
	}
	return res.DeletedCount, nil
}
