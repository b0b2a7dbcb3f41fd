package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
)

type repairRepository struct {
	s *Store
}

func (r *repairRepository) Create(ctx context.Context, repair *model.RepairRequest) error {
	ctx, span := startSpan(ctx, "MongoCreateRepair")
	defer span.End()

	if _, err := r.s.repairs.InsertOne(ctx, repair); err != nil {
		return fail(span, translate(err), "Failed to insert repair")
	}
	span.SetAttributes(
		attribute.String("repairID", repair.ID),
		attribute.String("customerID", repair.CustomerID),
	)
	return nil
}

func (r *repairRepository) Get(ctx context.Context, id string) (*model.RepairRequest, error) {
	ctx, span := startSpan(ctx, "MongoGetRepair")
	defer span.End()

	var repair model.RepairRequest
	if err := r.s.repairs.FindOne(ctx, bson.M{"_id": id}).Decode(&repair); err != nil {
		return nil, fail(span, translate(err), "Failed to find repair")
	}
	span.SetAttributes(attribute.String("repairID", id))
	return &repair, nil
}

func (r *repairRepository) Update(ctx context.Context, repair *model.RepairRequest, expectedVersion int64) error {
	ctx, span := startSpan(ctx, "MongoUpdateRepair")
	defer span.End()

	next := *repair
	next.Version = expectedVersion + 1
	res, err := r.s.repairs.ReplaceOne(ctx, bson.M{"_id": repair.ID, "version": expectedVersion}, &next)
	if err != nil {
		return fail(span, fmt.Errorf("failed to update repair: %w", err), "Failed to update repair")
	}
	if res.MatchedCount == 0 {
		return fail(span, versionMiss(ctx, r.s.repairs, repair.ID), "Version mismatch")
	}
	repair.Version = next.Version
	span.SetAttributes(
		attribute.String("repairID", repair.ID),
		attribute.String("status", string(repair.Status)),
		attribute.Int64("version", repair.Version),
	)
	return nil
}

func (r *repairRepository) Delete(ctx context.Context, id string) error {
	ctx, span := startSpan(ctx, "MongoDeleteRepair")
	defer span.End()

	res, err := r.s.repairs.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fail(span, err, "Failed to delete repair")
	}
	if res.DeletedCount == 0 {
		return fail(span, repository.ErrNotFound, "Repair not found")
	}
	return nil
}

func (r *repairRepository) List(ctx context.Context, filter *model.RepairFilter) ([]*model.RepairRequest, error) {
	ctx, span := startSpan(ctx, "MongoListRepairs")
	defer span.End()

	if filter == nil {
		filter = &model.RepairFilter{}
	}
	query := bson.M{}
	if filter.CustomerID != "" {
		query["customer_id"] = filter.CustomerID
	}
	if filter.TechnicianID != "" {
		query["assigned_technician"] = filter.TechnicianID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	cursor, err := r.s.repairs.Find(ctx, query, findOptions(filter.Limit, filter.Offset, bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to find repairs: %w", err), "Failed to find repairs")
	}
	defer cursor.Close(ctx)

	repairs := []*model.RepairRequest{}
	if err := cursor.All(ctx, &repairs); err != nil {
		return nil, fail(span, fmt.Errorf("failed to decode repairs: %w", err), "Failed to decode repairs")
	}
	span.SetAttributes(attribute.Int("repairCount", len(repairs)))
	return repairs, nil
}

func (r *repairRepository) CountActiveByTechnician(ctx context.Context, technicianID string) (int, error) {
	ctx, span := startSpan(ctx, "MongoCountActiveRepairs")
	defer span.End()

	n, err := r.s.repairs.CountDocuments(ctx, bson.M{
		"assigned_technician": technicianID,
		"status":              bson.M{"$in": model.ActiveRepairStatuses},
	})
	if err != nil {
		return 0, fail(span, fmt.Errorf("failed to count active repairs: %w", err), "Failed to count repairs")
	}
	span.SetAttributes(
		attribute.String("technicianID", technicianID),
		attribute.Int64("active", n),
	)
	return int(n), nil
}
