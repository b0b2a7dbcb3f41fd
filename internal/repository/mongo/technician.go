package mongo

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
)

type technicianRepository struct {
	s *Store
}

func (r *technicianRepository) Create(ctx context.Context, technician *model.Technician) error {
	ctx, span := startSpan(ctx, "MongoCreateTechnician")
	defer span.End()

	if _, err := r.s.technicians.InsertOne(ctx, technician); err != nil {
		return fail(span, translate(err), "Failed to insert technician")
	}
	span.SetAttributes(attribute.String("technicianID", technician.ID))
	return nil
}

func (r *technicianRepository) Get(ctx context.Context, id string) (*model.Technician, error) {
	ctx, span := startSpan(ctx, "MongoGetTechnician")
	defer span.End()

	var technician model.Technician
	if err := r.s.technicians.FindOne(ctx, bson.M{"_id": id}).Decode(&technician); err != nil {
		return nil, fail(span, translate(err), "Failed to find technician")
	}
	return &technician, nil
}

func (r *technicianRepository) Update(ctx context.Context, technician *model.Technician, expectedVersion int64) error {
	ctx, span := startSpan(ctx, "MongoUpdateTechnician")
	defer span.End()

	next := *technician
	next.Version = expectedVersion + 1
	res, err := r.s.technicians.ReplaceOne(ctx, bson.M{"_id": technician.ID, "version": expectedVersion}, &next)
	if err != nil {
		return fail(span, fmt.Errorf("failed to update technician: %w", err), "Failed to update technician")
	}
	if res.MatchedCount == 0 {
		return fail(span, versionMiss(ctx, r.s.technicians, technician.ID), "Version mismatch")
	}
	technician.Version = next.Version
	span.SetAttributes(
		attribute.String("technicianID", technician.ID),
		attribute.Bool("available", technician.Available),
		attribute.Int("activeRepairs", technician.ActiveRepairs),
	)
	return nil
}

func (r *technicianRepository) Delete(ctx context.Context, id string) error {
	ctx, span := startSpan(ctx, "MongoDeleteTechnician")
	defer span.End()

	res, err := r.s.technicians.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fail(span, err, "Failed to delete technician")
	}
	if res.DeletedCount == 0 {
		return fail(span, repository.ErrNotFound, "Technician not found")
	}
	return nil
}

func (r *technicianRepository) List(ctx context.Context, filter *model.TechnicianFilter) ([]*model.Technician, error) {
	ctx, span := startSpan(ctx, "MongoListTechnicians")
	defer span.End()

	query := bson.M{}
	if filter != nil {
		if filter.Available != nil {
			query["available"] = *filter.Available
		}
		if filter.Skill != "" {
			query["skills"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(filter.Skill) + "$", Options: "i"}
		}
	}

	cursor, err := r.s.technicians.Find(ctx, query, findOptions(0, 0, bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to find technicians: %w", err), "Failed to find technicians")
	}
	defer cursor.Close(ctx)

	technicians := []*model.Technician{}
	if err := cursor.All(ctx, &technicians); err != nil {
		return nil, fail(span, fmt.Errorf("failed to decode technicians: %w", err), "Failed to decode technicians")
	}
	span.SetAttributes(attribute.Int("technicianCount", len(technicians)))
	return technicians, nil
}
