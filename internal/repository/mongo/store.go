// Package mongo is the document-store repository backend.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jwalitptl/repair-desk/internal/repository"
)

const tracerName = "repair-desk/mongo"

// Store holds the collections of the repair database.
type Store struct {
	client        *mongo.Client
	repairs       *mongo.Collection
	technicians   *mongo.Collection
	notifications *mongo.Collection
	outbox        *mongo.Collection
	users         *mongo.Collection
}

// Connect dials uri and pings the primary.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, nil
}

func NewStore(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:        client,
		repairs:       db.Collection("repair_requests"),
		technicians:   db.Collection("technicians"),
		notifications: db.Collection("repair_notifications"),
		outbox:        db.Collection("outbox_events"),
		users:         db.Collection("users"),
	}
}

// Repositories wires the mongo backend into a repository.Store.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Tx:            s,
		Repairs:       &repairRepository{s},
		Technicians:   &technicianRepository{s},
		Notifications: &notificationRepository{s},
		Outbox:        &outboxRepository{s},
		Users:         &userRepository{s},
		Ping: func(ctx context.Context) error {
			return s.client.Ping(ctx, readpref.Primary())
		},
		Close: func(ctx context.Context) error {
			return s.client.Disconnect(ctx)
		},
	}
}

// EnsureIndexes creates the indexes the repositories rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, span := startSpan(ctx, "MongoEnsureIndexes")
	defer span.End()

	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.repairs: {
			{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "assigned_technician", Value: 1}, {Key: "status", Value: 1}}},
		},
		s.notifications: {
			{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "event_id", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		},
		s.outbox: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		s.users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "role", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fail(span, fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err), "Failed to create indexes")
		}
	}
	return nil
}

// WithinTx runs fn inside a multi-document transaction. Nested calls join the
// outer session.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}

func fail(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return err
}

// translate maps driver errors onto repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return repository.ErrDuplicate
	}
	return err
}

func findOptions(limit, offset int, sort bson.D) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return opts
}

// versionMiss tells a missing document apart from a stale version.
func versionMiss(ctx context.Context, coll *mongo.Collection, id string) error {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}
