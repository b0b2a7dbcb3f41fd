package mongo

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jwalitptl/repair-desk/internal/model"
)

type userRepository struct {
	s *Store
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	ctx, span := startSpan(ctx, "MongoCreateUser")
	defer span.End()

	user.Email = strings.ToLower(user.Email)
	if _, err := r.s.users.InsertOne(ctx, user); err != nil {
		return fail(span, translate(err), "Failed to insert user")
	}
	span.SetAttributes(attribute.String("userID", user.ID), attribute.String("role", string(user.Role)))
	return nil
}

func (r *userRepository) Get(ctx context.Context, id string) (*model.User, error) {
	ctx, span := startSpan(ctx, "MongoGetUser")
	defer span.End()

	var user model.User
	if err := r.s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, fail(span, translate(err), "Failed to find user")
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, span := startSpan(ctx, "MongoGetUserByEmail")
	defer span.End()

	var user model.User
	if err := r.s.users.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&user); err != nil {
		return nil, fail(span, translate(err), "Failed to find user")
	}
	return &user, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role model.Role) ([]*model.User, error) {
	ctx, span := startSpan(ctx, "MongoListUsersByRole")
	defer span.End()

	cursor, err := r.s.users.Find(ctx, bson.M{"role": role})
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to find users: %w", err), "Failed to find users")
	}
	defer cursor.Close(ctx)

	users := []*model.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fail(span, fmt.Errorf("failed to decode users: %w", err), "Failed to decode users")
	}
	return users, nil
}
