package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/repair-desk/internal/repository"
)

//go:embed schema.sql
var schema string

// Migrate creates the tables if they are missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

type repairRepository struct {
	BaseRepository
}

type technicianRepository struct {
	BaseRepository
}

type notificationRepository struct {
	BaseRepository
}

type outboxRepository struct {
	BaseRepository
}

type userRepository struct {
	BaseRepository
}

func NewRepairRepository(base BaseRepository) repository.RepairRepository {
	return &repairRepository{base}
}

func NewTechnicianRepository(base BaseRepository) repository.TechnicianRepository {
	return &technicianRepository{base}
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

// Repositories wires the postgres backend into a repository.Store.
func Repositories(db *sqlx.DB) *repository.Store {
	base := NewBaseRepository(db)
	return &repository.Store{
		Tx:            &base,
		Repairs:       NewRepairRepository(base),
		Technicians:   NewTechnicianRepository(base),
		Notifications: NewNotificationRepository(base),
		Outbox:        NewOutboxRepository(base),
		Users:         NewUserRepository(base),
		Ping:          db.PingContext,
		Close:         func(context.Context) error { return db.Close() },
	}
}
