package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jwalitptl/repair-desk/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("version conflict")
	ErrDuplicate = errors.New("duplicate record")
)

// All repository interfaces in one file
type (
	// Transactor runs fn inside one store transaction. Repositories called with
	// the ctx passed to fn join that transaction.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	RepairRepository interface {
		Create(ctx context.Context, repair *model.RepairRequest) error
		Get(ctx context.Context, id string) (*model.RepairRequest, error)
		// Update writes repair if the stored version equals expectedVersion and
		// bumps repair.Version. ErrConflict otherwise.
		Update(ctx context.Context, repair *model.RepairRequest, expectedVersion int64) error
		Delete(ctx context.Context, id string) error
		List(ctx context.Context, filter *model.RepairFilter) ([]*model.RepairRequest, error)
		CountActiveByTechnician(ctx context.Context, technicianID string) (int, error)
	}

	TechnicianRepository interface {
		Create(ctx context.Context, technician *model.Technician) error
		Get(ctx context.Context, id string) (*model.Technician, error)
		Update(ctx context.Context, technician *model.Technician, expectedVersion int64) error
		Delete(ctx context.Context, id string) error
		List(ctx context.Context, filter *model.TechnicianFilter) ([]*model.Technician, error)
	}

	NotificationRepository interface {
		// Create returns ErrDuplicate when a notification for the same EventID exists.
		Create(ctx context.Context, notification *model.RepairNotification) error
		List(ctx context.Context, customerID string, filter *model.NotificationFilter) ([]*model.RepairNotification, error)
		MarkRead(ctx context.Context, customerID, id string, at time.Time) error
		MarkAllRead(ctx context.Context, customerID string, at time.Time) (int64, error)
		Delete(ctx context.Context, customerID, id string) error
		DeleteAll(ctx context.Context, customerID string) (int64, error)
		CountUnread(ctx context.Context, customerID string) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// Claim moves a pending or retry event to processing. ErrConflict if
		// someone else holds it or it is already done.
		Claim(ctx context.Context, id string, now time.Time) (*model.OutboxEvent, error)
		// ClaimBatch claims up to limit due events, including processing
		// events claimed before staleBefore.
		ClaimBatch(ctx context.Context, limit int, now, staleBefore time.Time) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id string, at time.Time) error
		MarkRetry(ctx context.Context, id string, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id string, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id string) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		ListByRole(ctx context.Context, role model.Role) ([]*model.User, error)
	}
)

// Store bundles the repositories of one backend.
type Store struct {
	Tx            Transactor
	Repairs       RepairRepository
	Technicians   TechnicianRepository
	Notifications NotificationRepository
	Outbox        OutboxRepository
	Users         UserRepository
	// Ping checks backend connectivity for the readiness check.
	Ping  func(ctx context.Context) error
	Close func(ctx context.Context) error
}

// RetryOnConflict runs fn in a transaction, retrying the whole transaction
// when it fails with ErrConflict.
func RetryOnConflict(ctx context.Context, tx Transactor, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = tx.WithinTx(ctx, fn)
		if !errors.Is(err, ErrConflict) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
