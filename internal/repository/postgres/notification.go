package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
)

const notificationColumns = `id, customer_id, repair_request_id, event_id, type, title, message, is_read,
	equipment_type, damage_type, status, repair_progress, created_at, read_at`

type notificationRow struct {
	ID              string         `db:"id"`
	CustomerID      string         `db:"customer_id"`
	RepairRequestID string         `db:"repair_request_id"`
	EventID         sql.NullString `db:"event_id"`
	Type            string         `db:"type"`
	Title           string         `db:"title"`
	Message         string         `db:"message"`
	IsRead          bool           `db:"is_read"`
	EquipmentType   string         `db:"equipment_type"`
	DamageType      string         `db:"damage_type"`
	Status          string         `db:"status"`
	RepairProgress  int            `db:"repair_progress"`
	CreatedAt       time.Time      `db:"created_at"`
	ReadAt          sql.NullTime   `db:"read_at"`
}

func (row notificationRow) toModel() *model.RepairNotification {
	return &model.RepairNotification{
		ID:              row.ID,
		CustomerID:      row.CustomerID,
		RepairRequestID: row.RepairRequestID,
		EventID:         row.EventID.String,
		Type:            model.NotificationType(row.Type),
		Title:           row.Title,
		Message:         row.Message,
		IsRead:          row.IsRead,
		Metadata: model.NotificationMetadata{
			EquipmentType:  row.EquipmentType,
			DamageType:     row.DamageType,
			Status:         model.RepairStatus(row.Status),
			RepairProgress: row.RepairProgress,
		},
		CreatedAt: row.CreatedAt,
		ReadAt:    timePtr(row.ReadAt),
	}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.RepairNotification) error {
	query := `INSERT INTO repair_notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.exec(ctx, query,
		n.ID,
		n.CustomerID,
		n.RepairRequestID,
		nullString(n.EventID),
		string(n.Type),
		n.Title,
		n.Message,
		n.IsRead,
		n.Metadata.EquipmentType,
		n.Metadata.DamageType,
		string(n.Metadata.Status),
		n.Metadata.RepairProgress,
		n.CreatedAt,
		nullTime(n.ReadAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) List(ctx context.Context, customerID string, filter *model.NotificationFilter) ([]*model.RepairNotification, error) {
	if filter == nil {
		filter = &model.NotificationFilter{}
	}
	query := `SELECT ` + notificationColumns + ` FROM repair_notifications WHERE customer_id = $1`
	args := []interface{}{customerID}
	if filter.UnreadOnly {
		query += " AND is_read = FALSE"
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var rows []notificationRow
	if err := r.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	out := make([]*model.RepairNotification, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, customerID, id string, at time.Time) error {
	rows, err := r.exec(ctx, `
		UPDATE repair_notifications SET is_read = TRUE, read_at = COALESCE(read_at, $1)
		WHERE id = $2 AND customer_id = $3
	`, at, id, customerID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, customerID string, at time.Time) (int64, error) {
	rows, err := r.exec(ctx, `
		UPDATE repair_notifications SET is_read = TRUE, read_at = $1
		WHERE customer_id = $2 AND is_read = FALSE
	`, at, customerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return rows, nil
}

func (r *notificationRepository) Delete(ctx context.Context, customerID, id string) error {
	rows, err := r.exec(ctx, `DELETE FROM repair_notifications WHERE id = $1 AND customer_id = $2`, id, customerID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *notificationRepository) DeleteAll(ctx context.Context, customerID string) (int64, error) {
	rows, err := r.exec(ctx, `DELETE FROM repair_notifications WHERE customer_id = $1`, customerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", err)
	}
	return rows, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, customerID string) (int64, error) {
	var n int64
	if err := r.get(ctx, &n, `SELECT COUNT(*) FROM repair_notifications WHERE customer_id = $1 AND is_read = FALSE`, customerID); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}
