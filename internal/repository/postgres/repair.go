package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
)

const repairColumns = `id, customer_id, equipment_type, damage_type, description, status,
	current_stage, repair_progress, cost_estimate, time_estimate, rejection_reason,
	assigned_technician, technician_notes, progress_notes, images, version,
	approved_at, started_at, completed_at, created_at, updated_at`

type repairRow struct {
	ID                 string          `db:"id"`
	CustomerID         string          `db:"customer_id"`
	EquipmentType      string          `db:"equipment_type"`
	DamageType         string          `db:"damage_type"`
	Description        string          `db:"description"`
	Status             string          `db:"status"`
	CurrentStage       string          `db:"current_stage"`
	RepairProgress     int             `db:"repair_progress"`
	CostEstimate       sql.NullFloat64 `db:"cost_estimate"`
	TimeEstimate       sql.NullString  `db:"time_estimate"`
	RejectionReason    sql.NullString  `db:"rejection_reason"`
	AssignedTechnician sql.NullString  `db:"assigned_technician"`
	TechnicianNotes    sql.NullString  `db:"technician_notes"`
	ProgressNotes      sql.NullString  `db:"progress_notes"`
	Images             pq.StringArray  `db:"images"`
	Version            int64           `db:"version"`
	ApprovedAt         sql.NullTime    `db:"approved_at"`
	StartedAt          sql.NullTime    `db:"started_at"`
	CompletedAt        sql.NullTime    `db:"completed_at"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func toRepairRow(r *model.RepairRequest) repairRow {
	row := repairRow{
		ID:                 r.ID,
		CustomerID:         r.CustomerID,
		EquipmentType:      r.EquipmentType,
		DamageType:         r.DamageType,
		Description:        r.Description,
		Status:             string(r.Status),
		CurrentStage:       r.CurrentStage,
		RepairProgress:     r.RepairProgress,
		RejectionReason:    nullString(r.RejectionReason),
		AssignedTechnician: nullString(r.AssignedTechnician),
		TechnicianNotes:    nullString(r.TechnicianNotes),
		ProgressNotes:      nullString(r.ProgressNotes),
		Images:             pq.StringArray(r.Images),
		Version:            r.Version,
		ApprovedAt:         nullTime(r.ApprovedAt),
		StartedAt:          nullTime(r.StartedAt),
		CompletedAt:        nullTime(r.CompletedAt),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if row.Images == nil {
		row.Images = pq.StringArray{}
	}
	if r.CostEstimate != nil {
		row.CostEstimate = sql.NullFloat64{Float64: *r.CostEstimate, Valid: true}
	}
	if r.TimeEstimate != nil {
		row.TimeEstimate = nullString(r.TimeEstimate.String())
	}
	return row
}

func (row repairRow) toModel() (*model.RepairRequest, error) {
	r := &model.RepairRequest{
		ID:                 row.ID,
		CustomerID:         row.CustomerID,
		EquipmentType:      row.EquipmentType,
		DamageType:         row.DamageType,
		Description:        row.Description,
		Status:             model.RepairStatus(row.Status),
		CurrentStage:       row.CurrentStage,
		RepairProgress:     row.RepairProgress,
		RejectionReason:    row.RejectionReason.String,
		AssignedTechnician: row.AssignedTechnician.String,
		TechnicianNotes:    row.TechnicianNotes.String,
		ProgressNotes:      row.ProgressNotes.String,
		Images:             []string(row.Images),
		Version:            row.Version,
		ApprovedAt:         timePtr(row.ApprovedAt),
		StartedAt:          timePtr(row.StartedAt),
		CompletedAt:        timePtr(row.CompletedAt),
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
	if row.CostEstimate.Valid {
		v := row.CostEstimate.Float64
		r.CostEstimate = &v
	}
	if row.TimeEstimate.Valid {
		te, err := model.ParseTimeEstimate(row.TimeEstimate.String)
		if err != nil {
			return nil, fmt.Errorf("repair %s has invalid time estimate: %w", row.ID, err)
		}
		r.TimeEstimate = &te
	}
	return r, nil
}

func (r *repairRepository) Create(ctx context.Context, repair *model.RepairRequest) error {
	row := toRepairRow(repair)
	query := `INSERT INTO repair_requests (` + repairColumns + `) VALUES (
		:id, :customer_id, :equipment_type, :damage_type, :description, :status,
		:current_stage, :repair_progress, :cost_estimate, :time_estimate, :rejection_reason,
		:assigned_technician, :technician_notes, :progress_notes, :images, :version,
		:approved_at, :started_at, :completed_at, :created_at, :updated_at)`
	q, args, err := r.db.BindNamed(query, row)
	if err != nil {
		return fmt.Errorf("failed to bind repair insert: %w", err)
	}
	if _, err := r.exec(ctx, q, args...); err != nil {
		return fmt.Errorf("failed to create repair: %w", err)
	}
	return nil
}

func (r *repairRepository) Get(ctx context.Context, id string) (*model.RepairRequest, error) {
	var row repairRow
	if err := r.get(ctx, &row, `SELECT `+repairColumns+` FROM repair_requests WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to get repair: %w", translate(err))
	}
	return row.toModel()
}

func (r *repairRepository) Update(ctx context.Context, repair *model.RepairRequest, expectedVersion int64) error {
	row := toRepairRow(repair)
	query := `
		UPDATE repair_requests SET
			equipment_type = $1,
			damage_type = $2,
			description = $3,
			status = $4,
			current_stage = $5,
			repair_progress = $6,
			cost_estimate = $7,
			time_estimate = $8,
			rejection_reason = $9,
			assigned_technician = $10,
			technician_notes = $11,
			progress_notes = $12,
			images = $13,
			approved_at = $14,
			started_at = $15,
			completed_at = $16,
			updated_at = $17,
			version = version + 1
		WHERE id = $18 AND version = $19
	`
	rows, err := r.exec(ctx, query,
		row.EquipmentType,
		row.DamageType,
		row.Description,
		row.Status,
		row.CurrentStage,
		row.RepairProgress,
		row.CostEstimate,
		row.TimeEstimate,
		row.RejectionReason,
		row.AssignedTechnician,
		row.TechnicianNotes,
		row.ProgressNotes,
		row.Images,
		row.ApprovedAt,
		row.StartedAt,
		row.CompletedAt,
		row.UpdatedAt,
		row.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update repair: %w", err)
	}
	if rows == 0 {
		return r.versionMiss(ctx, "repair_requests", repair.ID)
	}
	repair.Version = expectedVersion + 1
	return nil
}

func (r *repairRepository) Delete(ctx context.Context, id string) error {
	rows, err := r.exec(ctx, `DELETE FROM repair_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete repair: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *repairRepository) List(ctx context.Context, filter *model.RepairFilter) ([]*model.RepairRequest, error) {
	if filter == nil {
		filter = &model.RepairFilter{}
	}
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.CustomerID != "" {
		add("customer_id = $%d", filter.CustomerID)
	}
	if filter.TechnicianID != "" {
		add("assigned_technician = $%d", filter.TechnicianID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}

	query := `SELECT ` + repairColumns + ` FROM repair_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
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

	var rows []repairRow
	if err := r.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list repairs: %w", err)
	}
	out := make([]*model.RepairRequest, 0, len(rows))
	for _, row := range rows {
		m, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *repairRepository) CountActiveByTechnician(ctx context.Context, technicianID string) (int, error) {
	statuses := make(pq.StringArray, 0, len(model.ActiveRepairStatuses))
	for _, s := range model.ActiveRepairStatuses {
		statuses = append(statuses, string(s))
	}
	var n int
	err := r.get(ctx, &n,
		`SELECT COUNT(*) FROM repair_requests WHERE assigned_technician = $1 AND status = ANY($2)`,
		technicianID, statuses)
	if err != nil {
		return 0, fmt.Errorf("failed to count active repairs: %w", err)
	}
	return n, nil
}
