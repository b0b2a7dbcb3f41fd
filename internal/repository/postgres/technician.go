package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
)

type technicianRow struct {
	ID            string         `db:"id"`
	Skills        pq.StringArray `db:"skills"`
	Available     bool           `db:"available"`
	ActiveRepairs int            `db:"active_repairs"`
	Version       int64          `db:"version"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (row technicianRow) toModel() *model.Technician {
	return &model.Technician{
		ID:            row.ID,
		Skills:        []string(row.Skills),
		Available:     row.Available,
		ActiveRepairs: row.ActiveRepairs,
		Version:       row.Version,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func skillsArray(skills []string) pq.StringArray {
	if skills == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(skills)
}

func (r *technicianRepository) Create(ctx context.Context, t *model.Technician) error {
	query := `
		INSERT INTO technicians (id, skills, available, active_repairs, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.exec(ctx, query, t.ID, skillsArray(t.Skills), t.Available, t.ActiveRepairs, t.Version, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create technician: %w", err)
	}
	return nil
}

func (r *technicianRepository) Get(ctx context.Context, id string) (*model.Technician, error) {
	var row technicianRow
	query := `SELECT id, skills, available, active_repairs, version, created_at, updated_at FROM technicians WHERE id = $1`
	if err := r.get(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("failed to get technician: %w", translate(err))
	}
	return row.toModel(), nil
}

func (r *technicianRepository) Update(ctx context.Context, t *model.Technician, expectedVersion int64) error {
	query := `
		UPDATE technicians SET
			skills = $1,
			available = $2,
			active_repairs = $3,
			updated_at = $4,
			version = version + 1
		WHERE id = $5 AND version = $6
	`
	rows, err := r.exec(ctx, query, skillsArray(t.Skills), t.Available, t.ActiveRepairs, t.UpdatedAt, t.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update technician: %w", err)
	}
	if rows == 0 {
		return r.versionMiss(ctx, "technicians", t.ID)
	}
	t.Version = expectedVersion + 1
	return nil
}

func (r *technicianRepository) Delete(ctx context.Context, id string) error {
	rows, err := r.exec(ctx, `DELETE FROM technicians WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete technician: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *technicianRepository) List(ctx context.Context, filter *model.TechnicianFilter) ([]*model.Technician, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		if filter.Available != nil {
			args = append(args, *filter.Available)
			where = append(where, fmt.Sprintf("available = $%d", len(args)))
		}
		if filter.Skill != "" {
			args = append(args, strings.ToLower(filter.Skill))
			where = append(where, fmt.Sprintf("$%d = ANY(SELECT lower(s) FROM unnest(skills) s)", len(args)))
		}
	}
	query := `SELECT id, skills, available, active_repairs, version, created_at, updated_at FROM technicians`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	var rows []technicianRow
	if err := r.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list technicians: %w", err)
	}
	out := make([]*model.Technician, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}
