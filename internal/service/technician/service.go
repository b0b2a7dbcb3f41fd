package technician

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
	"github.com/jwalitptl/repair-desk/pkg/logger"
)

const conflictRetries = 3

type Service struct {
	tx          repository.Transactor
	technicians repository.TechnicianRepository
	repairs     repository.RepairRepository
	users       repository.UserRepository
	log         *logger.Logger
	now         func() time.Time
}

func NewService(store *repository.Store, log *logger.Logger) *Service {
	return &Service{
		tx:          store.Tx,
		technicians: store.Technicians,
		repairs:     store.Repairs,
		users:       store.Users,
		log:         log,
		now:         time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ActiveCount counts repairs in the active set assigned to the technician.
func (s *Service) ActiveCount(ctx context.Context, technicianID string) (int, error) {
	n, err := s.repairs.CountActiveByTechnician(ctx, technicianID)
	if err != nil {
		return 0, fmt.Errorf("failed to count active repairs: %w", err)
	}
	return n, nil
}

// RecomputeAvailability stores the technician's current load and derives the
// availability flag from it.
func (s *Service) RecomputeAvailability(ctx context.Context, technicianID string) (*model.Technician, error) {
	t, err := s.technicians.Get(ctx, technicianID)
	if err != nil {
		return nil, translate(err, "technician")
	}
	return s.Recount(ctx, t)
}

// Recount writes t's current load under the version t was read at. It
// returns repository.ErrConflict when the technician changed since, so a
// capacity decision made on t is retried rather than committed on stale data.
func (s *Service) Recount(ctx context.Context, t *model.Technician) (*model.Technician, error) {
	active, err := s.ActiveCount(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	expected := t.Version
	t.ActiveRepairs = active
	t.Available = active < model.MaxActiveRepairs
	t.UpdatedAt = s.now()
	if err := s.technicians.Update(ctx, t, expected); err != nil {
		return nil, translate(err, "technician")
	}
	s.log.Debug("technician availability recomputed",
		"technician_id", t.ID, "active", active, "available", t.Available)
	return t, nil
}

func (s *Service) Create(ctx context.Context, req *model.CreateTechnicianRequest) (*model.TechnicianDetail, error) {
	user, err := s.users.Get(ctx, req.UserID)
	if err != nil {
		return nil, translate(err, "user")
	}
	if user.Role != model.RoleTechnician {
		return nil, apperrors.BadRequest("user does not have the technician role", nil)
	}

	now := s.now()
	t := &model.Technician{
		ID:        user.ID,
		Skills:    normalizeSkills(req.Skills),
		Available: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Available != nil {
		t.Available = *req.Available
	}
	if err := s.technicians.Create(ctx, t); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("technician profile already exists", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to create technician: %w", err))
	}
	s.log.Info("technician created", "technician_id", t.ID)
	return &model.TechnicianDetail{Technician: t, User: user.Summary()}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.TechnicianDetail, error) {
	t, err := s.technicians.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "technician")
	}
	return s.detail(ctx, t), nil
}

func (s *Service) List(ctx context.Context, filter *model.TechnicianFilter) ([]*model.TechnicianDetail, error) {
	list, err := s.technicians.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list technicians: %w", err))
	}
	out := make([]*model.TechnicianDetail, 0, len(list))
	for _, t := range list {
		out = append(out, s.detail(ctx, t))
	}
	return out, nil
}

func (s *Service) detail(ctx context.Context, t *model.Technician) *model.TechnicianDetail {
	d := &model.TechnicianDetail{Technician: t}
	if u, err := s.users.Get(ctx, t.ID); err == nil {
		d.User = u.Summary()
	}
	return d
}

// UpdateProfile changes skills and the availability flag. Marking a
// technician available while at capacity is refused.
func (s *Service) UpdateProfile(ctx context.Context, id string, req *model.UpdateTechnicianRequest) (*model.Technician, error) {
	var updated *model.Technician
	err := repository.RetryOnConflict(ctx, s.tx, conflictRetries, func(ctx context.Context) error {
		t, err := s.technicians.Get(ctx, id)
		if err != nil {
			return translate(err, "technician")
		}
		expected := t.Version
		if req.Skills != nil {
			t.Skills = normalizeSkills(req.Skills)
		}
		if req.Available != nil {
			if *req.Available {
				active, err := s.ActiveCount(ctx, id)
				if err != nil {
					return err
				}
				if active >= model.MaxActiveRepairs {
					return apperrors.CapacityExceeded(fmt.Sprintf(
						"technician has %d active repairs and cannot be marked available", active))
				}
				t.ActiveRepairs = active
			}
			t.Available = *req.Available
		}
		t.UpdatedAt = s.now()
		if err := s.technicians.Update(ctx, t, expected); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, translate(err, "technician")
	}
	return updated, nil
}

// Delete removes a technician profile. Technicians still holding active
// repairs cannot be removed.
func (s *Service) Delete(ctx context.Context, id string) error {
	return translate(s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.technicians.Get(ctx, id); err != nil {
			return err
		}
		active, err := s.ActiveCount(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return apperrors.InvalidState(fmt.Sprintf("technician has %d active repairs", active))
		}
		return s.technicians.Delete(ctx, id)
	}), "technician")
}

func (s *Service) Workload(ctx context.Context, id string) (*model.Workload, error) {
	t, err := s.technicians.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "technician")
	}
	var active []*model.RepairRequest
	for _, status := range model.ActiveRepairStatuses {
		list, err := s.repairs.List(ctx, &model.RepairFilter{TechnicianID: id, Status: status})
		if err != nil {
			return nil, apperrors.Internal(fmt.Errorf("failed to list repairs: %w", err))
		}
		active = append(active, list...)
	}
	return &model.Workload{
		TechnicianID: id,
		Active:       len(active),
		Capacity:     model.MaxActiveRepairs,
		Available:    t.Available && len(active) < model.MaxActiveRepairs,
		Repairs:      active,
	}, nil
}

func normalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := map[string]bool{}
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	return out
}

// translate maps repository sentinels onto application errors and passes
// application errors through.
func translate(err error, resource string) error {
	var appErr *apperrors.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound(resource, err)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.Conflict("concurrent update, please retry", err)
	}
	return apperrors.Internal(err)
}
