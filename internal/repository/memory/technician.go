package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
)

type technicianRepository struct {
	s *Store
}

func cloneTechnician(t model.Technician) *model.Technician {
	out := t
	out.Skills = append([]string(nil), t.Skills...)
	return &out
}

func (r *technicianRepository) Create(ctx context.Context, technician *model.Technician) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.technicians[technician.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.technicians[technician.ID] = *cloneTechnician(*technician)
	return nil
}

func (r *technicianRepository) Get(ctx context.Context, id string) (*model.Technician, error) {
	defer r.s.lock(ctx)()
	t, ok := r.s.technicians[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneTechnician(t), nil
}

func (r *technicianRepository) Update(ctx context.Context, technician *model.Technician, expectedVersion int64) error {
	defer r.s.lock(ctx)()
	current, ok := r.s.technicians[technician.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != expectedVersion {
		return repository.ErrConflict
	}
	technician.Version = expectedVersion + 1
	r.s.technicians[technician.ID] = *cloneTechnician(*technician)
	return nil
}

func (r *technicianRepository) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.technicians[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.technicians, id)
	return nil
}

func (r *technicianRepository) List(ctx context.Context, filter *model.TechnicianFilter) ([]*model.Technician, error) {
	defer r.s.lock(ctx)()
	if filter == nil {
		filter = &model.TechnicianFilter{}
	}
	var out []*model.Technician
	for _, t := range r.s.technicians {
		if filter.Available != nil && t.Available != *filter.Available {
			continue
		}
		if filter.Skill != "" && !hasSkill(t.Skills, filter.Skill) {
			continue
		}
		out = append(out, cloneTechnician(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func hasSkill(skills []string, want string) bool {
	for _, s := range skills {
		if strings.EqualFold(s, want) {
			return true
		}
	}
	return false
}
