package memory

import (
	"context"
	"sort"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
)

type repairRepository struct {
	s *Store
}

func cloneRepair(r model.RepairRequest) *model.RepairRequest {
	out := r
	if r.Images != nil {
		out.Images = append([]string(nil), r.Images...)
	}
	if r.CostEstimate != nil {
		v := *r.CostEstimate
		out.CostEstimate = &v
	}
	if r.TimeEstimate != nil {
		v := *r.TimeEstimate
		out.TimeEstimate = &v
	}
	return &out
}

func (r *repairRepository) Create(ctx context.Context, repair *model.RepairRequest) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.repairs[repair.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.repairs[repair.ID] = *cloneRepair(*repair)
	return nil
}

func (r *repairRepository) Get(ctx context.Context, id string) (*model.RepairRequest, error) {
	defer r.s.lock(ctx)()
	repair, ok := r.s.repairs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRepair(repair), nil
}

func (r *repairRepository) Update(ctx context.Context, repair *model.RepairRequest, expectedVersion int64) error {
	defer r.s.lock(ctx)()
	current, ok := r.s.repairs[repair.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != expectedVersion {
		return repository.ErrConflict
	}
	repair.Version = expectedVersion + 1
	r.s.repairs[repair.ID] = *cloneRepair(*repair)
	return nil
}

func (r *repairRepository) Delete(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.repairs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.repairs, id)
	return nil
}

func (r *repairRepository) List(ctx context.Context, filter *model.RepairFilter) ([]*model.RepairRequest, error) {
	defer r.s.lock(ctx)()
	if filter == nil {
		filter = &model.RepairFilter{}
	}
	var out []*model.RepairRequest
	for _, repair := range r.s.repairs {
		if filter.CustomerID != "" && repair.CustomerID != filter.CustomerID {
			continue
		}
		if filter.TechnicianID != "" && repair.AssignedTechnician != filter.TechnicianID {
			continue
		}
		if filter.Status != "" && repair.Status != filter.Status {
			continue
		}
		out = append(out, cloneRepair(repair))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *repairRepository) CountActiveByTechnician(ctx context.Context, technicianID string) (int, error) {
	defer r.s.lock(ctx)()
	n := 0
	for _, repair := range r.s.repairs {
		if repair.AssignedTechnician == technicianID && repair.Status.IsActive() {
			n++
		}
	}
	return n, nil
}
