package repair

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
	"github.com/jwalitptl/repair-desk/internal/service/report"
	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
)

const exportPageSize = model.MaxPageSize

// Get returns the populated request if the actor may see it.
func (s *Service) Get(ctx context.Context, id string, actor model.Actor) (*model.RepairDetail, error) {
	r, err := s.repairs.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "repair request")
	}
	if !canView(actor, r) {
		return nil, apperrors.Forbidden("you do not have access to this repair request")
	}
	return s.detail(ctx, r), nil
}

// List scopes customers to their own requests and technicians to their
// assignments. Staff see everything the filter matches.
func (s *Service) List(ctx context.Context, actor model.Actor, filter *model.RepairFilter) ([]*model.RepairDetail, error) {
	f := model.RepairFilter{}
	if filter != nil {
		f = *filter
	}
	switch actor.Role {
	case model.RoleCustomer:
		f.CustomerID = actor.UserID
	case model.RoleTechnician:
		f.TechnicianID = actor.UserID
	}
	f.Limit, f.Offset = model.NormalizePage(f.Limit, f.Offset)

	list, err := s.repairs.List(ctx, &f)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list repairs: %w", err))
	}
	out := make([]*model.RepairDetail, 0, len(list))
	for _, r := range list {
		out = append(out, s.detail(ctx, r))
	}
	return out, nil
}

// Delete removes a request. Its notifications are kept as history and the
// assigned technician's load is recounted when the request was active.
func (s *Service) Delete(ctx context.Context, id string) error {
	var images []string
	err := repository.RetryOnConflict(ctx, s.tx, conflictRetries, func(ctx context.Context) error {
		r, err := s.repairs.Get(ctx, id)
		if err != nil {
			return translate(err, "repair request")
		}
		if err := s.repairs.Delete(ctx, id); err != nil {
			return err
		}
		if r.AssignedTechnician != "" && r.Status.IsActive() {
			if _, err := s.capacity.RecomputeAvailability(ctx, r.AssignedTechnician); err != nil {
				return err
			}
		}
		images = r.Images
		return nil
	})
	if err != nil {
		return translate(err, "repair request")
	}

	if s.objects != nil {
		for _, key := range images {
			if err := s.objects.Delete(ctx, key); err != nil {
				s.log.Warn("failed to delete repair image", "repair_id", id, "key", key, "error", err.Error())
			}
		}
	}
	s.log.Info("repair request deleted", "repair_id", id)
	return nil
}

// AttachImage stores a damage photo and records its key on the request.
func (s *Service) AttachImage(ctx context.Context, id string, actor model.Actor, filename string, body io.Reader, size int64, contentType string) (*model.RepairDetail, error) {
	if s.objects == nil {
		return nil, apperrors.ServiceUnavailable("image uploads are disabled", nil)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperrors.BadRequest("only image uploads are accepted", nil)
	}

	r, err := s.repairs.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "repair request")
	}
	if !actor.IsStaff() && r.CustomerID != actor.UserID {
		return nil, apperrors.Forbidden("you do not have access to this repair request")
	}

	key := fmt.Sprintf("repairs/%s/%s%s", id, uuid.NewString(), strings.ToLower(path.Ext(filename)))
	if err := s.objects.Put(ctx, key, body, size, contentType); err != nil {
		return nil, apperrors.ServiceUnavailable("failed to store image", err)
	}

	var updated *model.RepairRequest
	err = repository.RetryOnConflict(ctx, s.tx, conflictRetries, func(ctx context.Context) error {
		r, err := s.repairs.Get(ctx, id)
		if err != nil {
			return translate(err, "repair request")
		}
		expected := r.Version
		r.Images = append(r.Images, key)
		r.UpdatedAt = s.now()
		if err := s.repairs.Update(ctx, r, expected); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			s.log.Warn("failed to remove orphaned image", "key", key, "error", delErr.Error())
		}
		return nil, translate(err, "repair request")
	}
	return s.detail(ctx, updated), nil
}

// Report renders the completion PDF of a finished repair.
func (s *Service) Report(ctx context.Context, id string, actor model.Actor) ([]byte, string, error) {
	d, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, "", err
	}
	if d.Status != model.RepairStatusReadyForPickup && d.Status != model.RepairStatusCompleted {
		return nil, "", apperrors.InvalidState("the report is available once the repair is complete")
	}
	data, err := report.CompletionPDF(d, s.now())
	if err != nil {
		return nil, "", apperrors.Internal(err)
	}
	return data, report.Filename(id), nil
}

// Export renders every request matching filter as a spreadsheet.
func (s *Service) Export(ctx context.Context, filter *model.RepairFilter) ([]byte, error) {
	f := model.RepairFilter{}
	if filter != nil {
		f = *filter
	}
	f.Limit, f.Offset = exportPageSize, 0

	var rows []*model.RepairDetail
	for {
		page, err := s.repairs.List(ctx, &f)
		if err != nil {
			return nil, apperrors.Internal(fmt.Errorf("failed to list repairs: %w", err))
		}
		for _, r := range page {
			rows = append(rows, s.populate(ctx, r))
		}
		if len(page) < f.Limit {
			break
		}
		f.Offset += f.Limit
	}

	data, err := report.ExportXLSX(rows)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return data, nil
}

func canView(actor model.Actor, r *model.RepairRequest) bool {
	switch {
	case actor.IsStaff():
		return true
	case actor.Role == model.RoleTechnician:
		return r.AssignedTechnician == actor.UserID
	default:
		return r.CustomerID == actor.UserID
	}
}

// populate fills the referenced users.
func (s *Service) populate(ctx context.Context, r *model.RepairRequest) *model.RepairDetail {
	d := &model.RepairDetail{RepairRequest: r}
	if u, err := s.users.Get(ctx, r.CustomerID); err == nil {
		d.Customer = u.Summary()
	}
	if r.AssignedTechnician != "" {
		if u, err := s.users.Get(ctx, r.AssignedTechnician); err == nil {
			d.Technician = u.Summary()
		}
	}
	return d
}

// detail is populate plus image URLs and schedule fields.
func (s *Service) detail(ctx context.Context, r *model.RepairRequest) *model.RepairDetail {
	d := s.populate(ctx, r)
	if r.ApprovedAt != nil && r.TimeEstimate != nil {
		ready := EstimatedReadyAt(*r.ApprovedAt, *r.TimeEstimate)
		d.EstimatedReadyAt = &ready
	}
	d.Overdue = IsOverdue(r, s.now())
	if s.objects != nil {
		for _, key := range r.Images {
			u, err := s.objects.PresignGet(ctx, key, s.presignExpiry)
			if err != nil {
				s.log.Warn("failed to presign image", "repair_id", r.ID, "key", key, "error", err.Error())
				continue
			}
			d.ImageURLs = append(d.ImageURLs, u)
		}
	}
	return d
}
