// Package repair implements the repair request lifecycle.
package repair

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
	"github.com/jwalitptl/repair-desk/internal/service/event"
	"github.com/jwalitptl/repair-desk/internal/service/technician"
	"github.com/jwalitptl/repair-desk/internal/storage"
	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
	"github.com/jwalitptl/repair-desk/pkg/logger"
	"github.com/jwalitptl/repair-desk/pkg/metrics"
)

const conflictRetries = 3

// Dispatcher runs the side effects of committed events and reports
// best-effort failures as warnings.
type Dispatcher interface {
	Dispatch(ctx context.Context, events ...*model.OutboxEvent) []string
}

// Result is a committed change plus the warnings of its side effects.
type Result struct {
	Repair   *model.RepairRequest `json:"repair"`
	Warnings []string             `json:"warnings,omitempty"`
}

type Service struct {
	tx            repository.Transactor
	repairs       repository.RepairRepository
	technicians   repository.TechnicianRepository
	users         repository.UserRepository
	capacity      *technician.Service
	recorder      *event.Recorder
	dispatcher    Dispatcher
	objects       storage.ObjectStore
	presignExpiry time.Duration
	log           *logger.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	now           func() time.Time
}

// NewService wires the lifecycle. With a nil dispatcher events stay in the
// outbox for the background processor.
func NewService(store *repository.Store, capacity *technician.Service, dispatcher Dispatcher, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		tx:            store.Tx,
		repairs:       store.Repairs,
		technicians:   store.Technicians,
		users:         store.Users,
		capacity:      capacity,
		recorder:      event.NewRecorder(store.Outbox),
		dispatcher:    dispatcher,
		presignExpiry: 15 * time.Minute,
		log:           log,
		metrics:       m,
		tracer:        otel.Tracer("repair-desk/repair"),
		now:           time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.recorder.WithClock(now)
	return s
}

// WithObjectStore enables damage photo uploads.
func (s *Service) WithObjectStore(objects storage.ObjectStore, presignExpiry time.Duration) *Service {
	s.objects = objects
	if presignExpiry > 0 {
		s.presignExpiry = presignExpiry
	}
	return s
}

// Submit creates a Pending request for the customer.
func (s *Service) Submit(ctx context.Context, customerID string, req *model.CreateRepairRequest) (*Result, error) {
	if strings.TrimSpace(req.DamageType) == "" {
		return nil, apperrors.BadRequest("damage type is required", nil)
	}

	now := s.now()
	r := &model.RepairRequest{
		ID:             uuid.NewString(),
		CustomerID:     customerID,
		EquipmentType:  strings.TrimSpace(req.EquipmentType),
		DamageType:     strings.TrimSpace(req.DamageType),
		Description:    req.Description,
		Status:         model.RepairStatusPending,
		CurrentStage:   model.StageRequestSubmitted,
		RepairProgress: 0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var out *model.OutboxEvent
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repairs.Create(ctx, r); err != nil {
			return err
		}
		var err error
		out, err = s.recorder.Record(ctx, &model.RepairEvent{Type: model.EventRepairSubmitted}, r)
		return err
	})
	if err != nil {
		return nil, translate(err, "repair request")
	}

	s.metrics.RepairTransitions.WithLabelValues("submit", string(r.Status)).Inc()
	s.log.Info("repair request submitted", "repair_id", r.ID, "customer_id", customerID)
	return &Result{Repair: r, Warnings: s.dispatch(ctx, out)}, nil
}

// Decide records the service manager's decision on a Pending request.
func (s *Service) Decide(ctx context.Context, id string, req *model.DecisionRequest) (*Result, error) {
	decision, ok := model.ParseRepairStatus(string(req.Decision))
	if !ok || (decision != model.RepairStatusApproved && decision != model.RepairStatusRejected) {
		return nil, apperrors.BadRequest(fmt.Sprintf("decision must be %q or %q", model.RepairStatusApproved, model.RepairStatusRejected), nil)
	}

	var estimate *model.TimeEstimate
	if decision == model.RepairStatusApproved {
		if req.CostEstimate != nil && *req.CostEstimate < 0 {
			return nil, apperrors.BadRequest("cost estimate cannot be negative", nil)
		}
		if strings.TrimSpace(req.TimeEstimate) != "" {
			est, err := model.ParseTimeEstimate(req.TimeEstimate)
			if err != nil {
				return nil, apperrors.BadRequest(err.Error(), err)
			}
			estimate = &est
		}
	}

	return s.mutate(ctx, "decide", id, func(ctx context.Context, r *model.RepairRequest, _ *txState) (*model.RepairEvent, error) {
		if err := checkTransition(r.Status, decision); err != nil {
			return nil, err
		}
		r.Status = decision
		if decision == model.RepairStatusApproved {
			now := s.now()
			r.CostEstimate = req.CostEstimate
			r.TimeEstimate = estimate
			r.ApprovedAt = &now
			r.CurrentStage = model.StageAwaitingCustomer
		} else {
			r.RejectionReason = strings.TrimSpace(req.RejectionReason)
			r.CurrentStage = model.StageRequestRejected
		}
		return &model.RepairEvent{Type: model.EventRepairDecided}, nil
	})
}

// CustomerRespond records the owner's answer to an estimate.
func (s *Service) CustomerRespond(ctx context.Context, id string, actor model.Actor, decision string) (*Result, error) {
	var status model.RepairStatus
	var stage string
	switch strings.ToLower(strings.TrimSpace(decision)) {
	case "approve":
		status, stage = model.RepairStatusCustomerApproved, model.StageCustomerApproved
	case "reject":
		status, stage = model.RepairStatusCustomerRejected, model.StageCustomerRejected
	default:
		return nil, apperrors.BadRequest(`decision must be "approve" or "reject"`, nil)
	}

	return s.mutate(ctx, "customer_respond", id, func(ctx context.Context, r *model.RepairRequest, _ *txState) (*model.RepairEvent, error) {
		if r.CustomerID != actor.UserID {
			return nil, apperrors.Forbidden("only the customer who submitted the request can respond")
		}
		if err := checkTransition(r.Status, status); err != nil {
			return nil, err
		}
		r.Status = status
		r.CurrentStage = stage
		return &model.RepairEvent{Type: model.EventCustomerResponded}, nil
	})
}

// AssignTechnician hands a customer-approved request to a technician with
// spare capacity and matching skills.
func (s *Service) AssignTechnician(ctx context.Context, id string, req *model.AssignTechnicianRequest) (*Result, error) {
	return s.mutate(ctx, "assign", id, func(ctx context.Context, r *model.RepairRequest, st *txState) (*model.RepairEvent, error) {
		if r.Status != model.RepairStatusCustomerApproved {
			return nil, apperrors.InvalidState(fmt.Sprintf("repair must be %q to assign a technician, is %q",
				model.RepairStatusCustomerApproved, r.Status))
		}
		tech, err := s.technicians.Get(ctx, req.TechnicianID)
		if err != nil {
			return nil, translate(err, "technician")
		}
		active, err := s.capacity.ActiveCount(ctx, tech.ID)
		if err != nil {
			return nil, err
		}
		if err := technician.CheckAssignable(tech, active, r.EquipmentType); err != nil {
			s.metrics.AssignmentRejections.WithLabelValues(technician.RejectionReason(err)).Inc()
			return nil, err
		}
		st.technician = tech

		now := s.now()
		r.AssignedTechnician = tech.ID
		r.TechnicianNotes = req.Notes
		r.Status = model.RepairStatusInRepair
		r.CurrentStage = model.StageTechnicianAssigned
		r.StartedAt = &now
		return &model.RepairEvent{Type: model.EventTechnicianAssigned, TechnicianID: tech.ID, Notes: req.Notes}, nil
	})
}

// UpdateProgress moves a request in repair along the milestone table. Only
// the assigned technician or staff may report progress.
func (s *Service) UpdateProgress(ctx context.Context, id string, actor model.Actor, progress int, notes string) (*Result, error) {
	status, stage, err := StageForProgress(progress)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, "progress", id, func(ctx context.Context, r *model.RepairRequest, _ *txState) (*model.RepairEvent, error) {
		if !actor.IsStaff() && r.AssignedTechnician != actor.UserID {
			return nil, apperrors.Forbidden("only the assigned technician can update progress")
		}
		inRepair := r.Status.IsActive() || (r.Status == model.RepairStatusReadyForPickup && progress == 100)
		if !inRepair || r.AssignedTechnician == "" {
			return nil, apperrors.InvalidState(fmt.Sprintf("progress can only be reported on an assigned repair in progress, is %q", r.Status))
		}
		if err := checkTransition(r.Status, status); err != nil {
			return nil, err
		}
		r.RepairProgress = progress
		r.Status = status
		r.CurrentStage = stage
		if notes != "" {
			r.ProgressNotes = notes
		}
		return &model.RepairEvent{
			Type:      model.EventProgressUpdated,
			Milestone: IsMilestone(progress),
			Notes:     notes,
		}, nil
	})
}

// Cancel withdraws a request before repair work starts.
func (s *Service) Cancel(ctx context.Context, id string, actor model.Actor) (*Result, error) {
	return s.mutate(ctx, "cancel", id, func(ctx context.Context, r *model.RepairRequest, _ *txState) (*model.RepairEvent, error) {
		if !actor.IsStaff() && r.CustomerID != actor.UserID {
			return nil, apperrors.Forbidden("only the customer who submitted the request can cancel it")
		}
		if err := checkTransition(r.Status, model.RepairStatusCancelled); err != nil {
			return nil, err
		}
		r.Status = model.RepairStatusCancelled
		r.CurrentStage = model.StageRequestCancelled
		return &model.RepairEvent{Type: model.EventRepairCancelled}, nil
	})
}

// MarkCollected closes a request once the customer picks the equipment up.
func (s *Service) MarkCollected(ctx context.Context, id string) (*Result, error) {
	return s.mutate(ctx, "collect", id, func(ctx context.Context, r *model.RepairRequest, _ *txState) (*model.RepairEvent, error) {
		if err := checkTransition(r.Status, model.RepairStatusCompleted); err != nil {
			return nil, err
		}
		now := s.now()
		r.Status = model.RepairStatusCompleted
		r.CurrentStage = model.StagePickedUp
		r.CompletedAt = &now
		return &model.RepairEvent{Type: model.EventRepairCollected}, nil
	})
}

type mutation func(ctx context.Context, r *model.RepairRequest, st *txState) (*model.RepairEvent, error)

// txState holds reads a mutation made that later writes in the same
// transaction are checked against.
type txState struct {
	// technician is the record a capacity check was made on. The recount is
	// written under its version, so a concurrent assignment that committed
	// after the check forces a retry instead of overfilling.
	technician *model.Technician
}

// mutate applies fn to the stored request inside a transaction: the
// version-checked write, the technician recount when the request enters or
// leaves the active set, and the outbox event commit together. The whole
// transaction is retried on a version conflict.
func (s *Service) mutate(ctx context.Context, op, id string, fn mutation) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "repair."+op, trace.WithAttributes(attribute.String("repair.id", id)))
	defer span.End()

	var (
		updated *model.RepairRequest
		out     *model.OutboxEvent
		attempt int
	)
	err := repository.RetryOnConflict(ctx, s.tx, conflictRetries, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.metrics.TransactionConflicts.Inc()
		}

		r, err := s.repairs.Get(ctx, id)
		if err != nil {
			return translate(err, "repair request")
		}
		expected := r.Version
		previous := r.Status

		st := &txState{}
		evt, err := fn(ctx, r, st)
		if err != nil {
			return err
		}
		r.UpdatedAt = s.now()
		if err := s.repairs.Update(ctx, r, expected); err != nil {
			return err
		}

		if r.AssignedTechnician != "" && previous.IsActive() != r.Status.IsActive() {
			if st.technician != nil && st.technician.ID == r.AssignedTechnician {
				_, err = s.capacity.Recount(ctx, st.technician)
			} else {
				_, err = s.capacity.RecomputeAvailability(ctx, r.AssignedTechnician)
			}
			if err != nil {
				return err
			}
		}

		evt.PreviousStatus = previous
		out, err = s.recorder.Record(ctx, evt, r)
		if err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		return nil, translate(err, "repair request")
	}

	span.SetAttributes(attribute.String("repair.status", string(updated.Status)))
	s.metrics.RepairTransitions.WithLabelValues(op, string(updated.Status)).Inc()
	s.log.Info("repair request updated",
		"repair_id", id, "operation", op, "status", string(updated.Status), "progress", updated.RepairProgress)

	return &Result{Repair: updated, Warnings: s.dispatch(ctx, out)}, nil
}

func (s *Service) dispatch(ctx context.Context, out *model.OutboxEvent) []string {
	if s.dispatcher == nil || out == nil {
		return nil
	}
	warnings := s.dispatcher.Dispatch(ctx, out)
	for _, w := range warnings {
		s.log.Warn("notification side effect failed", "repair_id", out.AggregateID, "event_id", out.ID, "warning", w)
	}
	return warnings
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
		return apperrors.Conflict("repair request was modified concurrently, please retry", err)
	}
	return apperrors.Internal(err)
}
