package repair

import (
	"fmt"
	"time"

	"github.com/jwalitptl/repair-desk/internal/model"
	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
)

// transitions is the legal status graph. Anything not listed is refused.
var transitions = map[model.RepairStatus][]model.RepairStatus{
	model.RepairStatusPending: {
		model.RepairStatusApproved, model.RepairStatusRejected, model.RepairStatusCancelled,
	},
	model.RepairStatusApproved: {
		model.RepairStatusCustomerApproved, model.RepairStatusCustomerRejected, model.RepairStatusCancelled,
	},
	model.RepairStatusEstimateSent: {
		model.RepairStatusCustomerApproved, model.RepairStatusCustomerRejected, model.RepairStatusCancelled,
	},
	model.RepairStatusCustomerApproved: {
		model.RepairStatusInRepair, model.RepairStatusCancelled,
	},
	model.RepairStatusInRepair: {
		model.RepairStatusInRepair, model.RepairStatusHalfwayCompleted, model.RepairStatusReadyForPickup,
	},
	model.RepairStatusHalfwayCompleted: {
		model.RepairStatusInRepair, model.RepairStatusHalfwayCompleted, model.RepairStatusReadyForPickup,
	},
	model.RepairStatusReadyForPickup: {
		model.RepairStatusReadyForPickup, model.RepairStatusCompleted,
	},
}

// CanTransition reports whether from -> to is an edge of the status graph.
func CanTransition(from, to model.RepairStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to model.RepairStatus) error {
	if !CanTransition(from, to) {
		return apperrors.InvalidState(fmt.Sprintf("cannot move repair from %q to %q", from, to))
	}
	return nil
}

// ValidateProgress rejects values outside 0..100.
func ValidateProgress(p int) error {
	if p < 0 || p > 100 {
		return apperrors.OutOfRange(fmt.Sprintf("repair progress must be between 0 and 100, got %d", p))
	}
	return nil
}

// StageForProgress derives status and stage from progress alone.
func StageForProgress(p int) (model.RepairStatus, string, error) {
	if err := ValidateProgress(p); err != nil {
		return "", "", err
	}
	switch {
	case p == 100:
		return model.RepairStatusReadyForPickup, model.StageRepairComplete, nil
	case p >= 75:
		return model.RepairStatusHalfwayCompleted, model.StageAlmostComplete, nil
	case p >= 50:
		return model.RepairStatusHalfwayCompleted, model.StageRepairHalfway, nil
	case p >= 25:
		return model.RepairStatusInRepair, model.StageRepairInProgress, nil
	default:
		return model.RepairStatusInRepair, model.StageRepairStarted, nil
	}
}

// IsMilestone is true for 0, 25, 50, 75 and 100.
func IsMilestone(p int) bool {
	return p >= 0 && p <= 100 && p%25 == 0
}

// EstimatedReadyAt is when a repair approved at approvedAt should be done.
func EstimatedReadyAt(approvedAt time.Time, est model.TimeEstimate) time.Time {
	return est.AddTo(approvedAt)
}

// IsOverdue reports whether an unfinished repair is past its estimate at now.
// Requests without an approval time or estimate are never overdue.
func IsOverdue(r *model.RepairRequest, now time.Time) bool {
	if r.ApprovedAt == nil || r.TimeEstimate == nil {
		return false
	}
	switch r.Status {
	case model.RepairStatusReadyForPickup, model.RepairStatusCompleted, model.RepairStatusCancelled,
		model.RepairStatusRejected, model.RepairStatusCustomerRejected:
		return false
	}
	return now.After(EstimatedReadyAt(*r.ApprovedAt, *r.TimeEstimate))
}
