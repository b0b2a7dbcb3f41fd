package repair

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/repair-desk/internal/model"
	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
)

func TestStageForProgress_FullRange(t *testing.T) {
	for p := 0; p <= 100; p++ {
		status, stage, err := StageForProgress(p)
		require.NoError(t, err)

		var wantStatus model.RepairStatus
		var wantStage string
		switch {
		case p <= 24:
			wantStatus, wantStage = model.RepairStatusInRepair, "Repair Started"
		case p <= 49:
			wantStatus, wantStage = model.RepairStatusInRepair, "Repair In Progress"
		case p <= 74:
			wantStatus, wantStage = model.RepairStatusHalfwayCompleted, "Repair Halfway Completed"
		case p <= 99:
			wantStatus, wantStage = model.RepairStatusHalfwayCompleted, "Almost Complete"
		default:
			wantStatus, wantStage = model.RepairStatusReadyForPickup, "Repair Complete"
		}
		assert.Equal(t, wantStatus, status, "progress %d", p)
		assert.Equal(t, wantStage, stage, "progress %d", p)
	}
}

func TestStageForProgress_OutOfRange(t *testing.T) {
	for _, p := range []int{-1, 101, -100, 1000} {
		_, _, err := StageForProgress(p)
		assert.ErrorIs(t, err, apperrors.OutOfRangeError, "progress %d", p)
	}
}

func TestIsMilestone(t *testing.T) {
	milestones := map[int]bool{0: true, 25: true, 50: true, 75: true, 100: true}
	for p := 0; p <= 100; p++ {
		assert.Equal(t, milestones[p], IsMilestone(p), "progress %d", p)
	}
	assert.False(t, IsMilestone(-25))
	assert.False(t, IsMilestone(125))
}

func TestCanTransition(t *testing.T) {
	legal := [][2]model.RepairStatus{
		{model.RepairStatusPending, model.RepairStatusApproved},
		{model.RepairStatusPending, model.RepairStatusRejected},
		{model.RepairStatusApproved, model.RepairStatusCustomerApproved},
		{model.RepairStatusEstimateSent, model.RepairStatusCustomerRejected},
		{model.RepairStatusCustomerApproved, model.RepairStatusInRepair},
		{model.RepairStatusInRepair, model.RepairStatusHalfwayCompleted},
		{model.RepairStatusHalfwayCompleted, model.RepairStatusInRepair},
		{model.RepairStatusHalfwayCompleted, model.RepairStatusReadyForPickup},
		{model.RepairStatusReadyForPickup, model.RepairStatusCompleted},
	}
	for _, tr := range legal {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	illegal := [][2]model.RepairStatus{
		{model.RepairStatusApproved, model.RepairStatusRejected},
		{model.RepairStatusRejected, model.RepairStatusApproved},
		{model.RepairStatusPending, model.RepairStatusCustomerApproved},
		{model.RepairStatusCustomerRejected, model.RepairStatusInRepair},
		{model.RepairStatusReadyForPickup, model.RepairStatusInRepair},
		{model.RepairStatusCompleted, model.RepairStatusCancelled},
		{model.RepairStatusInRepair, model.RepairStatusCancelled},
	}
	for _, tr := range illegal {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestEstimatedReadyAtAndOverdue(t *testing.T) {
	approved := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	est := model.TimeEstimate{Value: 2, Unit: model.TimeUnitWeek}
	assert.Equal(t, approved.AddDate(0, 0, 14), EstimatedReadyAt(approved, est))

	r := &model.RepairRequest{Status: model.RepairStatusInRepair, ApprovedAt: &approved, TimeEstimate: &est}
	assert.False(t, IsOverdue(r, approved.AddDate(0, 0, 14)))
	assert.True(t, IsOverdue(r, approved.AddDate(0, 0, 15)))

	r.Status = model.RepairStatusReadyForPickup
	assert.False(t, IsOverdue(r, approved.AddDate(0, 0, 30)))

	assert.False(t, IsOverdue(&model.RepairRequest{Status: model.RepairStatusInRepair}, approved))
}
