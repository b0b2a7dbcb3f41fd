package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeEstimate(t *testing.T) {
	tests := []struct {
		in   string
		want TimeEstimate
		days int
	}{
		{"3 days", TimeEstimate{3, TimeUnitDay}, 3},
		{"1 day", TimeEstimate{1, TimeUnitDay}, 1},
		{"2 weeks", TimeEstimate{2, TimeUnitWeek}, 14},
		{" 1 Week ", TimeEstimate{1, TimeUnitWeek}, 7},
		{"5", TimeEstimate{5, TimeUnitDay}, 5},
	}

	for _, tt := range tests {
		got, err := ParseTimeEstimate(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.days, got.Days(), tt.in)
	}
}

func TestParseTimeEstimateRejectsMalformedInput(t *testing.T) {
	for _, in := range []string{"", "soon", "three days", "0 days", "-2 days", "3 fortnights", "3 days maybe"} {
		_, err := ParseTimeEstimate(in)
		assert.Error(t, err, in)
	}
}

func TestTimeEstimateAddToAndString(t *testing.T) {
	start := time.Date(2024, 3, 30, 10, 0, 0, 0, time.UTC)

	est := TimeEstimate{Value: 2, Unit: TimeUnitWeek}
	assert.Equal(t, time.Date(2024, 4, 13, 10, 0, 0, 0, time.UTC), est.AddTo(start))
	assert.Equal(t, "2 weeks", est.String())
	assert.Equal(t, "1 day", TimeEstimate{Value: 1, Unit: TimeUnitDay}.String())
}

func TestParseRepairStatus(t *testing.T) {
	s, ok := ParseRepairStatus("ready for pickup")
	require.True(t, ok)
	assert.Equal(t, RepairStatusReadyForPickup, s)

	_, ok = ParseRepairStatus("shipped")
	assert.False(t, ok)

	assert.True(t, RepairStatusHalfwayCompleted.IsActive())
	assert.False(t, RepairStatusReadyForPickup.IsActive())
}
