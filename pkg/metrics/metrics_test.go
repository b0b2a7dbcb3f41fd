package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersOnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("repair_desk", reg)

	m.RepairTransitions.WithLabelValues("assign", "In Repair").Inc()
	m.AssignmentRejections.WithLabelValues("capacity_exceeded").Add(2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RepairTransitions.WithLabelValues("assign", "In Repair")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.AssignmentRejections.WithLabelValues("capacity_exceeded")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["repair_desk_repair_transitions_total"])
	assert.True(t, names["repair_desk_repair_assignment_rejections_total"])
}

func TestNewMetrics_TwoInstancesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = Nop()
		_ = Nop()
	})
}
