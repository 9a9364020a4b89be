package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDispatchOutcomes_Increments(t *testing.T) {
	DispatchOutcomes.Reset()
	DispatchOutcomes.WithLabelValues("ACK").Inc()
	DispatchOutcomes.WithLabelValues("BUSY").Inc()
	DispatchOutcomes.WithLabelValues("BUSY").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(DispatchOutcomes.WithLabelValues("ACK")))
	assert.Equal(t, float64(2), testutil.ToFloat64(DispatchOutcomes.WithLabelValues("BUSY")))
}

func TestNewRegistry_RegistersCollectors(t *testing.T) {
	reg := NewRegistry()
	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotNil(t, families)
}
