package pipeline

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/metrics"
)

func TestDispatcher_DisabledMirrors(t *testing.T) {
	d := NewDispatcher(0, 0, 0)
	assert.Nil(t, d.StateChan)
	assert.Nil(t, d.AlertChan)
	assert.Nil(t, d.DropChan)

	assert.NotPanics(t, func() {
		d.DispatchReading(domain.NormalizedReading{SensorID: 1})
		d.DispatchDrop(domain.DropRecord{Reason: "missing_value"})
		d.Close()
	})
}

func TestDispatcher_CountsFullQueues(t *testing.T) {
	d := NewDispatcher(1, 1, 1)
	before := testutil.ToFloat64(metrics.DispatchDrops.WithLabelValues("alert"))

	out := domain.NormalizedReading{SensorID: 1, InRange: false}
	d.DispatchReading(out)
	d.DispatchReading(out)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DispatchDrops.WithLabelValues("alert")))
	assert.Len(t, drain(d.AlertChan), 1)
}

func TestDispatcher_AfterClose(t *testing.T) {
	d := NewDispatcher(1, 1, 1)
	d.Close()
	d.Close()

	assert.NotPanics(t, func() {
		d.DispatchReading(domain.NormalizedReading{SensorID: 1})
		d.DispatchDrop(domain.DropRecord{})
	})

	_, ok := <-d.StateChan
	assert.False(t, ok)
	_, ok = <-d.DropChan
	assert.False(t, ok)
}
