package pipeline

import (
	"sync"

	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/metrics"
)

// Dispatcher hands ingestion results to the optional mirrors. A nil channel
// means that mirror is disabled.
type Dispatcher struct {
	StateChan chan domain.NormalizedReading
	AlertChan chan domain.NormalizedReading
	DropChan  chan domain.DropRecord

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates queues for the mirrors whose size is positive.
func NewDispatcher(stateSize, alertSize, dropSize int) *Dispatcher {
	d := &Dispatcher{}
	if stateSize > 0 {
		d.StateChan = make(chan domain.NormalizedReading, stateSize)
	}
	if alertSize > 0 {
		d.AlertChan = make(chan domain.NormalizedReading, alertSize)
	}
	if dropSize > 0 {
		d.DropChan = make(chan domain.DropRecord, dropSize)
	}
	return d
}

func (d *Dispatcher) DispatchReading(r domain.NormalizedReading) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.StateChan != nil {
		select {
		case d.StateChan <- r:
		default:
			metrics.DispatchDrops.WithLabelValues("state").Inc()
		}
	}

	if d.AlertChan != nil && !r.InRange {
		select {
		case d.AlertChan <- r:
		default:
			metrics.DispatchDrops.WithLabelValues("alert").Inc()
		}
	}
}

func (d *Dispatcher) DispatchDrop(rec domain.DropRecord) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || d.DropChan == nil {
		return
	}
	select {
	case d.DropChan <- rec:
	default:
		metrics.DispatchDrops.WithLabelValues("drop").Inc()
	}
}

// Close closes every queue so the writers drain and stop. Later dispatches
// are discarded.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true

	if d.StateChan != nil {
		close(d.StateChan)
	}
	if d.AlertChan != nil {
		close(d.AlertChan)
	}
	if d.DropChan != nil {
		close(d.DropChan)
	}
}
