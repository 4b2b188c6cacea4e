package pipeline

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-telemetry/internal/metrics"
)

func drain[T any](ch <-chan T) []T {
	var out []T
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, v)
		default:
			return out
		}
	}
}

func TestBroadcaster_FanOutPreservesOrder(t *testing.T) {
	b := NewBroadcaster[int]("test", 16)
	a := b.Subscribe()
	c := b.Subscribe()
	require.Equal(t, 2, b.Subscribers())
	require.NotEqual(t, a.ID, c.ID)

	for i := range 5 {
		b.Publish(i)
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, drain(a.C))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, drain(c.C))
}

func TestBroadcaster_LateSubscriberMissesEarlierMessages(t *testing.T) {
	b := NewBroadcaster[string]("test", 4)
	early := b.Subscribe()
	b.Publish("first")

	late := b.Subscribe()
	b.Publish("second")

	assert.Equal(t, []string{"first", "second"}, drain(early.C))
	assert.Equal(t, []string{"second"}, drain(late.C))
}

func TestBroadcaster_FullQueueDoesNotBlock(t *testing.T) {
	b := NewBroadcaster[int]("full-queue", 2)
	slow := b.Subscribe()
	fast := b.Subscribe()

	b.Publish(1)
	b.Publish(2)
	b.Publish(3)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ChannelDrops.WithLabelValues("full-queue")))

	assert.Equal(t, []int{1, 2}, drain(slow.C))
	assert.Equal(t, []int{1, 2}, drain(fast.C))

	b.Publish(4)
	assert.Equal(t, []int{4}, drain(fast.C))
}

func TestBroadcaster_NoSubscribers(t *testing.T) {
	b := NewBroadcaster[int]("test", 1)
	assert.NotPanics(t, func() { b.Publish(1) })
	assert.Zero(t, b.Subscribers())
}

func TestSubscription_Close(t *testing.T) {
	b := NewBroadcaster[int]("test", 4)
	sub := b.Subscribe()
	other := b.Subscribe()

	sub.Close()
	sub.Close()
	assert.Equal(t, 1, b.Subscribers())

	_, ok := <-sub.C
	assert.False(t, ok, "closed subscription channel")

	b.Publish(7)
	assert.Equal(t, []int{7}, drain(other.C))
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster[int]("test", 4)
	sub := b.Subscribe()
	b.Publish(1)
	b.Close()
	b.Close()

	v, ok := <-sub.C
	require.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = <-sub.C
	assert.False(t, ok)

	after := b.Subscribe()
	_, ok = <-after.C
	assert.False(t, ok)
	assert.NotPanics(t, func() { b.Publish(2) })
	assert.NotPanics(t, sub.Close)
}
