package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensorDefinition_Identity(t *testing.T) {
	tests := []struct {
		name string
		def  SensorDefinition
		want SensorID
	}{
		{"zero", SensorDefinition{}, 0},
		{"signal only", SensorDefinition{SignalIndex: 7}, 7},
		{"frame and signal", SensorDefinition{FrameID: 1234567890}, 123456789000},
		{"full", SensorDefinition{BusNumber: 1, FrameID: 217056256, SignalIndex: 1}, 1021705625601},
		{"max frame", SensorDefinition{BusNumber: 2, FrameID: 9_999_999_999, SignalIndex: 99}, 2999999999999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.def.Identity())
		})
	}
}

func TestSensorDefinition_IdentityIsInjective(t *testing.T) {
	buses := []int64{0, 1, 2, 9, 10, 99, 100, 9000}
	frames := []int64{0, 1, 99, 100, 217056256, 419360256, 9_999_999_999}
	signals := []int64{0, 1, 9, 10, 99}

	seen := make(map[SensorID][3]int64)
	for _, bus := range buses {
		for _, frame := range frames {
			for _, signal := range signals {
				def := SensorDefinition{BusNumber: bus, FrameID: frame, SignalIndex: signal}
				id := def.Identity()
				prev, dup := seen[id]
				require.Falsef(t, dup, "identity %d produced by %v and %v", id, prev, [3]int64{bus, frame, signal})
				seen[id] = [3]int64{bus, frame, signal}
			}
		}
	}
	assert.Len(t, seen, len(buses)*len(frames)*len(signals))
}

func TestSensorDefinition_InRange(t *testing.T) {
	def := SensorDefinition{MinValue: 0, MaxValue: 100}

	assert.True(t, def.InRange(0))
	assert.True(t, def.InRange(100))
	assert.True(t, def.InRange(47.5))
	assert.False(t, def.InRange(142.3))
	assert.False(t, def.InRange(-0.001))
}

func TestSensorDefinition_Interval(t *testing.T) {
	assert.Equal(t, MinSampleInterval, SensorDefinition{IntervalMS: 0}.Interval())
	assert.Equal(t, MinSampleInterval, SensorDefinition{IntervalMS: 10}.Interval())
	assert.Equal(t, 250*time.Millisecond, SensorDefinition{IntervalMS: 250}.Interval())
}

func TestSensorDefinition_Validate(t *testing.T) {
	valid := SensorDefinition{BusNumber: 1, FrameID: 217056256, SignalIndex: 1, Name: "Engine Speed", MinValue: 0, MaxValue: 8000}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(d *SensorDefinition)
	}{
		{"no name", func(d *SensorDefinition) { d.Name = "" }},
		{"negative bus", func(d *SensorDefinition) { d.BusNumber = -1 }},
		{"frame too large", func(d *SensorDefinition) { d.FrameID = 10_000_000_000 }},
		{"negative frame", func(d *SensorDefinition) { d.FrameID = -5 }},
		{"signal too large", func(d *SensorDefinition) { d.SignalIndex = 100 }},
		{"inverted range", func(d *SensorDefinition) { d.MinValue, d.MaxValue = 10, 5 }},
		{"bus overflows safe integer", func(d *SensorDefinition) { d.BusNumber = 9008 }},
		{"bus overflows int64", func(d *SensorDefinition) { d.BusNumber = 10_000_000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := valid
			tt.mutate(&def)
			assert.Error(t, def.Validate())
		})
	}
}
