package domain

import (
	"fmt"
	"strconv"
	"time"
)

// SensorID is the numeric identity shared by registry entries, generated
// payloads and stored readings.
type SensorID int64

const (
	frameIDLimit     = 10_000_000_000
	signalIndexLimit = 100

	// MaxSensorID keeps identities exact when carried as JSON numbers.
	MaxSensorID SensorID = 1<<53 - 1

	// MinSampleInterval is the fastest cadence a sensor may be sampled at.
	MinSampleInterval = 50 * time.Millisecond
)

func (id SensorID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

type SensorDefinition struct {
	BusNumber   int64   `yaml:"busNumber" json:"busNumber"`
	FrameID     int64   `yaml:"frameId" json:"frameId"`
	SignalIndex int64   `yaml:"signalIndex" json:"signalIndex"`
	Name        string  `yaml:"sensorName" json:"sensorName"`
	Unit        string  `yaml:"unit" json:"unit"`
	MinValue    float64 `yaml:"minValue" json:"minValue"`
	MaxValue    float64 `yaml:"maxValue" json:"maxValue"`
	IntervalMS  int     `yaml:"intervalMs" json:"intervalMs"`
}

// Identity encodes (bus, frame, signal) as bus*1e12 + frame*100 + signal.
func (d SensorDefinition) Identity() SensorID {
	id := d.BusNumber
	id = id*frameIDLimit + d.FrameID
	id = id*signalIndexLimit + d.SignalIndex
	return SensorID(id)
}

func (d SensorDefinition) InRange(v float64) bool {
	return v >= d.MinValue && v <= d.MaxValue
}

func (d SensorDefinition) Interval() time.Duration {
	interval := time.Duration(d.IntervalMS) * time.Millisecond
	if interval < MinSampleInterval {
		return MinSampleInterval
	}
	return interval
}

func (d SensorDefinition) Metadata() SensorMetadata {
	return SensorMetadata{
		SensorID:   d.Identity(),
		SensorName: d.Name,
		Unit:       d.Unit,
	}
}

// Validate checks the ranges the identity encoding relies on.
func (d SensorDefinition) Validate() error {
	switch {
	case d.Name == "":
		return fmt.Errorf("sensor definition has no name")
	case d.BusNumber < 0:
		return fmt.Errorf("sensor %q: bus number %d is negative", d.Name, d.BusNumber)
	case d.FrameID < 0 || d.FrameID >= frameIDLimit:
		return fmt.Errorf("sensor %q: frame id %d out of range [0, %d)", d.Name, d.FrameID, int64(frameIDLimit))
	case d.SignalIndex < 0 || d.SignalIndex >= signalIndexLimit:
		return fmt.Errorf("sensor %q: signal index %d out of range [0, %d)", d.Name, d.SignalIndex, signalIndexLimit)
	case d.MinValue > d.MaxValue:
		return fmt.Errorf("sensor %q: min %v greater than max %v", d.Name, d.MinValue, d.MaxValue)
	}

	// bus*1e12 overflows int64 long before it is rejected below.
	if d.BusNumber > int64(MaxSensorID)/(frameIDLimit*signalIndexLimit) {
		return fmt.Errorf("sensor %q: bus number %d too large", d.Name, d.BusNumber)
	}
	if d.Identity() > MaxSensorID {
		return fmt.Errorf("sensor %q: identity %d exceeds %d", d.Name, d.Identity(), MaxSensorID)
	}
	return nil
}

type SensorMetadata struct {
	SensorID   SensorID `json:"sensorId"`
	SensorName string   `json:"sensorName"`
	Unit       string   `json:"unit"`
}
