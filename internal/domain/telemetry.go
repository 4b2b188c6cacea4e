package domain

import "time"

// Field names of the telemetry message carried over the channel.
const (
	FieldSensorID  = "sensorId"
	FieldValue     = "value"
	FieldTimestamp = "timestamp"
	FieldExtra     = "extra"
)

// RawPayload is a message as it comes off the channel, before validation.
// Payloads are shared between subscribers and must not be mutated after
// they are published.
type RawPayload map[string]any

type NormalizedReading struct {
	SensorID  SensorID `json:"sensorId"`
	Value     float64  `json:"value"`
	Timestamp float64  `json:"timestamp"` // unix seconds
	InRange   bool     `json:"inRange"`
}

// DropRecord is what the drop journal keeps for a discarded payload.
type DropRecord struct {
	ReceivedAt time.Time
	Reason     string
	RawPayload []byte
}

// UnixSeconds returns t as fractional unix seconds.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
