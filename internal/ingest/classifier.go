// Package ingest classifies raw telemetry payloads as valid, recoverable or
// drop-worthy and normalizes the ones that can be used.
package ingest

import (
	"fmt"

	"vehicle-telemetry/internal/domain"
)

type Class int

const (
	ClassValid Class = iota
	ClassRecoverable
	ClassDrop
)

func (c Class) String() string {
	switch c {
	case ClassValid:
		return "valid"
	case ClassRecoverable:
		return "recoverable"
	case ClassDrop:
		return "drop"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

type DropReason string

const (
	ReasonMissingSensorID  DropReason = "missing_sensor_id"
	ReasonInvalidSensorID  DropReason = "invalid_sensor_id"
	ReasonUnknownSensor    DropReason = "unknown_sensor"
	ReasonMissingValue     DropReason = "missing_value"
	ReasonInvalidValue     DropReason = "invalid_value"
	ReasonMissingTimestamp DropReason = "missing_timestamp"
	ReasonInvalidTimestamp DropReason = "invalid_timestamp"
	ReasonAmbiguousRepair  DropReason = "ambiguous_repair"
	// ReasonUndecodable is used by transports for frames that are not JSON objects.
	ReasonUndecodable DropReason = "undecodable"
)

// Outcome is the result of classifying one payload. Reading is only
// meaningful when Class is not ClassDrop.
type Outcome struct {
	Class    Class
	Reading  domain.NormalizedReading
	Repaired string     // field coerced from a numeric string, if any
	Reason   DropReason // set for ClassDrop
	Err      error
}

func (o Outcome) Ok() bool {
	return o.Class != ClassDrop
}

// Resolver finds the definition behind a sensor identity.
type Resolver interface {
	Lookup(id domain.SensorID) (domain.SensorDefinition, bool)
}

type Classifier struct {
	sensors Resolver
}

func NewClassifier(sensors Resolver) *Classifier {
	return &Classifier{sensors: sensors}
}

// Classify never panics and never returns an error to the caller; every
// problem with the payload is reported through the Outcome.
func (c *Classifier) Classify(p domain.RawPayload) Outcome {
	rawID, hasID := p[domain.FieldSensorID]
	id, idKind, resolvable := sensorID(rawID, hasID)
	switch idKind {
	case kindMissing:
		return drop(ReasonMissingSensorID, domain.ErrUnparseablePayload, "sensorId missing")
	case kindInvalid:
		return drop(ReasonInvalidSensorID, domain.ErrUnparseablePayload, fmt.Sprintf("sensorId %v is not numeric", rawID))
	}

	rawValue, hasValue := p[domain.FieldValue]
	value, valueKind := number(rawValue, hasValue)
	switch valueKind {
	case kindMissing:
		return drop(ReasonMissingValue, domain.ErrUnparseablePayload, "value missing")
	case kindInvalid:
		return drop(ReasonInvalidValue, domain.ErrUnparseablePayload, fmt.Sprintf("value %v is not numeric", rawValue))
	}

	// Timestamps are never repaired.
	rawTS, hasTS := p[domain.FieldTimestamp]
	ts, tsKind := number(rawTS, hasTS)
	switch tsKind {
	case kindMissing:
		return drop(ReasonMissingTimestamp, domain.ErrUnparseablePayload, "timestamp missing")
	case kindInvalid, kindNumericString:
		return drop(ReasonInvalidTimestamp, domain.ErrUnparseablePayload, fmt.Sprintf("timestamp %v is not a number", rawTS))
	}

	var repaired string
	switch {
	case idKind == kindNumericString && valueKind == kindNumericString:
		return drop(ReasonAmbiguousRepair, domain.ErrUnparseablePayload, "sensorId and value are both string-encoded")
	case idKind == kindNumericString:
		repaired = domain.FieldSensorID
	case valueKind == kindNumericString:
		repaired = domain.FieldValue
	}

	if !resolvable {
		return drop(ReasonUnknownSensor, domain.ErrUnknownSensor, fmt.Sprintf("sensorId %v", rawID))
	}
	def, ok := c.sensors.Lookup(id)
	if !ok {
		return drop(ReasonUnknownSensor, domain.ErrUnknownSensor, fmt.Sprintf("sensorId %d", id))
	}

	out := Outcome{
		Class: ClassValid,
		Reading: domain.NormalizedReading{
			SensorID:  id,
			Value:     value,
			Timestamp: ts,
			InRange:   def.InRange(value),
		},
	}
	if repaired != "" {
		out.Class = ClassRecoverable
		out.Repaired = repaired
		out.Err = fmt.Errorf("%w: %s was string-encoded", domain.ErrMalformedPayload, repaired)
	}
	return out
}

func drop(reason DropReason, kind error, detail string) Outcome {
	return Outcome{
		Class:  ClassDrop,
		Reason: reason,
		Err:    fmt.Errorf("%w: %s", kind, detail),
	}
}
