package domain

import "errors"

var (
	// ErrMalformedPayload marks a payload repaired by numeric coercion.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnparseablePayload marks a payload that had to be dropped.
	ErrUnparseablePayload = errors.New("unparseable payload")
	ErrUnknownSensor      = errors.New("unknown sensor")
	ErrChannelUnavailable = errors.New("telemetry channel unavailable")
)
