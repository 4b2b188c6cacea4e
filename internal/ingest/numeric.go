package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"vehicle-telemetry/internal/domain"
)

// A numeric string must be a plain decimal number from end to end.
// strconv alone would also accept "NaN", "Inf" and hex floats.
var decimalPattern = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?$`)

// ParseStrictFloat parses s as a finite decimal number, rejecting any
// trailing or interior garbage.
func ParseStrictFloat(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if !decimalPattern.MatchString(trimmed) {
		return 0, fmt.Errorf("%q is not a decimal number", s)
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, err)
	}
	if math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q overflows float64", s)
	}
	return f, nil
}

type fieldKind int

const (
	kindMissing fieldKind = iota
	kindNumber
	kindNumericString
	kindInvalid
)

// number extracts a float from a native numeric field or a strict numeric
// string. NaN and infinities are reported as invalid.
func number(v any, present bool) (float64, fieldKind) {
	if !present {
		return 0, kindMissing
	}

	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case domain.SensorID:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, kindInvalid
		}
		f = parsed
	case string:
		parsed, err := ParseStrictFloat(n)
		if err != nil {
			return 0, kindInvalid
		}
		return parsed, kindNumericString
	default:
		return 0, kindInvalid
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, kindInvalid
	}
	return f, kindNumber
}

// sensorID resolves an identity field. Integer-typed inputs are taken as is
// so identities never round-trip through float64. The bool reports whether
// the number is a usable identity at all.
func sensorID(v any, present bool) (domain.SensorID, fieldKind, bool) {
	switch n := v.(type) {
	case int64:
		return domain.SensorID(n), kindNumber, validID(n)
	case int:
		return domain.SensorID(n), kindNumber, validID(int64(n))
	case domain.SensorID:
		return n, kindNumber, validID(int64(n))
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return domain.SensorID(i), kindNumber, validID(i)
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return domain.SensorID(i), kindNumericString, validID(i)
		}
	}

	f, kind := number(v, present)
	if kind == kindMissing || kind == kindInvalid {
		return 0, kind, false
	}
	if f != math.Trunc(f) || f < 0 || f > float64(domain.MaxSensorID) {
		return 0, kind, false
	}
	return domain.SensorID(f), kind, true
}

func validID(i int64) bool {
	return i >= 0 && i <= int64(domain.MaxSensorID)
}
