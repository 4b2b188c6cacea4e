package generator

import (
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"vehicle-telemetry/internal/domain"
)

// Random is the source every injection decision is drawn from.
// *rand.Rand from math/rand/v2 satisfies it.
type Random interface {
	Float64() float64
}

// NewRandom returns a PCG source. Seed 0 picks a time-based seed.
func NewRandom(seed uint64) Random {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

type Shape int

const (
	ShapeNone Shape = iota
	ShapeStringSensorID
	ShapeStringValue
	ShapeGarbageValue
	ShapeMissingSensorID
)

func (s Shape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeStringSensorID:
		return "string_sensor_id"
	case ShapeStringValue:
		return "string_value"
	case ShapeGarbageValue:
		return "garbage_value"
	case ShapeMissingSensorID:
		return "missing_sensor_id"
	default:
		return "unknown"
	}
}

const shapeKinds = 4

type FaultConfig struct {
	OverspillProbability  float64
	ShapeFaultProbability float64
	ExtraFieldProbability float64
}

func DefaultFaultConfig() FaultConfig {
	return FaultConfig{
		OverspillProbability:  0.20,
		ShapeFaultProbability: 0.15,
		ExtraFieldProbability: 0.05,
	}
}

// Sample is one generated reading together with the faults applied to it.
type Sample struct {
	SensorID  domain.SensorID
	Value     float64
	Timestamp float64
	Overspill bool
	Shape     Shape
	Garbage   string // replacement token for ShapeGarbageValue
	Extra     bool
}

// Payload renders the sample as it goes onto the channel.
func (s Sample) Payload() domain.RawPayload {
	p := domain.RawPayload{
		domain.FieldSensorID:  int64(s.SensorID),
		domain.FieldValue:     s.Value,
		domain.FieldTimestamp: s.Timestamp,
	}

	switch s.Shape {
	case ShapeStringSensorID:
		p[domain.FieldSensorID] = s.SensorID.String()
	case ShapeStringValue:
		p[domain.FieldValue] = strconv.FormatFloat(s.Value, 'f', 3, 64)
	case ShapeGarbageValue:
		p[domain.FieldValue] = s.Garbage
	case ShapeMissingSensorID:
		delete(p, domain.FieldSensorID)
	}

	if s.Extra {
		p[domain.FieldExtra] = "junk"
	}
	return p
}

// FaultInjector draws values and faults for generated samples. It is safe
// for concurrent use by all sensor goroutines.
type FaultInjector struct {
	mu  sync.Mutex
	rnd Random
	cfg FaultConfig
}

func NewFaultInjector(rnd Random, cfg FaultConfig) *FaultInjector {
	return &FaultInjector{rnd: rnd, cfg: cfg}
}

// Sample draws, in order: overspill decision, value (side and magnitude
// when overspilling), shape decision and kind, garbage token, extra field.
func (f *FaultInjector) Sample(def domain.SensorDefinition, now time.Time) Sample {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := Sample{
		SensorID:  def.Identity(),
		Timestamp: domain.UnixSeconds(now),
	}

	if f.rnd.Float64() < f.cfg.OverspillProbability {
		s.Overspill = true
		s.Value = f.overspill(def)
	} else {
		s.Value = def.MinValue + f.rnd.Float64()*(def.MaxValue-def.MinValue)
	}

	if f.rnd.Float64() < f.cfg.ShapeFaultProbability {
		kind := int(f.rnd.Float64() * shapeKinds)
		if kind >= shapeKinds {
			kind = shapeKinds - 1
		}
		s.Shape = Shape(kind + 1)
		if s.Shape == ShapeGarbageValue {
			s.Garbage = f.garbage()
		}
	}

	s.Extra = f.rnd.Float64() < f.cfg.ExtraFieldProbability
	return s
}

// overspill lands 10%-60% of the range span beyond min or max.
func (f *FaultInjector) overspill(def domain.SensorDefinition) float64 {
	span := def.MaxValue - def.MinValue
	if span <= 0 {
		span = 1
	}
	below := f.rnd.Float64() < 0.5
	offset := span * (0.1 + f.rnd.Float64()*0.5)
	if below {
		return def.MinValue - offset
	}
	return def.MaxValue + offset
}

const (
	garbageDigits  = "0123456789"
	garbageLetters = "ABCDFGHJKMNPQRSTUVWYZ" // no E or X: "7E3" and "0X1P3" parse
	garbageLength  = 6
)

// garbage builds a token like "7F3Q9K": a digit, then a letter, then
// alphanumeric noise. The interior letter keeps it from ever parsing as a
// decimal number.
func (f *FaultInjector) garbage() string {
	alnum := garbageDigits + garbageLetters
	b := make([]byte, garbageLength)
	b[0] = pick(garbageDigits, f.rnd.Float64())
	b[1] = pick(garbageLetters, f.rnd.Float64())
	for i := 2; i < garbageLength; i++ {
		b[i] = pick(alnum, f.rnd.Float64())
	}
	return string(b)
}

func pick(set string, u float64) byte {
	i := int(u * float64(len(set)))
	if i >= len(set) {
		i = len(set) - 1
	}
	return set[i]
}
