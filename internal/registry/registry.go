// Package registry holds the static set of sensor definitions, keyed by
// their numeric identity.
package registry

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"vehicle-telemetry/internal/domain"
)

//go:embed sensors.yaml
var defaultSensors []byte

type file struct {
	Sensors []domain.SensorDefinition `yaml:"sensors"`
}

// Registry is read-only after construction and safe for concurrent use.
type Registry struct {
	defs []domain.SensorDefinition
	byID map[domain.SensorID]int
}

func New(defs []domain.SensorDefinition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("registry: no sensor definitions")
	}

	r := &Registry{
		defs: make([]domain.SensorDefinition, len(defs)),
		byID: make(map[domain.SensorID]int, len(defs)),
	}
	copy(r.defs, defs)

	for i, def := range r.defs {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
		id := def.Identity()
		if prev, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("registry: sensors %q and %q share identity %d", r.defs[prev].Name, def.Name, id)
		}
		r.byID[id] = i
	}

	return r, nil
}

// Parse reads a `sensors:` document. JSON input is accepted as well.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("registry: failed to parse sensor definitions: %w", err)
	}
	return New(f.Sensors)
}

// Load reads definitions from path, or the built-in set when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Parse(defaultSensors)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the built-in sensor set.
func Default() *Registry {
	r, err := Parse(defaultSensors)
	if err != nil {
		panic(err)
	}
	return r
}

// IdentityOf is the identity encoding applied to def.
func IdentityOf(def domain.SensorDefinition) domain.SensorID {
	return def.Identity()
}

// Definitions returns a copy of the definitions in load order.
func (r *Registry) Definitions() []domain.SensorDefinition {
	out := make([]domain.SensorDefinition, len(r.defs))
	copy(out, r.defs)
	return out
}

func (r *Registry) Lookup(id domain.SensorID) (domain.SensorDefinition, bool) {
	i, ok := r.byID[id]
	if !ok {
		return domain.SensorDefinition{}, false
	}
	return r.defs[i], true
}

func (r *Registry) MetadataOf(id domain.SensorID) (domain.SensorMetadata, error) {
	def, ok := r.Lookup(id)
	if !ok {
		return domain.SensorMetadata{}, fmt.Errorf("%w: %d", domain.ErrUnknownSensor, id)
	}
	return def.Metadata(), nil
}

// Metadata lists every sensor in load order.
func (r *Registry) Metadata() []domain.SensorMetadata {
	out := make([]domain.SensorMetadata, len(r.defs))
	for i, def := range r.defs {
		out[i] = def.Metadata()
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.defs)
}
