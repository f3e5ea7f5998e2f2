package motionplan

import (
	"context"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/grasping/logging"
)

// AttributeMap holds backend specific attributes as read from the config file.
type AttributeMap map[string]interface{}

// Dependencies are what a backend may use besides its own attributes.
type Dependencies struct {
	Scene Scene
}

// A Create creates a backend from its dependencies and attributes.
type Create func(ctx context.Context, deps Dependencies, attrs AttributeMap, logger logging.Logger) (Backend, error)

// A Registration stores construction info for a backend.
type Registration struct {
	Constructor Create
	// Validate checks the attributes at config time. Optional.
	Validate func(attrs AttributeMap) error
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Registration{}
)

// RegisterBackend registers a backend under name. It panics on a duplicate name or a nil
// constructor, as registration happens in init.
func RegisterBackend(name string, reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, old := registry[name]; old {
		panic(errors.Errorf("trying to register two planner backends with same name: %q", name))
	}
	if reg.Constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for planner backend: %q", name))
	}
	registry[name] = reg
}

// LookupBackend returns the registration of the backend named name.
func LookupBackend(name string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[name]
	return reg, ok
}

// RegisteredBackends returns the names of all registered backends, sorted.
func RegisteredBackends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := lo.Keys(registry)
	sort.Strings(names)
	return names
}

// NewBackend constructs the backend registered under name.
func NewBackend(ctx context.Context, name string, deps Dependencies, attrs AttributeMap, logger logging.Logger) (Backend, error) {
	reg, ok := LookupBackend(name)
	if !ok {
		return nil, NewUnknownBackendError(name)
	}
	if reg.Validate != nil {
		if err := reg.Validate(attrs); err != nil {
			return nil, errors.Wrapf(err, "invalid attributes for planner backend %q", name)
		}
	}
	return reg.Constructor(ctx, deps, attrs, logger)
}

// DecodeAttributes decodes attrs into a T using the json field names of T. Unknown attributes
// are an error.
func DecodeAttributes[T any](attrs AttributeMap) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(map[string]interface{}(attrs)); err != nil {
		return out, err
	}
	return out, nil
}
