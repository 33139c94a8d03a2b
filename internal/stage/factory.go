package stage

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Kind names a stage slot in the pipeline.
type Kind string

const (
	KindExtractor   Kind = "extractor"
	KindEnricher    Kind = "enricher"
	KindTagMapper   Kind = "tag_mapper"
	KindModelMapper Kind = "model_mapper"
	KindSeeder      Kind = "seeder"
	KindArchiver    Kind = "archiver"
)

// ErrUnknownType is returned when no constructor is registered for a
// (kind, type name) pair.
var ErrUnknownType = errors.New("unknown component type")

// Constructor builds a stage from its dependencies.
type Constructor func(Deps) (Stage, error)

var (
	registryMu sync.RWMutex
	registry   = map[Kind]map[string]Constructor{}
)

// Register adds a constructor for a component type. Called from init
// funcs; later registrations for the same pair overwrite earlier ones.
func Register(kind Kind, typeName string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if registry[kind] == nil {
		registry[kind] = map[string]Constructor{}
	}
	registry[kind][typeName] = ctor
}

// Types lists the registered type names for a kind, for CLI help and
// validation messages.
func Types(kind Kind) []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var names []string
	for name := range registry[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New resolves a component type name to a constructed stage.
func New(kind Kind, typeName string, deps Deps) (Stage, error) {
	registryMu.RLock()
	ctor, ok := registry[kind][typeName]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrUnknownType, kind, typeName)
	}
	return ctor(deps)
}

func init() {
	Register(KindExtractor, "ollama", newOllamaExtractor)
	Register(KindExtractor, "jsonfile", newJSONFileExtractor)
	Register(KindEnricher, "metadata", newMetadataEnricher)
	Register(KindEnricher, "hub", newHubEnricher)
	Register(KindTagMapper, "simple", newSimpleTagMapper)
	Register(KindTagMapper, "fallback", newFallbackTagMapper)
	Register(KindModelMapper, "standard", newStandardModelMapper)
	Register(KindSeeder, "api", newAPISeeder)
	Register(KindSeeder, "mock", newMockSeeder)
	Register(KindArchiver, "simple", newSimpleArchiver)
	Register(KindArchiver, "metadata", newMetadataArchiver)
}
