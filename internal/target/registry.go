package target

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a target instance.
type Factory func() (EnrollmentTarget, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a target available under the given name. Typically called
// from a target package's init.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// New instantiates the named target.
func New(name string) (EnrollmentTarget, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown enrollment target %q (registered: %v)", name, Names())
	}
	return factory()
}

// Names lists registered targets in stable order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
