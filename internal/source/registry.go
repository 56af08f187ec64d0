package source

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a provider instance.
type Factory func() (RosterSource, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a provider available under the given name. Typically called
// from a provider package's init.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// New instantiates the named provider.
func New(name string) (RosterSource, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown roster provider %q (registered: %v)", name, Names())
	}
	return factory()
}

// Names lists registered providers in stable order.
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
