package providers

import (
	"sort"
	"sync"
)

// Factory constructs a RentalProvider from its configuration. Factories are
// registered once per provider type tag, typically from an init() function
// in the provider's package.
type Factory func(cfg Config) (RentalProvider, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register registers a provider factory under a type tag.
func Register(typeTag string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if typeTag == "" {
		panic("providers: Register called with empty type tag")
	}
	if f == nil {
		panic("providers: Register factory is nil for type " + typeTag)
	}
	if _, dup := registry[typeTag]; dup {
		panic("providers: Register called twice for type " + typeTag)
	}
	registry[typeTag] = f
}

// Lookup returns the factory for a provider type tag.
func Lookup(typeTag string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[typeTag]
	return f, ok
}

// SupportedTypes returns the sorted list of registered provider type tags.
func SupportedTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var tags []string
	for t := range registry {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
