package platform

import (
	"sort"
	"sync"

	"github.com/lukman83/autopost/config"
	"github.com/pkg/errors"
)

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = f
}

// Get builds the adapter registered under name.
func Get(name string, cfg *config.Config, deps Deps) (Adapter, error) {
	mu.RLock()
	f, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNotRegistered, "platform %q", name)
	}
	return f(cfg, deps)
}

func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
