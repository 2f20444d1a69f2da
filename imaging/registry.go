package imaging

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/caihong2050-art/futurize/futurize"
)

// ErrUnknownBackend is returned by Open for names nobody registered.
var ErrUnknownBackend = errors.New("imaging: unknown backend")

// Factory builds a Backend whose controllers use opts.
type Factory func(opts ...futurize.Option) Backend

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"std": func(opts ...futurize.Option) Backend { return NewStdBackend(opts...) },
	}
)

// Register makes a backend available under name, replacing any previous
// factory with that name.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Open builds the backend registered under name.
func Open(name string, opts ...futurize.Option) (Backend, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return f(opts...), nil
}

// Backends lists the registered names in order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Sorted(maps.Keys(registry))
}
