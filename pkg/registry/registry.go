package registry

import (
	"fmt"
	"sync"

	"github.com/cuemby/pilot/pkg/component"
	"github.com/cuemby/pilot/pkg/types"
)

// Factory constructs a component.Component for one named kind and
// registers its inputs and outputs (publishers are registered by Start),
// from nothing but its
// ComponentConfig. It must not call Start: construction and
// registration are separate from starting the event loop, matching
// component.New's own "construct, then Start" split.
type Factory func(cfg types.ComponentConfig) (*component.Component, error)

var (
	mu        sync.Mutex
	factories = make(map[string]Factory)
)

// Register adds a named factory. Re-registering a name replaces the
// previous factory; this mirrors the framework's own idempotent-
// registration convention (spec §4.6) rather than panicking on reuse,
// which matters for tests that register a fake stage under a name a
// production binary also uses.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// Lookup resolves kind to its Factory.
func Lookup(kind string) (Factory, error) {
	mu.Lock()
	defer mu.Unlock()
	f, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("registry: no factory registered for kind %q", kind)
	}
	return f, nil
}

// Kinds returns every registered kind name, for diagnostics.
func Kinds() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
