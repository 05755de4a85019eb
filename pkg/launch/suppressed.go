package launch

import (
	"context"

	"github.com/cuemby/pilot/pkg/component"
	"github.com/cuemby/pilot/pkg/registry"
	"github.com/cuemby/pilot/pkg/types"
)

// Suppressed starts kind's component directly in the caller's process
// (spec §4.3: "Either spawning is suppressed, in which case the parent
// context runs the loop itself"). No subprocess is created; the
// Component's own Start/Stop already does all per-context
// initialization, so there is nothing left for the launcher to do but
// construct it and call Start.
func Suppressed(ctx context.Context, kind string, cfg types.ComponentConfig) (Handle, error) {
	factory, err := registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	c, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return &suppressedHandle{c: c}, nil
}

type suppressedHandle struct {
	c *component.Component
}

func (h *suppressedHandle) Stop() error {
	h.c.Stop()
	return nil
}

func (h *suppressedHandle) Wait() error {
	h.c.Wait()
	return nil
}
