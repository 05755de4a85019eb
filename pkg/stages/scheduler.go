package stages

import (
	"context"

	"github.com/cuemby/pilot/pkg/component"
	"github.com/cuemby/pilot/pkg/registry"
	"github.com/cuemby/pilot/pkg/types"
)

func init() {
	registry.Register("scheduler", NewScheduler)
}

// NewScheduler builds the example scheduler stage: it consumes items in
// SCHEDULING and advances them to SCHEDULED (spec SPEC_FULL.md §4.9).
// It carries no real scheduling policy — that remains an external
// collaborator's responsibility.
func NewScheduler(cfg types.ComponentConfig) (*component.Component, error) {
	c := component.New(cfg, "scheduler")

	if err := c.RegisterOutput(types.StateScheduled, outputQueueIfConfigured(cfg.Bridges, types.StateScheduled)); err != nil {
		return nil, err
	}
	if err := c.RegisterInput(
		[]types.State{types.StateScheduling},
		queueNameForState(types.StateScheduling),
		scheduleWork,
	); err != nil {
		return nil, err
	}
	return c, nil
}

func scheduleWork(c *component.Component, items []*types.Item) error {
	scheduled := types.StateScheduled
	return c.Advance(context.Background(), items, &scheduled, true, true)
}
