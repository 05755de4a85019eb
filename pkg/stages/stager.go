package stages

import (
	"context"

	"github.com/cuemby/pilot/pkg/component"
	"github.com/cuemby/pilot/pkg/registry"
	"github.com/cuemby/pilot/pkg/types"
)

func init() {
	registry.Register("stager", NewStager)
}

// NewStager builds the example stager stage: it consumes items in
// either STAGING_INPUT or STAGING_OUTPUT, on one shared queue, and
// advances each bucket to the paired STAGED_INPUT/STAGED_OUTPUT state
// (spec SPEC_FULL.md §4.9). It carries no real staging directive logic.
func NewStager(cfg types.ComponentConfig) (*component.Component, error) {
	c := component.New(cfg, "stager")

	if err := c.RegisterOutput(types.StateStagedInput, outputQueueIfConfigured(cfg.Bridges, types.StateStagedInput)); err != nil {
		return nil, err
	}
	if err := c.RegisterOutput(types.StateStagedOutput, outputQueueIfConfigured(cfg.Bridges, types.StateStagedOutput)); err != nil {
		return nil, err
	}
	if err := c.RegisterInput(
		[]types.State{types.StateStagingInput, types.StateStagingOutput},
		"staging",
		stageWork,
	); err != nil {
		return nil, err
	}
	return c, nil
}

func stageWork(c *component.Component, items []*types.Item) error {
	if len(items) == 0 {
		return nil
	}
	next := types.StateStagedInput
	if items[0].State == types.StateStagingOutput {
		next = types.StateStagedOutput
	}
	return c.Advance(context.Background(), items, &next, true, true)
}
