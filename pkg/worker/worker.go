package worker

import (
	"github.com/cuemby/pilot/pkg/component"
	"github.com/cuemby/pilot/pkg/types"
)

// New constructs a Worker: a component.Component with
// AllowStateAssignment forced false, so any call to Advance that
// supplies a non-nil state panics instead of silently mutating state
// (spec §2, "A Worker is a Component variant that is forbidden from
// changing item state (enforced at the advance operation)"). A Worker's
// StateWorker callbacks must pre-advance an item's State field
// themselves and call Advance with a nil state argument.
func New(cfg types.ComponentConfig, kind string) *component.Component {
	c := component.New(cfg, kind)
	c.AllowStateAssignment = false
	return c
}
