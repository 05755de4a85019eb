package component

import (
	"context"
	"time"

	"github.com/cuemby/pilot/pkg/metrics"
	"github.com/cuemby/pilot/pkg/types"
)

// Advance is the framework's single state-mutation primitive (spec
// §4.5). If state is non-nil it is assigned to every item first; Worker
// components (AllowStateAssignment == false) must never pass a non-nil
// state — that is the spec's "workers must never pass a new state to
// advance" invariant, enforced here rather than left to convention.
//
// publish emits a state-channel notification for the whole call in one
// message; push enqueues each resulting bucket onto its registered
// output queue. The two are not transactional with each other: a
// publish can succeed while a push fails, or vice versa (spec §4.5
// "Atomicity").
func (c *Component) Advance(ctx context.Context, items []*types.Item, state *types.State, publish, push bool) error {
	if state != nil && !c.AllowStateAssignment {
		panic("component: a Worker must not assign state on advance")
	}
	return c.advance(ctx, items, state, publish, push)
}

// advanceInternal performs the loop's own CANCELED/FAILED transitions
// (loop.go). It bypasses the Worker state-assignment guard that Advance
// enforces: that guard exists to stop a worker *callback* from smuggling
// a new state through its own call, not to stop the framework's own
// loop from advancing a bucket it owns — a Worker registered on an
// input must still survive cancellation and work failure like any other
// Component (spec §4.4 "the component survives item-level failures",
// §5 cancellation applies to every component).
func (c *Component) advanceInternal(ctx context.Context, items []*types.Item, state types.State, publish, push bool) error {
	return c.advance(ctx, items, &state, publish, push)
}

func (c *Component) advance(ctx context.Context, items []*types.Item, state *types.State, publish, push bool) error {
	if len(items) == 0 {
		return nil
	}

	now := time.Now()
	for _, it := range items {
		if state != nil {
			it.State = *state
		}
		if types.IsFinal(it.State) {
			it.PublishFull = true
		}
		metrics.ItemsAdvancedTotal.WithLabelValues(string(it.Type), string(it.State)).Inc()
		c.logger.Debug().
			Str("uid", it.UID).
			Str("state", string(it.State)).
			Time("advanced_at", now).
			Msg("component: advance")
	}

	var firstErr error

	if publish {
		if err := c.publishStateUpdate(ctx, items); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// publish_full never survives past the call that set it, whether or
	// not publish actually ran (spec §3 "publish_full ... The flag is
	// stripped before an item crosses a component boundary").
	for _, it := range items {
		it.PublishFull = false
	}

	if push {
		if err := c.pushBuckets(ctx, items); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (c *Component) publishStateUpdate(ctx context.Context, items []*types.Item) error {
	payload, err := encodeStateUpdate(items)
	if err != nil {
		return err
	}
	p, err := c.getPubSub("state")
	if err != nil {
		return err
	}
	return p.Publish(ctx, payload)
}

func (c *Component) pushBuckets(ctx context.Context, items []*types.Item) error {
	buckets := make(map[types.State][]*types.Item)
	order := make([]types.State, 0, 4)
	for _, it := range items {
		if _, ok := buckets[it.State]; !ok {
			order = append(order, it.State)
		}
		buckets[it.State] = append(buckets[it.State], it)
	}

	var firstErr error
	for _, state := range order {
		bucket := buckets[state]
		if types.IsFinal(state) {
			// already published in full; FINAL items are never pushed.
			continue
		}

		c.regMu.Lock()
		reg, ok := c.outputs[state]
		c.regMu.Unlock()

		if !ok {
			c.logger.Warn().
				Str("state", string(state)).
				Msg("component: advance: no output registered, dropping bucket")
			continue
		}
		if reg.isNone {
			continue
		}

		clones := make([]*types.Item, len(bucket))
		for i, it := range bucket {
			clones[i] = it.Clone()
		}
		payload, err := encodeItems(clones)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := reg.queue.Push(ctx, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
