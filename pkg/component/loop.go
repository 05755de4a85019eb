package component

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/pilot/pkg/metrics"
	"github.com/cuemby/pilot/pkg/types"
)

// pollTimeout bounds each non-blocking input poll (spec §4.4 step 2,
// "non-blockingly poll its queue with a bounded timeout").
const pollTimeout = 200 * time.Millisecond

// idleSleep is how long the loop sleeps when no inputs are registered
// at all (spec §4.4 step 1).
const idleSleep = 200 * time.Millisecond

// runLoop is the event loop (spec §4.4): poll every registered input,
// assert and bucket by state, drain cancellations, invoke the bound
// worker per bucket, and contain any worker failure as an advance to
// FAILED rather than letting it escape the loop. A panic that escapes
// this far is not an item-level failure (that containment lives in
// processBucket/invokeWorker) but a bug in the loop itself; it is
// logged and the component is finalised and exits rather than taking
// the whole process down (spec §4.4 "Unhandled exception in the loop
// itself (logged, then finaliser runs)").
func (c *Component) runLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Interface("panic", r).
				Msg("component: event loop panicked, terminating")
			go c.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.regMu.Lock()
		queues := make([]*queueBinding, 0, len(c.inputs))
		for _, qb := range c.inputs {
			queues = append(queues, qb)
		}
		c.regMu.Unlock()

		if len(queues) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleSleep):
			}
			continue
		}

		for _, qb := range queues {
			select {
			case <-ctx.Done():
				return
			default:
			}
			c.pollOnce(ctx, qb)
		}
	}
}

func (c *Component) pollOnce(ctx context.Context, qb *queueBinding) {
	popCtx, cancel := context.WithTimeout(ctx, pollTimeout)
	payload, err := qb.queue.Pop(popCtx)
	cancel()
	if err != nil {
		// timeout or context cancellation: the "empty sentinel on
		// timeout" the queue contract describes (spec §4.1).
		return
	}

	items, err := decodeItems(payload)
	if err != nil {
		c.logger.Error().Err(err).Str("queue", qb.name).Msg("component: dropping malformed bulk")
		return
	}

	accepted := make([]*types.Item, 0, len(items))
	for _, it := range items {
		if !qb.states[it.State] {
			c.logger.Error().
				Str("queue", qb.name).
				Str("uid", it.UID).
				Str("state", string(it.State)).
				Msg("component: item state not accepted on this input, dropping")
			continue
		}
		accepted = append(accepted, it)
	}
	if len(accepted) == 0 {
		return
	}

	buckets := bucketByState(accepted)
	for _, state := range buckets.order {
		c.processBucket(ctx, qb, state, buckets.items[state])
	}
}

type stateBuckets struct {
	order []types.State
	items map[types.State][]*types.Item
}

func bucketByState(items []*types.Item) stateBuckets {
	b := stateBuckets{items: make(map[types.State][]*types.Item)}
	for _, it := range items {
		if _, ok := b.items[it.State]; !ok {
			b.order = append(b.order, it.State)
		}
		b.items[it.State] = append(b.items[it.State], it)
	}
	return b
}

// processBucket drains cancellations, invokes the bound worker on the
// remainder, and advances the whole bucket to FAILED if the worker
// panics or returns an error, without ever propagating a panic out of
// the loop (spec
// §4.4 step 3, §7 "Item-level work failure").
func (c *Component) processBucket(ctx context.Context, qb *queueBinding, state types.State, bucket []*types.Item) {
	canceled, remaining := c.drainCanceled(bucket)
	if len(canceled) > 0 {
		metrics.ItemsCanceledTotal.WithLabelValues(c.Config.UID).Add(float64(len(canceled)))
		if err := c.advanceInternal(ctx, canceled, types.StateCanceled, true, true); err != nil {
			c.logger.Error().Err(err).Msg("component: advance canceled bucket")
		}
	}
	if len(remaining) == 0 {
		return
	}

	c.regMu.Lock()
	binding, ok := c.stateWork[state]
	c.regMu.Unlock()
	if !ok {
		c.logger.Error().Str("state", string(state)).Msg("component: no worker registered for state, dropping bucket")
		return
	}

	timer := metrics.NewTimer()
	c.logger.Debug().Str("queue", qb.name).Str("state", string(state)).Int("count", len(remaining)).Msg("component: work_start")

	err := c.invokeWorker(binding.worker, remaining)

	timer.ObserveDurationVec(metrics.WorkDuration, c.Config.UID, string(state))
	c.logger.Debug().Str("state", string(state)).Msg("component: work_done")

	if err != nil {
		metrics.ItemsFailedTotal.WithLabelValues(c.Config.UID).Add(float64(len(remaining)))
		if advErr := c.advanceInternal(ctx, remaining, types.StateFailed, true, false); advErr != nil {
			c.logger.Error().Err(advErr).Msg("component: advance failed bucket")
		}
		c.logger.Error().Err(err).Str("state", string(state)).Msg("component: worker failed, bucket advanced to FAILED")
	}
}

// invokeWorker runs worker under the callback lock and turns a panic
// into an error so the caller can treat "worker raised" and "worker
// returned an error" identically (spec §4.4 step 3e treats both as
// item-level work failure).
func (c *Component) invokeWorker(worker StateWorker, items []*types.Item) (err error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = &workerPanicError{value: r}
		}
	}()
	return worker(c, items)
}

type workerPanicError struct{ value interface{} }

func (e *workerPanicError) Error() string {
	return "component: worker panicked: " + formatPanic(e.value)
}

func formatPanic(v interface{}) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(v)
}
