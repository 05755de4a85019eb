package component

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/pilot/pkg/bridge"
	"github.com/cuemby/pilot/pkg/health"
	"github.com/cuemby/pilot/pkg/types"
	"github.com/rs/zerolog"
)

// StateWorker is the callback bound to one accepted state on one input
// queue. It receives the whole bucket as a single bulk argument (spec
// §4.4 step 3c) and is free to mutate items and call Advance itself; the
// event loop never auto-advances a bucket on success, only when the
// worker panics or returns an error (to FAILED).
type StateWorker func(c *Component, items []*types.Item) error

// SubscriberFunc is a pub/sub callback. data is whatever was passed to
// RegisterSubscriber, echoed back unchanged on every invocation.
type SubscriberFunc func(channel string, payload []byte, data interface{})

// TimedFunc is an idler callback, fired at Interval granularity (spec
// §4.6 register_timed_cb); zero Interval means "every poll".
type TimedFunc func(data interface{})

type inputBinding struct {
	queueName string
	worker    StateWorker
}

type queueBinding struct {
	name   string
	queue  bridge.Queue
	states map[types.State]bool // accepted-states set for this queue
}

type outputBinding struct {
	queueName string
	queue     bridge.Queue
	isNone    bool // explicitly registered with no queue: drop-on-arrival
}

type subscription struct {
	channel string
	stop    chan struct{}
	done    chan struct{}
}

type idler struct {
	name string
	stop chan struct{}
	done chan struct{}
}

// Component is the framework's single building block (spec §2, §4.3-4.6):
// an isolated, message-driven executor that hosts input/output queue
// bindings, pub/sub channels, and timed callbacks, all serialized behind
// one callback lock.
type Component struct {
	Config types.ComponentConfig
	Kind   string // display tag only ("scheduler", "stager", "agent", "worker", ...)

	// AllowStateAssignment is false for the Worker specialization (spec
	// §2 "A Worker is a Component variant that is forbidden from
	// changing item state"); Advance panics if a caller supplies a
	// non-nil state while this is false.
	AllowStateAssignment bool

	logger  zerolog.Logger
	lock    *callbackLock
	cancelMu sync.Mutex
	cancel  map[string]bool

	queuesMu sync.Mutex
	queues   map[string]bridge.Queue

	pubsubMu sync.Mutex
	pubsubs  map[string]bridge.PubSub

	regMu     sync.Mutex
	inputs    map[string]*queueBinding    // by queue name
	stateWork map[types.State]inputBinding // by state
	outputs   map[types.State]outputBinding
	subs      map[string]*subscription
	idlers    map[string]*idler

	heart    *health.Status
	heartCfg health.Config
	threadErr chan error

	// OnAlive, if set before Start, is invoked whenever this component
	// observes an "alive" control message, including its own.
	OnAlive AliveHook

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup

	loopCancel context.CancelFunc
}

// New constructs a Component from its configuration. Per spec §4.3
// step 1 ("Construct: record configuration, compute uid, do not acquire
// any shared resources"), New allocates no locks, starts no goroutines,
// and opens no bridge connections — all of that happens in
// initializeCommon once Start decides whether this runs in the parent
// or a spawned child.
func New(cfg types.ComponentConfig, kind string) *Component {
	return &Component{
		Config:               cfg,
		Kind:                 kind,
		AllowStateAssignment: true,
		cancel:               make(map[string]bool),
		queues:               make(map[string]bridge.Queue),
		pubsubs:              make(map[string]bridge.PubSub),
		inputs:               make(map[string]*queueBinding),
		stateWork:            make(map[types.State]inputBinding),
		outputs:              make(map[types.State]outputBinding),
		subs:                 make(map[string]*subscription),
		idlers:               make(map[string]*idler),
		stopped:              make(chan struct{}),
	}
}

func (c *Component) getQueue(name string) (bridge.Queue, error) {
	c.queuesMu.Lock()
	defer c.queuesMu.Unlock()
	if q, ok := c.queues[name]; ok {
		return q, nil
	}
	addr, ok := c.Config.Bridges[name]
	if !ok {
		return nil, fmt.Errorf("component: no bridge configured for queue %q", name)
	}
	q, err := bridge.NewQueue(addr)
	if err != nil {
		return nil, fmt.Errorf("component: resolve queue %q: %w", name, err)
	}
	c.queues[name] = q
	return q, nil
}

func (c *Component) getPubSub(channel string) (bridge.PubSub, error) {
	c.pubsubMu.Lock()
	defer c.pubsubMu.Unlock()
	if p, ok := c.pubsubs[channel]; ok {
		return p, nil
	}
	addr, ok := c.Config.Bridges[channel]
	if !ok {
		return nil, fmt.Errorf("component: no bridge configured for channel %q", channel)
	}
	p, err := bridge.NewPubSub(addr)
	if err != nil {
		return nil, fmt.Errorf("component: resolve channel %q: %w", channel, err)
	}
	c.pubsubs[channel] = p
	return p, nil
}

// RegisterInput binds worker to every state in states on queueName (spec
// §4.6). Re-registering a state already bound logs a replacement
// warning rather than erroring, matching the idempotent-registration
// contract.
func (c *Component) RegisterInput(states []types.State, queueName string, worker StateWorker) error {
	q, err := c.getQueue(queueName)
	if err != nil {
		return err
	}

	c.regMu.Lock()
	defer c.regMu.Unlock()

	qb, ok := c.inputs[queueName]
	if !ok {
		qb = &queueBinding{name: queueName, queue: q, states: make(map[types.State]bool)}
		c.inputs[queueName] = qb
	}
	for _, s := range states {
		if _, exists := c.stateWork[s]; exists {
			c.logger.Warn().Str("state", string(s)).Msg("component: replacing existing input worker for state")
		}
		qb.states[s] = true
		c.stateWork[s] = inputBinding{queueName: queueName, worker: worker}
	}
	return nil
}

// UnregisterInput removes the worker bound to state, if any. Idempotent.
func (c *Component) UnregisterInput(state types.State) {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	binding, ok := c.stateWork[state]
	if !ok {
		return
	}
	delete(c.stateWork, state)
	if qb, ok := c.inputs[binding.queueName]; ok {
		delete(qb.states, state)
	}
}

// RegisterOutput declares the destination queue for items whose
// post-advance state is state. An empty queueName marks state as
// drop-on-arrival — typically because it is terminal at this stage
// (spec §4.6).
func (c *Component) RegisterOutput(state types.State, queueName string) error {
	var q bridge.Queue
	if queueName != "" {
		var err error
		q, err = c.getQueue(queueName)
		if err != nil {
			return err
		}
	}

	c.regMu.Lock()
	defer c.regMu.Unlock()

	if _, exists := c.outputs[state]; exists {
		c.logger.Warn().Str("state", string(state)).Msg("component: replacing existing output registration for state")
	}
	if queueName == "" {
		c.outputs[state] = outputBinding{isNone: true}
		return nil
	}
	c.outputs[state] = outputBinding{queueName: queueName, queue: q}
	return nil
}

// UnregisterOutput removes the output registration for state, if any.
func (c *Component) UnregisterOutput(state types.State) {
	c.regMu.Lock()
	defer c.regMu.Unlock()
	delete(c.outputs, state)
}

// RegisterPublisher resolves and caches the PubSub for channel so
// Publish(channel, ...) can be used later. Idempotent.
func (c *Component) RegisterPublisher(channel string) error {
	_, err := c.getPubSub(channel)
	return err
}

// RegisterSubscriber starts a dedicated goroutine subscribed to channel;
// cb fires, under the callback lock, for every message received (spec
// §4.6). Re-registering the same channel replaces the previous
// subscription.
func (c *Component) RegisterSubscriber(channel string, cb SubscriberFunc, data interface{}) error {
	p, err := c.getPubSub(channel)
	if err != nil {
		return err
	}

	c.regMu.Lock()
	if existing, ok := c.subs[channel]; ok {
		c.regMu.Unlock()
		c.stopSubscription(existing)
		c.regMu.Lock()
	}

	sub := &subscription{channel: channel, stop: make(chan struct{}), done: make(chan struct{})}
	c.subs[channel] = sub
	c.regMu.Unlock()

	c.wg.Add(1)
	go c.runSubscriber(p, sub, cb, data)
	return nil
}

func (c *Component) runSubscriber(p bridge.PubSub, sub *subscription, cb SubscriberFunc, data interface{}) {
	defer c.wg.Done()
	defer close(sub.done)
	defer func() { c.reportThreadDeath(recover()) }()

	s := p.Subscribe()
	defer s.Unsubscribe()

	for {
		select {
		case <-sub.stop:
			return
		case payload, ok := <-s.C:
			if !ok {
				return
			}
			if r := c.lockedCall(func() { cb(sub.channel, payload, data) }); r != nil {
				c.reportThreadDeath(r)
				return
			}
		}
	}
}

// lockedCall runs fn under the callback lock, recovering any panic so
// the lock is always released even if fn does not return normally. It
// returns the recovered value, or nil if fn completed cleanly.
func (c *Component) lockedCall(fn func()) (recovered interface{}) {
	c.lock.Lock()
	defer c.lock.Unlock()
	defer func() { recovered = recover() }()
	fn()
	return
}

// reportThreadDeath records a panic recovered from a subscriber or
// idler callback so the thread-watcher idler can pick it up on its next
// tick and trigger a fatal shutdown (spec §7, "Thread death ... fatal:
// raise from the watcher idler, finalise and exit").
func (c *Component) reportThreadDeath(recovered interface{}) {
	if recovered == nil {
		return
	}
	err := fmt.Errorf("component: callback thread panicked: %v", recovered)
	select {
	case c.threadErr <- err:
	default:
	}
}

func (c *Component) stopSubscription(sub *subscription) {
	close(sub.stop)
	<-sub.done
}

// RegisterTimedCB starts a dedicated goroutine that fires cb every time
// interval has elapsed since its previous firing (spec §4.6); interval
// of zero fires on every 100ms poll tick. name identifies the idler for
// replacement/unregistration.
func (c *Component) RegisterTimedCB(name string, cb TimedFunc, data interface{}, interval time.Duration) {
	c.regMu.Lock()
	if existing, ok := c.idlers[name]; ok {
		c.regMu.Unlock()
		c.stopIdler(existing)
		c.regMu.Lock()
	}
	idl := &idler{name: name, stop: make(chan struct{}), done: make(chan struct{})}
	c.idlers[name] = idl
	c.regMu.Unlock()

	c.wg.Add(1)
	go c.runIdler(idl, cb, data, interval)
}

const idlerPollInterval = 100 * time.Millisecond

func (c *Component) runIdler(idl *idler, cb TimedFunc, data interface{}, interval time.Duration) {
	defer c.wg.Done()
	defer close(idl.done)

	ticker := time.NewTicker(idlerPollInterval)
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-idl.stop:
			return
		case now := <-ticker.C:
			if interval > 0 && now.Sub(last) < interval {
				continue
			}
			last = now
			if r := c.lockedCall(func() { cb(data) }); r != nil {
				c.reportThreadDeath(r)
				return
			}
		}
	}
}

func (c *Component) stopIdler(idl *idler) {
	close(idl.stop)
	<-idl.done
}

// UnregisterSubscriber stops and removes channel's subscription, if any.
func (c *Component) UnregisterSubscriber(channel string) {
	c.regMu.Lock()
	sub, ok := c.subs[channel]
	if ok {
		delete(c.subs, channel)
	}
	c.regMu.Unlock()
	if ok {
		c.stopSubscription(sub)
	}
}

// UnregisterTimedCB stops and removes the named idler, if any.
func (c *Component) UnregisterTimedCB(name string) {
	c.regMu.Lock()
	idl, ok := c.idlers[name]
	if ok {
		delete(c.idlers, name)
	}
	c.regMu.Unlock()
	if ok {
		c.stopIdler(idl)
	}
}

// Publish sends payload on channel's pub/sub directly. Most callers use
// Advance for the state channel and the lifecycle.go helpers for control
// messages; Publish is exposed for custom channels a stage registers.
func (c *Component) Publish(ctx context.Context, channel string, payload []byte) error {
	p, err := c.getPubSub(channel)
	if err != nil {
		return err
	}
	return p.Publish(ctx, payload)
}

// CancelSet returns a snapshot copy of the current set of uids marked
// for cancellation. Exposed for tests; the event loop drains it directly.
func (c *Component) CancelSet() map[string]bool {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()
	out := make(map[string]bool, len(c.cancel))
	for k := range c.cancel {
		out[k] = true
	}
	return out
}

// markCanceled adds uids to the cancel set. Called by the control
// subscriber on a cancel_units message (spec §5 "Cancellation").
func (c *Component) markCanceled(uids []string) {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()
	for _, u := range uids {
		c.cancel[u] = true
	}
}

// drainCanceled removes and returns the items in bucket whose uid is in
// the cancel set, along with the remaining items. Matches under the
// cancel-set mutex, as required by the cancellation contract.
func (c *Component) drainCanceled(bucket []*types.Item) (canceled, remaining []*types.Item) {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()
	for _, it := range bucket {
		if c.cancel[it.UID] {
			canceled = append(canceled, it)
			delete(c.cancel, it.UID)
		} else {
			remaining = append(remaining, it)
		}
	}
	return canceled, remaining
}
