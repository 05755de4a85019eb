package bridge

import (
	"context"
	"sync"

	"github.com/cuemby/pilot/pkg/metrics"
)

// localQueueRegistry is the process-wide table of named in-process
// queues. Every "mem://name" address within one process resolves to the
// same *LocalQueue, so forked (goroutine) components share it without
// any serialization.
type localQueueRegistry struct {
	mu   sync.Mutex
	byName map[string]*LocalQueue
}

var localQueues = &localQueueRegistry{byName: make(map[string]*LocalQueue)}

func (r *localQueueRegistry) get(name string) *LocalQueue {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.byName[name]
	if !ok {
		q = newLocalQueue(name)
		r.byName[name] = q
	}
	return q
}

// LocalQueue is a buffered channel shared by every holder of the same
// "mem://name" address. Backlog depth is reported to
// metrics.QueueDepth on every Push.
type LocalQueue struct {
	name string
	ch   chan []byte
}

func newLocalQueue(name string) *LocalQueue {
	return &LocalQueue{name: name, ch: make(chan []byte, 1024)}
}

func (q *LocalQueue) Push(ctx context.Context, payload []byte) error {
	select {
	case q.ch <- payload:
		metrics.QueueDepth.WithLabelValues(q.name).Set(float64(len(q.ch)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *LocalQueue) Pop(ctx context.Context) ([]byte, error) {
	select {
	case payload := <-q.ch:
		metrics.QueueDepth.WithLabelValues(q.name).Set(float64(len(q.ch)))
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close is a no-op: a named in-process queue outlives any single holder,
// since other components may still reference it by name.
func (q *LocalQueue) Close() error { return nil }

// localPubSubRegistry mirrors localQueueRegistry for named PubSub
// channels.
type localPubSubRegistry struct {
	mu   sync.Mutex
	byName map[string]*LocalPubSub
}

var localPubSubs = &localPubSubRegistry{byName: make(map[string]*LocalPubSub)}

func (r *localPubSubRegistry) get(name string) *LocalPubSub {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byName[name]
	if !ok {
		p = newLocalPubSub(name)
		r.byName[name] = p
	}
	return p
}

// LocalPubSub fans a publish out to every currently active Subscription.
// Its subscriber bookkeeping and drop-on-full delivery are grounded on
// the teacher's events.Broker: a map of subscriber channels guarded by a
// mutex, with publishes broadcast by a best-effort non-blocking send per
// subscriber.
type LocalPubSub struct {
	name string
	mu   sync.RWMutex
	subs map[chan []byte]struct{}
}

func newLocalPubSub(name string) *LocalPubSub {
	return &LocalPubSub{name: name, subs: make(map[chan []byte]struct{})}
}

func (p *LocalPubSub) Publish(ctx context.Context, payload []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.subs) == 0 {
		metrics.SubscriberFirstMissTotal.WithLabelValues(p.name).Inc()
	}

	for sub := range p.subs {
		select {
		case sub <- payload:
		default:
			// subscriber buffer full, skip
		}
	}
	return nil
}

func (p *LocalPubSub) Subscribe() *Subscription {
	ch := make(chan []byte, 64)

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if _, ok := p.subs[ch]; ok {
			delete(p.subs, ch)
			close(ch)
		}
		p.mu.Unlock()
	}

	return &Subscription{C: ch, cancel: cancel}
}

// Close is a no-op for the same reason as LocalQueue.Close: the named
// channel is process-wide, not owned by any one subscriber.
func (p *LocalPubSub) Close() error { return nil }
