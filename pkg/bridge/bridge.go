package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/pilot/pkg/types"
)

// Queue is a point-to-point channel: every pushed payload is delivered to
// exactly one Pop call, never broadcast. Multiple concurrent Pop callers
// on the same Queue load-balance the backlog between them.
type Queue interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context) ([]byte, error)
	Close() error
}

// PubSub is a topic fan-out channel: every Publish is delivered to every
// Subscription active at publish time, and to no subscription registered
// afterward.
type PubSub interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe() *Subscription
	Close() error
}

// Subscription is a live registration on a PubSub. C delivers payloads
// until Unsubscribe is called or the PubSub is closed, at which point C
// is closed.
type Subscription struct {
	C      <-chan []byte
	cancel func()
}

// Unsubscribe deregisters the subscription and closes C.
func (s *Subscription) Unsubscribe() {
	s.cancel()
}

// NewQueue resolves a types.BridgeAddress's AddrIn/AddrOut pair to a
// Queue implementation. "mem://<name>" addresses resolve to an
// in-process registry entry shared by every caller with the same name;
// "ws://" dials a plain wire Server, "wss://" dials one over TLS using
// whatever *tls.Config SetTLSConfig last installed (spec.md §6, bridge
// addresses are opaque transport endpoints — the scheme is the only
// thing this package interprets).
func NewQueue(addr types.BridgeAddress) (Queue, error) {
	scheme, name, err := parseAddr(addr.AddrIn)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case schemeMem:
		return localQueues.get(name), nil
	case schemeWS, schemeWSS:
		return newWireQueue(addr)
	default:
		return nil, fmt.Errorf("bridge: unsupported queue scheme %q", scheme)
	}
}

// NewPubSub resolves a types.BridgeAddress to a PubSub implementation,
// following the same scheme dispatch as NewQueue.
func NewPubSub(addr types.BridgeAddress) (PubSub, error) {
	scheme, name, err := parseAddr(addr.AddrIn)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case schemeMem:
		return localPubSubs.get(name), nil
	case schemeWS, schemeWSS:
		return newWirePubSub(addr)
	default:
		return nil, fmt.Errorf("bridge: unsupported pubsub scheme %q", scheme)
	}
}

const (
	schemeMem = "mem"
	schemeWS  = "ws"
	schemeWSS = "wss"
)

func parseAddr(addr string) (scheme, rest string, err error) {
	parts := strings.SplitN(addr, "://", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("bridge: malformed address %q", addr)
	}
	return parts[0], parts[1], nil
}
