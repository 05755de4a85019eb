package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/pilot/pkg/log"
	"github.com/cuemby/pilot/pkg/types"
	"github.com/gorilla/websocket"
)

// wireFrame is the JSON envelope exchanged over a wire bridge's
// websocket connections. Payload round-trips as base64 the way
// encoding/json always handles a []byte field.
type wireFrame struct {
	Payload []byte `json:"payload"`
}

// wireQueue is the client side of a wire Queue bridge: Push dials AddrIn
// once and keeps the connection open; Pop dials AddrOut once and reads
// frames into an internal channel fed by a background read loop, the
// same shape as the teacher's WSClient readLoop (pkg/homeassistant in
// the pack's nugget-thane-ai-agent repo).
type wireQueue struct {
	addrIn, addrOut string

	inMu   sync.Mutex
	inConn *websocket.Conn

	outOnce sync.Once
	outErr  error
	popCh   chan []byte
}

func newWireQueue(addr types.BridgeAddress) (*wireQueue, error) {
	return &wireQueue{
		addrIn:  addr.AddrIn,
		addrOut: addr.AddrOut,
		popCh:   make(chan []byte, 64),
	}, nil
}

func (q *wireQueue) dialIn() (*websocket.Conn, error) {
	q.inMu.Lock()
	defer q.inMu.Unlock()
	if q.inConn != nil {
		return q.inConn, nil
	}
	conn, _, err := dialer(q.addrIn).Dial(q.addrIn, nil)
	if err != nil {
		return nil, fmt.Errorf("bridge: dial queue addr_in %q: %w", q.addrIn, err)
	}
	q.inConn = conn
	return conn, nil
}

// dialer returns websocket.DefaultDialer for a plain ws:// address, or a
// dialer carrying the session's installed TLS config for wss://.
func dialer(addr string) *websocket.Dialer {
	if !isSecureAddr(addr) {
		return websocket.DefaultDialer
	}
	return &websocket.Dialer{TLSClientConfig: getTLSConfig()}
}

func (q *wireQueue) Push(ctx context.Context, payload []byte) error {
	conn, err := q.dialIn()
	if err != nil {
		return err
	}
	q.inMu.Lock()
	defer q.inMu.Unlock()
	return conn.WriteJSON(wireFrame{Payload: payload})
}

func (q *wireQueue) ensureOut() error {
	q.outOnce.Do(func() {
		conn, _, err := dialer(q.addrOut).Dial(q.addrOut, nil)
		if err != nil {
			q.outErr = fmt.Errorf("bridge: dial queue addr_out %q: %w", q.addrOut, err)
			return
		}
		go func() {
			defer close(q.popCh)
			for {
				var frame wireFrame
				if err := conn.ReadJSON(&frame); err != nil {
					return
				}
				q.popCh <- frame.Payload
			}
		}()
	})
	return q.outErr
}

func (q *wireQueue) Pop(ctx context.Context) ([]byte, error) {
	if err := q.ensureOut(); err != nil {
		return nil, err
	}
	select {
	case payload, ok := <-q.popCh:
		if !ok {
			return nil, fmt.Errorf("bridge: queue addr_out connection closed")
		}
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *wireQueue) Close() error {
	q.inMu.Lock()
	if q.inConn != nil {
		_ = q.inConn.Close()
	}
	q.inMu.Unlock()
	return nil
}

// wirePubSub is the client side of a wire PubSub bridge.
type wirePubSub struct {
	addrIn, addrOut string

	inMu   sync.Mutex
	inConn *websocket.Conn
}

func newWirePubSub(addr types.BridgeAddress) (*wirePubSub, error) {
	return &wirePubSub{addrIn: addr.AddrIn, addrOut: addr.AddrOut}, nil
}

func (p *wirePubSub) dialIn() (*websocket.Conn, error) {
	p.inMu.Lock()
	defer p.inMu.Unlock()
	if p.inConn != nil {
		return p.inConn, nil
	}
	conn, _, err := dialer(p.addrIn).Dial(p.addrIn, nil)
	if err != nil {
		return nil, fmt.Errorf("bridge: dial pubsub addr_in %q: %w", p.addrIn, err)
	}
	p.inConn = conn
	return conn, nil
}

func (p *wirePubSub) Publish(ctx context.Context, payload []byte) error {
	conn, err := p.dialIn()
	if err != nil {
		return err
	}
	p.inMu.Lock()
	defer p.inMu.Unlock()
	return conn.WriteJSON(wireFrame{Payload: payload})
}

// Subscribe dials AddrOut fresh for every subscription: each dial is a
// distinct subscriber from the server's point of view, matching the
// semantics of LocalPubSub.Subscribe.
func (p *wirePubSub) Subscribe() *Subscription {
	ch := make(chan []byte, 64)

	conn, _, err := dialer(p.addrOut).Dial(p.addrOut, nil)
	if err != nil {
		log.Errorf("bridge: dial pubsub addr_out failed", err)
		close(ch)
		return &Subscription{C: ch, cancel: func() {}}
	}

	go func() {
		defer close(ch)
		for {
			var frame wireFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			select {
			case ch <- frame.Payload:
			default:
			}
		}
	}()

	return &Subscription{C: ch, cancel: func() { _ = conn.Close() }}
}

func (p *wirePubSub) Close() error {
	p.inMu.Lock()
	if p.inConn != nil {
		_ = p.inConn.Close()
	}
	p.inMu.Unlock()
	return nil
}
