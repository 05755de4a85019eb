package bridge

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/cuemby/pilot/pkg/log"
	"github.com/cuemby/pilot/pkg/types"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// QueueServer exposes a LocalQueue over two websocket listeners: AddrIn
// accepts producer connections and Pushes every frame it reads; AddrOut
// accepts consumer connections and Pops a frame for every frame it
// writes. Whoever hosts a wire-backed queue bridge runs ListenAndServe;
// pkg/session only resolves client handles and does not start one.
type QueueServer struct {
	queue *LocalQueue
	addr  types.BridgeAddress
}

// NewQueueServer creates a wire-facing Queue server backed by a fresh
// LocalQueue; name is used only for metric labeling.
func NewQueueServer(name string, addr types.BridgeAddress) *QueueServer {
	return &QueueServer{queue: newLocalQueue(name), addr: addr}
}

// ListenAndServe blocks serving both listeners until ctx is canceled.
func (s *QueueServer) ListenAndServe(ctx context.Context) error {
	return serveBoth(ctx, s.addr, s.handleIn, s.handleOut)
}

func (s *QueueServer) handleIn(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("bridge: queue addr_in upgrade failed", err)
		return
	}
	defer conn.Close()

	for {
		var frame wireFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		_ = s.queue.Push(r.Context(), frame.Payload)
	}
}

func (s *QueueServer) handleOut(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("bridge: queue addr_out upgrade failed", err)
		return
	}
	defer conn.Close()

	for {
		payload, err := s.queue.Pop(r.Context())
		if err != nil {
			return
		}
		if err := conn.WriteJSON(wireFrame{Payload: payload}); err != nil {
			return
		}
	}
}

// PubSubServer exposes a LocalPubSub over two websocket listeners:
// AddrIn accepts publisher connections, AddrOut accepts subscriber
// connections, each held open for the lifetime of one Subscription.
type PubSubServer struct {
	pubsub *LocalPubSub
	addr   types.BridgeAddress
}

// NewPubSubServer creates a wire-facing PubSub server backed by a fresh
// LocalPubSub; name is used only for metric labeling.
func NewPubSubServer(name string, addr types.BridgeAddress) *PubSubServer {
	return &PubSubServer{pubsub: newLocalPubSub(name), addr: addr}
}

// ListenAndServe blocks serving both listeners until ctx is canceled.
func (s *PubSubServer) ListenAndServe(ctx context.Context) error {
	return serveBoth(ctx, s.addr, s.handleIn, s.handleOut)
}

func (s *PubSubServer) handleIn(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("bridge: pubsub addr_in upgrade failed", err)
		return
	}
	defer conn.Close()

	for {
		var frame wireFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		_ = s.pubsub.Publish(r.Context(), frame.Payload)
	}
}

func (s *PubSubServer) handleOut(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("bridge: pubsub addr_out upgrade failed", err)
		return
	}
	defer conn.Close()

	sub := s.pubsub.Subscribe()
	defer sub.Unsubscribe()

	for payload := range sub.C {
		if err := conn.WriteJSON(wireFrame{Payload: payload}); err != nil {
			return
		}
	}
}

// serveBoth runs the AddrIn and AddrOut listeners concurrently and
// blocks until both have returned, which normally only happens once ctx
// is canceled.
func serveBoth(ctx context.Context, addr types.BridgeAddress, handleIn, handleOut http.HandlerFunc) error {
	errCh := make(chan error, 2)
	go func() { errCh <- serveWS(ctx, addr.AddrIn, handleIn) }()
	go func() { errCh <- serveWS(ctx, addr.AddrOut, handleOut) }()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// serveWS starts a single-route HTTP server listening on addr's host:port
// and serving the websocket handler at addr's path, until ctx is
// canceled. A wss:// addr is served over TLS using whatever *tls.Config
// SetTLSConfig last installed (spec.md §6, bridge addresses are opaque
// transport endpoints interpreted only by their scheme).
func serveWS(ctx context.Context, addr string, handler http.HandlerFunc) error {
	u, err := url.Parse(addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc(u.Path, handler)
	srv := &http.Server{Addr: u.Host, Handler: mux}

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return fmt.Errorf("bridge: listen %q: %w", u.Host, err)
	}
	if isSecureAddr(addr) {
		cfg := getTLSConfig()
		if cfg == nil {
			ln.Close()
			return fmt.Errorf("bridge: wss address %q requires a TLS config installed via SetTLSConfig", addr)
		}
		ln = tls.NewListener(ln, cfg)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
