package bridge

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/cuemby/pilot/pkg/types"
	"github.com/stretchr/testify/require"
)

// freeAddr reserves an ephemeral TCP port and returns a ws://host:port/path
// address for it. The listener is closed immediately; the caller's server
// is expected to rebind it right away, which is fine for tests.
func freeAddr(t *testing.T, path string) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return fmt.Sprintf("ws://%s%s", addr, path)
}

func TestWireQueue_PushPopRoundTrips(t *testing.T) {
	addr := types.BridgeAddress{
		AddrIn:  freeAddr(t, "/in"),
		AddrOut: freeAddr(t, "/out"),
	}

	srv := NewQueueServer(t.Name(), addr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.ListenAndServe(ctx) }()
	waitForServers(t, addr)

	q, err := newWireQueue(addr)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Push(context.Background(), []byte("hello")))

	popCtx, popCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer popCancel()
	payload, err := q.Pop(popCtx)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), payload)
}

func TestWirePubSub_PublishReachesSubscriber(t *testing.T) {
	addr := types.BridgeAddress{
		AddrIn:  freeAddr(t, "/in"),
		AddrOut: freeAddr(t, "/out"),
	}

	srv := NewPubSubServer(t.Name(), addr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.ListenAndServe(ctx) }()
	waitForServers(t, addr)

	p, err := newWirePubSub(addr)
	require.NoError(t, err)
	defer p.Close()

	sub := p.Subscribe()
	defer sub.Unsubscribe()
	// give the subscriber's websocket handshake time to land on the server
	// before the publish, since wire PubSub only reaches active subscribers.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, p.Publish(context.Background(), []byte("world")))

	select {
	case payload := <-sub.C:
		require.Equal(t, []byte("world"), payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published payload")
	}
}

// waitForServers polls both listeners until they accept connections or the
// deadline passes.
func waitForServers(t *testing.T, addr types.BridgeAddress) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for _, raw := range []string{addr.AddrIn, addr.AddrOut} {
		host := wsHost(raw)
		for {
			conn, err := net.DialTimeout("tcp", host, 50*time.Millisecond)
			if err == nil {
				conn.Close()
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("server at %s never came up: %v", host, err)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func wsHost(addr string) string {
	// addr looks like ws://127.0.0.1:PORT/path
	rest := addr[len("ws://"):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i]
		}
	}
	return rest
}
