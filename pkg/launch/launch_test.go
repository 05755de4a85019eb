package launch

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/pilot/pkg/types"
	"github.com/stretchr/testify/require"

	_ "github.com/cuemby/pilot/pkg/stages" // registers "scheduler", "stager"
)

func testBridges(t *testing.T, queues ...string) map[string]types.BridgeAddress {
	m := map[string]types.BridgeAddress{
		"log":     {AddrIn: "mem://log-" + t.Name(), AddrOut: "mem://log-" + t.Name()},
		"state":   {AddrIn: "mem://state-" + t.Name(), AddrOut: "mem://state-" + t.Name()},
		"control": {AddrIn: "mem://control-" + t.Name(), AddrOut: "mem://control-" + t.Name()},
	}
	for _, q := range queues {
		m[q] = types.BridgeAddress{AddrIn: "mem://" + q + "-" + t.Name(), AddrOut: "mem://" + q + "-" + t.Name()}
	}
	return m
}

func TestSuppressed_StartsAndStops(t *testing.T) {
	cfg := types.ComponentConfig{
		UID:               "sched-" + t.Name(),
		Owner:             "owner-" + t.Name(),
		Bridges:           testBridges(t, "scheduling"),
		HeartbeatInterval: 60,
		HeartbeatTimeout:  60,
	}

	h, err := Suppressed(context.Background(), "scheduler", cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- h.Wait() }()

	require.NoError(t, h.Stop())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for suppressed component to stop")
	}
}

func TestSuppressed_UnknownKind(t *testing.T) {
	_, err := Suppressed(context.Background(), "no-such-kind", types.ComponentConfig{})
	require.Error(t, err)
}

func TestProcess_MissingBinaryReturnsError(t *testing.T) {
	_, err := Process(context.Background(), "/no/such/binary-pilot-agent", "scheduler", types.ComponentConfig{UID: "x"})
	require.Error(t, err)
}

func TestEncodeDecodeConfig_RoundTrips(t *testing.T) {
	cfg := types.ComponentConfig{
		UID:               "c1",
		Owner:             "owner1",
		Heart:             "owner1",
		HeartbeatInterval: 5,
		HeartbeatTimeout:  15,
		Bridges: map[string]types.BridgeAddress{
			"control": {AddrIn: "mem://control", AddrOut: "mem://control"},
		},
	}
	encoded, err := EncodeConfig(cfg)
	require.NoError(t, err)
	decoded, err := DecodeConfig(encoded)
	require.NoError(t, err)
	require.Equal(t, cfg, decoded)
}
