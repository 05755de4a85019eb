package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cuemby/pilot/pkg/bridge"
	"github.com/cuemby/pilot/pkg/types"
	"github.com/stretchr/testify/require"

	_ "github.com/cuemby/pilot/pkg/stages" // registers "scheduler", "stager"
)

func testBridgeSet(t *testing.T, names ...string) map[string]types.BridgeAddress {
	m := map[string]types.BridgeAddress{
		"log":     {AddrIn: "mem://log-" + t.Name(), AddrOut: "mem://log-" + t.Name()},
		"state":   {AddrIn: "mem://state-" + t.Name(), AddrOut: "mem://state-" + t.Name()},
		"control": {AddrIn: "mem://control-" + t.Name(), AddrOut: "mem://control-" + t.Name()},
	}
	for _, n := range names {
		m[n] = types.BridgeAddress{AddrIn: "mem://" + n + "-" + t.Name(), AddrOut: "mem://" + n + "-" + t.Name()}
	}
	return m
}

func TestParseConfig_RecognisesKnownKeysAndPassesThroughExtra(t *testing.T) {
	doc := []byte(`
uid: sess-1
mongodb_url: mongodb://localhost/pilot
bridges:
  log:
    addr_in: mem://log
    addr_out: mem://log
components:
  - uid: sched-1
    kind: scheduler
    queues: [scheduling, scheduled]
unknown_top_level: hello
`)
	cfg, err := ParseConfig(doc)
	require.NoError(t, err)
	require.Equal(t, "sess-1", cfg.UID)
	require.Equal(t, "mongodb://localhost/pilot", cfg.MongoDBURL)
	require.Len(t, cfg.Components, 1)
	require.Equal(t, "scheduler", cfg.Components[0].Kind)
	require.Equal(t, []string{"scheduling", "scheduled"}, cfg.Components[0].Queues)
	require.Equal(t, "hello", cfg.Extra["unknown_top_level"])
}

func TestSession_StartRunsSchedulerEndToEnd(t *testing.T) {
	cfg := &Config{
		UID:     "sess-" + t.Name(),
		Bridges: testBridgeSet(t, "scheduling", "scheduled"),
		Components: []ComponentSpec{
			{
				UID:               "sched-" + t.Name(),
				Kind:              "scheduler",
				HeartbeatInterval: 60,
				HeartbeatTimeout:  60,
				Queues:            []string{"scheduling", "scheduled"},
			},
		},
	}

	s := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	require.Len(t, s.Components(), 1)
	require.Equal(t, "scheduler", s.Components()[0].Kind)

	in, err := bridge.NewQueue(cfg.Bridges["scheduling"])
	require.NoError(t, err)
	payload, err := json.Marshal([]*types.Item{{UID: "u1", Type: types.ItemUnit, State: types.StateScheduling}})
	require.NoError(t, err)
	require.NoError(t, in.Push(context.Background(), payload))

	out, err := bridge.NewQueue(cfg.Bridges["scheduled"])
	require.NoError(t, err)
	popCtx, popCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer popCancel()
	outPayload, err := out.Pop(popCtx)
	require.NoError(t, err)

	var items []*types.Item
	require.NoError(t, json.Unmarshal(outPayload, &items))
	require.Len(t, items, 1)
	require.Equal(t, types.StateScheduled, items[0].State)
}

func TestSession_StartFailsOnMissingBridge(t *testing.T) {
	cfg := &Config{
		UID: "sess-" + t.Name(),
		Bridges: map[string]types.BridgeAddress{
			"log": {AddrIn: "mem://log-" + t.Name(), AddrOut: "mem://log-" + t.Name()},
		},
	}
	s := New(cfg)
	err := s.Start(context.Background())
	require.Error(t, err)
}

func TestSession_StartFailsOnUnknownComponentKind(t *testing.T) {
	cfg := &Config{
		UID:     "sess-" + t.Name(),
		Bridges: testBridgeSet(t),
		Components: []ComponentSpec{
			{UID: "x-" + t.Name(), Kind: "no-such-kind"},
		},
	}
	s := New(cfg)
	err := s.Start(context.Background())
	require.Error(t, err)
}
