package stages

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cuemby/pilot/pkg/bridge"
	"github.com/cuemby/pilot/pkg/registry"
	"github.com/cuemby/pilot/pkg/types"
	"github.com/stretchr/testify/require"
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

func testConfig(t *testing.T, queues ...string) types.ComponentConfig {
	return types.ComponentConfig{
		UID:               "c-" + t.Name(),
		Owner:             "owner-" + t.Name(),
		Bridges:           testBridges(t, queues...),
		HeartbeatInterval: 60,
		HeartbeatTimeout:  60,
	}
}

func TestScheduler_AdvancesSchedulingToScheduled(t *testing.T) {
	cfg := testConfig(t, "scheduling", "scheduled")

	factory, err := registry.Lookup("scheduler")
	require.NoError(t, err)
	c, err := factory(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

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
	require.Equal(t, "u1", items[0].UID)
	require.Equal(t, types.StateScheduled, items[0].State)
}

func TestStager_AdvancesStagingInputToStagedInput(t *testing.T) {
	cfg := testConfig(t, "staging", "staged_input")

	factory, err := registry.Lookup("stager")
	require.NoError(t, err)
	c, err := factory(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	in, err := bridge.NewQueue(cfg.Bridges["staging"])
	require.NoError(t, err)
	payload, err := json.Marshal([]*types.Item{{UID: "u1", Type: types.ItemUnit, State: types.StateStagingInput}})
	require.NoError(t, err)
	require.NoError(t, in.Push(context.Background(), payload))

	out, err := bridge.NewQueue(cfg.Bridges["staged_input"])
	require.NoError(t, err)
	popCtx, popCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer popCancel()
	outPayload, err := out.Pop(popCtx)
	require.NoError(t, err)

	var items []*types.Item
	require.NoError(t, json.Unmarshal(outPayload, &items))
	require.Len(t, items, 1)
	require.Equal(t, types.StateStagedInput, items[0].State)
}

func TestStager_AdvancesStagingOutputToStagedOutput(t *testing.T) {
	cfg := testConfig(t, "staging", "staged_output")

	factory, err := registry.Lookup("stager")
	require.NoError(t, err)
	c, err := factory(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	in, err := bridge.NewQueue(cfg.Bridges["staging"])
	require.NoError(t, err)
	payload, err := json.Marshal([]*types.Item{{UID: "u2", Type: types.ItemUnit, State: types.StateStagingOutput}})
	require.NoError(t, err)
	require.NoError(t, in.Push(context.Background(), payload))

	out, err := bridge.NewQueue(cfg.Bridges["staged_output"])
	require.NoError(t, err)
	popCtx, popCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer popCancel()
	outPayload, err := out.Pop(popCtx)
	require.NoError(t, err)

	var items []*types.Item
	require.NoError(t, json.Unmarshal(outPayload, &items))
	require.Len(t, items, 1)
	require.Equal(t, types.StateStagedOutput, items[0].State)
}
