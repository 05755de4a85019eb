package component

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cuemby/pilot/pkg/bridge"
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

func subscribeState(t *testing.T, cfg types.ComponentConfig) <-chan stateMessage {
	p, err := bridge.NewPubSub(cfg.Bridges["state"])
	require.NoError(t, err)
	sub := p.Subscribe()
	out := make(chan stateMessage, 64)
	go func() {
		for payload := range sub.C {
			var msg stateMessage
			if err := json.Unmarshal(payload, &msg); err == nil {
				out <- msg
			}
		}
	}()
	return out
}

// S1. Single-hop happy path.
func TestS1_SingleHopHappyPath(t *testing.T) {
	cfg := testConfig(t, "q1")
	stateCh := subscribeState(t, cfg)

	c := New(cfg, "test")
	require.NoError(t, c.RegisterOutput(types.StateDone, ""))
	require.NoError(t, c.RegisterInput([]types.State{types.StateNew}, "q1", func(c *Component, items []*types.Item) error {
		done := types.StateDone
		return c.Advance(context.Background(), items, &done, true, true)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	q1, err := bridge.NewQueue(cfg.Bridges["q1"])
	require.NoError(t, err)
	payload, err := json.Marshal([]*types.Item{{UID: "u1", Type: types.ItemUnit, State: types.StateNew}})
	require.NoError(t, err)
	require.NoError(t, q1.Push(context.Background(), payload))

	select {
	case msg := <-stateCh:
		require.Equal(t, "update", msg.Cmd)
		require.Len(t, msg.Arg, 1)
		var it types.Item
		require.NoError(t, json.Unmarshal(msg.Arg[0], &it))
		require.Equal(t, "u1", it.UID)
		require.Equal(t, types.StateDone, it.State)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state update")
	}
}

// S2. Error containment: worker panics, bucket advances to FAILED, the
// component keeps processing afterward.
func TestS2_ErrorContainment(t *testing.T) {
	cfg := testConfig(t, "q1")
	stateCh := subscribeState(t, cfg)

	calls := 0
	c := New(cfg, "test")
	require.NoError(t, c.RegisterInput([]types.State{types.StateNew}, "q1", func(c *Component, items []*types.Item) error {
		calls++
		if calls == 1 {
			panic("boom")
		}
		done := types.StateDone
		return c.Advance(context.Background(), items, &done, true, true)
	}))
	require.NoError(t, c.RegisterOutput(types.StateDone, ""))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	q1, err := bridge.NewQueue(cfg.Bridges["q1"])
	require.NoError(t, err)

	push := func(uid string) {
		payload, err := json.Marshal([]*types.Item{{UID: uid, Type: types.ItemUnit, State: types.StateNew}})
		require.NoError(t, err)
		require.NoError(t, q1.Push(context.Background(), payload))
	}

	push("u1")
	msg := waitState(t, stateCh)
	var it1 types.Item
	require.NoError(t, json.Unmarshal(msg.Arg[0], &it1))
	require.Equal(t, types.StateFailed, it1.State)

	push("u2")
	msg2 := waitState(t, stateCh)
	var it2 types.Item
	require.NoError(t, json.Unmarshal(msg2.Arg[0], &it2))
	require.Equal(t, types.StateDone, it2.State)
}

func waitState(t *testing.T, ch <-chan stateMessage) stateMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state update")
		return stateMessage{}
	}
}

// S3. Cancellation mid-stream.
func TestS3_CancellationMidStream(t *testing.T) {
	cfg := testConfig(t, "q1")
	stateCh := subscribeState(t, cfg)

	var seen []string
	c := New(cfg, "test")
	require.NoError(t, c.RegisterInput([]types.State{types.StateNew}, "q1", func(c *Component, items []*types.Item) error {
		for _, it := range items {
			seen = append(seen, it.UID)
		}
		done := types.StateDone
		return c.Advance(context.Background(), items, &done, true, true)
	}))
	require.NoError(t, c.RegisterOutput(types.StateDone, ""))

	ctrl, err := bridge.NewPubSub(cfg.Bridges["control"])
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	cancelPayload, err := encodeControl(CmdCancelUnits, CancelUnitsArg{UIDs: UIDList{"u2"}})
	require.NoError(t, err)
	require.NoError(t, ctrl.Publish(context.Background(), cancelPayload))
	time.Sleep(50 * time.Millisecond) // let the cancel land in the cancel set

	q1, err := bridge.NewQueue(cfg.Bridges["q1"])
	require.NoError(t, err)
	items := []*types.Item{
		{UID: "u1", Type: types.ItemUnit, State: types.StateNew},
		{UID: "u2", Type: types.ItemUnit, State: types.StateNew},
		{UID: "u3", Type: types.ItemUnit, State: types.StateNew},
	}
	payload, err := json.Marshal(items)
	require.NoError(t, err)
	require.NoError(t, q1.Push(context.Background(), payload))

	results := map[string]types.State{}
	for len(results) < 3 {
		msg := waitState(t, stateCh)
		for _, raw := range msg.Arg {
			var it types.Item
			require.NoError(t, json.Unmarshal(raw, &it))
			results[it.UID] = it.State
		}
	}

	require.Equal(t, types.StateDone, results["u1"])
	require.Equal(t, types.StateCanceled, results["u2"])
	require.Equal(t, types.StateDone, results["u3"])
	require.ElementsMatch(t, []string{"u1", "u3"}, seen)
}

// S5. Bulk ordering: a bulk pushed as one list arrives at the worker in
// the same order.
func TestS5_BulkOrdering(t *testing.T) {
	cfg := testConfig(t, "q1")

	var order []string
	orderCh := make(chan []string, 1)
	c := New(cfg, "test")
	require.NoError(t, c.RegisterInput([]types.State{types.StateNew}, "q1", func(c *Component, items []*types.Item) error {
		for _, it := range items {
			order = append(order, it.UID)
		}
		orderCh <- order
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	q1, err := bridge.NewQueue(cfg.Bridges["q1"])
	require.NoError(t, err)
	items := []*types.Item{
		{UID: "a", Type: types.ItemUnit, State: types.StateNew},
		{UID: "b", Type: types.ItemUnit, State: types.StateNew},
		{UID: "c", Type: types.ItemUnit, State: types.StateNew},
	}
	payload, err := json.Marshal(items)
	require.NoError(t, err)
	require.NoError(t, q1.Push(context.Background(), payload))

	select {
	case got := <-orderCh:
		require.Equal(t, []string{"a", "b", "c"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worker invocation")
	}
}

// publish_full stripping: no item delivered on a queue carries the
// PublishFull marker. FINAL items are never pushed, so this drives a
// non-final SCHEDULED hop onto an output queue and inspects what lands.
func TestPublishFullNeverCrossesQueue(t *testing.T) {
	cfg := testConfig(t, "q1", "out")

	c := New(cfg, "test")
	require.NoError(t, c.RegisterInput([]types.State{types.StateNew}, "q1", func(c *Component, items []*types.Item) error {
		scheduled := types.StateScheduled
		return c.Advance(context.Background(), items, &scheduled, true, true)
	}))
	require.NoError(t, c.RegisterOutput(types.StateScheduled, "out"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	q1, err := bridge.NewQueue(cfg.Bridges["q1"])
	require.NoError(t, err)
	payload, err := json.Marshal([]*types.Item{{UID: "u1", Type: types.ItemUnit, State: types.StateNew}})
	require.NoError(t, err)
	require.NoError(t, q1.Push(context.Background(), payload))

	out, err := bridge.NewQueue(cfg.Bridges["out"])
	require.NoError(t, err)
	popCtx, popCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer popCancel()
	outPayload, err := out.Pop(popCtx)
	require.NoError(t, err)

	var raw []map[string]interface{}
	require.NoError(t, json.Unmarshal(outPayload, &raw))
	require.Len(t, raw, 1)
	_, hasPublishFull := raw[0]["PublishFull"]
	require.False(t, hasPublishFull, "publish_full must never be serialized across a queue boundary")
}
