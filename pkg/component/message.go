package component

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/pilot/pkg/types"
)

// ControlMessage is the wire envelope for every message on the control
// pub/sub channel (spec §6, "Control pub/sub protocol"). Arg is decoded
// according to Cmd; the closed command set is alive, heartbeat, and
// cancel_units (spec §3.3) — anything else is logged and ignored.
type ControlMessage struct {
	Cmd string          `json:"cmd"`
	Arg json.RawMessage `json:"arg"`
}

const (
	CmdAlive       = "alive"
	CmdHeartbeat   = "heartbeat"
	CmdCancelUnits = "cancel_units"
)

// AliveArg is Arg for an "alive" control message.
type AliveArg struct {
	Sender string `json:"sender"`
	Owner  string `json:"owner"`
}

// HeartbeatArg is Arg for a "heartbeat" control message.
type HeartbeatArg struct {
	Sender string `json:"sender"`
}

// CancelUnitsArg is Arg for a "cancel_units" control message. UIDs
// accepts either a single uid or a list on the wire and always
// normalizes to a list, per spec §6 ("Single uid or list; recipients
// coerce to list").
type CancelUnitsArg struct {
	UIDs UIDList `json:"uids"`
}

// UIDList unmarshals from either a JSON string or a JSON array of
// strings, coercing the single-string case to a one-element list.
type UIDList []string

func (u *UIDList) UnmarshalJSON(data []byte) error {
	var asList []string
	if err := json.Unmarshal(data, &asList); err == nil {
		*u = asList
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return fmt.Errorf("component: cancel_units uids is neither a string nor a list: %w", err)
	}
	*u = []string{asString}
	return nil
}

func decodeControl(payload []byte) (ControlMessage, error) {
	var msg ControlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ControlMessage{}, err
	}
	return msg, nil
}

func decodeArg(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func encodeControl(cmd string, arg interface{}) ([]byte, error) {
	argBytes, err := json.Marshal(arg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ControlMessage{Cmd: cmd, Arg: argBytes})
}

// stateMessage is the wire envelope for the state pub/sub channel (spec
// §6, "State pub/sub protocol"): {cmd: "update", arg: [items_or_triples]}.
type stateMessage struct {
	Cmd string            `json:"cmd"`
	Arg []json.RawMessage `json:"arg"`
}

// encodeStateUpdate builds the state-channel payload for one advance
// call. Each item is encoded whole if it carries PublishFull, or as its
// canonical Triple otherwise — the per-item choice the spec's "publish
// full record once on FINAL" rule requires.
func encodeStateUpdate(items []*types.Item) ([]byte, error) {
	records := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		var raw json.RawMessage
		var err error
		if it.PublishFull {
			raw, err = json.Marshal(it)
		} else {
			raw, err = json.Marshal(it.AsTriple())
		}
		if err != nil {
			return nil, err
		}
		records = append(records, raw)
	}
	return json.Marshal(stateMessage{Cmd: "update", Arg: records})
}

// decodeItems parses a queue bulk payload. A bulk is always a list of
// items; a singleton payload (a single JSON object rather than array)
// is promoted to a one-element list, per spec §4.4 step 3 and §4.2.
func decodeItems(payload []byte) ([]*types.Item, error) {
	var list []*types.Item
	if err := json.Unmarshal(payload, &list); err == nil {
		return list, nil
	}
	var single types.Item
	if err := json.Unmarshal(payload, &single); err != nil {
		return nil, fmt.Errorf("component: malformed bulk payload: %w", err)
	}
	return []*types.Item{&single}, nil
}

func encodeItems(items []*types.Item) ([]byte, error) {
	return json.Marshal(items)
}
