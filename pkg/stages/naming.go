package stages

import (
	"strings"

	"github.com/cuemby/pilot/pkg/types"
)

// queueNameForState is the convention these example stages use to pick
// a default queue name from a state: the state token lowercased. A
// session configuration file wires the actual bridge addresses under
// these names; a stage only falls back to drop-on-arrival for a state
// whose queue was never configured (typically because it is terminal
// at that stage).
func queueNameForState(s types.State) string {
	return strings.ToLower(string(s))
}

func outputQueueIfConfigured(bridges map[string]types.BridgeAddress, s types.State) string {
	name := queueNameForState(s)
	if _, ok := bridges[name]; ok {
		return name
	}
	return ""
}
