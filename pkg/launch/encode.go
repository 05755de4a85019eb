package launch

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/cuemby/pilot/pkg/types"
)

// Env vars a re-exec'd subprocess reads on startup; cmd/pilot-agent's
// hidden run-component subcommand decodes these with DecodeConfig.
const (
	EnvKind       = "PILOT_COMPONENT_KIND"
	EnvConfig     = "PILOT_COMPONENT_CONFIG"
	RunSubcommand = "run-component"
)

// EncodeConfig serializes cfg to the base64-JSON form carried in
// EnvConfig. No secrets live in ComponentConfig, so plain JSON is fine;
// base64 only avoids shell-quoting hazards in the spawned environment.
func EncodeConfig(cfg types.ComponentConfig) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("launch: encode config: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeConfig reverses EncodeConfig.
func DecodeConfig(encoded string) (types.ComponentConfig, error) {
	var cfg types.ComponentConfig
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return cfg, fmt.Errorf("launch: decode config: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("launch: unmarshal config: %w", err)
	}
	return cfg, nil
}
