package session

import (
	"fmt"
	"os"

	"github.com/cuemby/pilot/pkg/types"
	"gopkg.in/yaml.v3"
)

// ComponentSpec is one entry of a session config's "components" list
// (spec §6). Spawn selects the launch strategy pkg/launch uses;
// "suppressed" (the default) runs the component in the session's own
// process, "process" re-execs the session binary.
type ComponentSpec struct {
	UID               string   `yaml:"uid"`
	Kind              string   `yaml:"kind"`
	Owner             string   `yaml:"owner"`
	Heart             string   `yaml:"heart"`
	HeartbeatInterval float64  `yaml:"heartbeat_interval"`
	HeartbeatTimeout  float64  `yaml:"heartbeat_timeout"`
	Number            int      `yaml:"number"`
	Name              string   `yaml:"name"`
	Spawn             string   `yaml:"spawn"`
	Queues            []string `yaml:"queues"`
}

const (
	SpawnSuppressed = "suppressed"
	SpawnProcess    = "process"
)

// TLSConfig requests that any wss:// bridge this session resolves be
// secured by a session-local certificate authority (SPEC_FULL.md §2.1
// table, "bridge/process TLS" — pkg/security). CertDir persists the
// root CA across restarts; when empty the CA is generated fresh and
// kept in memory only.
type TLSConfig struct {
	Enabled bool   `yaml:"enabled"`
	CertDir string `yaml:"cert_dir"`
}

// Config is the recognised shape of a session configuration document
// (spec §6, "Session configuration file"): uid, mongodb_url, bridges,
// components, tls, plus passthrough extra keys.
type Config struct {
	UID        string                         `yaml:"uid"`
	MongoDBURL string                         `yaml:"mongodb_url"`
	Bridges    map[string]types.BridgeAddress `yaml:"bridges"`
	Components []ComponentSpec                `yaml:"components"`
	TLS        TLSConfig                      `yaml:"tls"`

	// Extra holds every top-level key this struct doesn't recognise,
	// passed through to components verbatim per spec §6.
	Extra map[string]interface{} `yaml:"-"`
}

var knownTopLevelKeys = map[string]bool{
	"uid": true, "mongodb_url": true, "bridges": true, "components": true, "tls": true,
}

// LoadConfig reads and parses a session configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a session configuration document from raw YAML.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("session: parse config: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("session: parse config: %w", err)
	}
	for k := range raw {
		if knownTopLevelKeys[k] {
			delete(raw, k)
		}
	}
	if len(raw) > 0 {
		cfg.Extra = raw
	}

	return &cfg, nil
}
