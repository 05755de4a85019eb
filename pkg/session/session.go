package session

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cuemby/pilot/pkg/bridge"
	"github.com/cuemby/pilot/pkg/launch"
	"github.com/cuemby/pilot/pkg/log"
	"github.com/cuemby/pilot/pkg/security"
	"github.com/cuemby/pilot/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// leafChannels are the three pub/sub bridges every component depends on
// and that a session therefore brings up before anything else (spec §2,
// "starts bridges first ... leaves first: log/state/control pub/sub").
var leafChannels = []string{"log", "state", "control"}

// ComponentInfo is the admin-surface view of one spawned component
// (SPEC_FULL.md §6.1, "/components").
type ComponentInfo struct {
	UID       string    `json:"uid"`
	Kind      string    `json:"kind"`
	Spawn     string    `json:"spawn"`
	StartedAt time.Time `json:"started_at"`
}

// Session is the root holder of configuration, bridges, and components
// for one run (spec §2 Glossary).
type Session struct {
	UID        string
	MongoDBURL string
	Extra      map[string]interface{}

	// Binary is the executable pkg/launch re-execs for ComponentSpecs
	// with Spawn == SpawnProcess. Defaults to os.Args[0].
	Binary string

	log zerolog.Logger
	cfg *Config
	ca  *security.CertAuthority

	mu       sync.Mutex
	pubsubs  map[string]bridge.PubSub
	queues   map[string]bridge.Queue
	handles  map[string]launch.Handle
	info     map[string]ComponentInfo
	started  []string // uids in start order, for LIFO shutdown
}

// New constructs a Session from a parsed configuration. It does not
// start anything; call Start to bring up bridges and components.
func New(cfg *Config) *Session {
	uid := cfg.UID
	if uid == "" {
		uid = uuid.NewString()
	}
	bin := os.Args[0]
	return &Session{
		UID:        uid,
		MongoDBURL: cfg.MongoDBURL,
		Extra:      cfg.Extra,
		Binary:     bin,
		log:        log.WithSession(uid),
		cfg:        cfg,
		pubsubs:    make(map[string]bridge.PubSub),
		queues:     make(map[string]bridge.Queue),
		handles:    make(map[string]launch.Handle),
		info:       make(map[string]ComponentInfo),
	}
}

// Start brings up the session's bridges and components in dependency
// order: log/state/control pub/sub, then every data queue any component
// references, then the components themselves in the order the config
// lists them (spec §2). On any failure it unwinds whatever it already
// started and returns the error — a session never runs partially up.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.TLS.Enabled {
		if err := s.setupTLSLocked(); err != nil {
			return fmt.Errorf("session: configure TLS: %w", err)
		}
	}

	for _, ch := range leafChannels {
		addr, ok := s.cfg.Bridges[ch]
		if !ok {
			return fmt.Errorf("session: config missing required bridge %q", ch)
		}
		p, err := bridge.NewPubSub(addr)
		if err != nil {
			s.unwindLocked()
			return fmt.Errorf("session: start bridge %q: %w", ch, err)
		}
		s.pubsubs[ch] = p
	}

	for _, spec := range s.cfg.Components {
		for _, q := range spec.Queues {
			if _, ok := s.queues[q]; ok {
				continue
			}
			addr, ok := s.cfg.Bridges[q]
			if !ok {
				s.unwindLocked()
				return fmt.Errorf("session: component %q references unknown bridge %q", spec.UID, q)
			}
			queue, err := bridge.NewQueue(addr)
			if err != nil {
				s.unwindLocked()
				return fmt.Errorf("session: start queue %q: %w", q, err)
			}
			s.queues[q] = queue
		}
	}

	for _, spec := range s.cfg.Components {
		if err := s.startComponentLocked(ctx, spec); err != nil {
			s.unwindLocked()
			return fmt.Errorf("session: start component %q: %w", spec.UID, err)
		}
	}

	s.log.Info().Int("components", len(s.cfg.Components)).Msg("session: started")
	return nil
}

// setupTLSLocked brings up a session-local certificate authority and
// installs its certificate into pkg/bridge so every wss:// bridge this
// session resolves can dial/serve over TLS (SPEC_FULL.md §2.1 table,
// "bridge/process TLS" — pkg/security, grounded on the teacher's own
// CA code rather than a third-party ACME/PKI library).
func (s *Session) setupTLSLocked() error {
	ca := security.NewCertAuthority()
	if s.cfg.TLS.CertDir != "" {
		if err := ca.LoadFromDir(s.cfg.TLS.CertDir); err != nil {
			if err := ca.Initialize(); err != nil {
				return err
			}
			if err := ca.SaveToDir(s.cfg.TLS.CertDir); err != nil {
				return err
			}
		}
	} else if err := ca.Initialize(); err != nil {
		return err
	}

	serverCert, err := ca.IssueComponentCertificate(s.UID, "session", nil, nil)
	if err != nil {
		return fmt.Errorf("issue session certificate: %w", err)
	}

	roots := x509.NewCertPool()
	rootCert, err := x509.ParseCertificate(ca.GetRootCACert())
	if err != nil {
		return fmt.Errorf("parse root CA: %w", err)
	}
	roots.AddCert(rootCert)

	bridge.SetTLSConfig(&tls.Config{
		Certificates: []tls.Certificate{*serverCert},
		RootCAs:      roots,
		ClientCAs:    roots,
	})
	s.ca = ca
	return nil
}

func (s *Session) startComponentLocked(ctx context.Context, spec ComponentSpec) error {
	owner := spec.Owner
	if owner == "" {
		owner = s.UID
	}

	bridges := make(map[string]types.BridgeAddress, len(leafChannels)+len(spec.Queues))
	for _, ch := range leafChannels {
		bridges[ch] = s.cfg.Bridges[ch]
	}
	for _, q := range spec.Queues {
		bridges[q] = s.cfg.Bridges[q]
	}

	cfg := types.ComponentConfig{
		UID:               spec.UID,
		Owner:             owner,
		Heart:             spec.Heart,
		Bridges:           bridges,
		HeartbeatInterval: spec.HeartbeatInterval,
		HeartbeatTimeout:  spec.HeartbeatTimeout,
		Number:            spec.Number,
		Name:              spec.Name,
	}

	var (
		h   launch.Handle
		err error
	)
	switch spec.Spawn {
	case SpawnProcess:
		h, err = launch.Process(ctx, s.Binary, spec.Kind, cfg)
	case SpawnSuppressed, "":
		h, err = launch.Suppressed(ctx, spec.Kind, cfg)
	default:
		return fmt.Errorf("unrecognised spawn mode %q", spec.Spawn)
	}
	if err != nil {
		return err
	}

	s.handles[spec.UID] = h
	s.info[spec.UID] = ComponentInfo{UID: spec.UID, Kind: spec.Kind, Spawn: spec.Spawn, StartedAt: time.Now()}
	s.started = append(s.started, spec.UID)
	return nil
}

// unwindLocked stops every component started so far, in reverse order.
// Called with s.mu already held.
func (s *Session) unwindLocked() {
	for i := len(s.started) - 1; i >= 0; i-- {
		uid := s.started[i]
		if h, ok := s.handles[uid]; ok {
			_ = h.Stop()
		}
	}
	s.started = nil
	s.handles = make(map[string]launch.Handle)
	s.info = make(map[string]ComponentInfo)
}

// Stop stops every spawned component, in reverse start order, then
// closes the session's own bridge handles. Safe to call once after a
// successful Start; it is not idempotent across overlapping Stop/Start
// cycles since a Session is single-use, matching pkg/component's own
// one-shot Start/Stop lifecycle.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.started) - 1; i >= 0; i-- {
		uid := s.started[i]
		h, ok := s.handles[uid]
		if !ok {
			continue
		}
		if err := h.Stop(); err != nil {
			s.log.Warn().Err(err).Str("uid", uid).Msg("session: component stop error")
		}
	}
	for _, p := range s.pubsubs {
		_ = p.Close()
	}
	for _, q := range s.queues {
		_ = q.Close()
	}

	s.log.Info().Msg("session: stopped")
}

// Components returns a snapshot of every component this session has
// spawned, for the admin surface's "/components" endpoint.
func (s *Session) Components() []ComponentInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ComponentInfo, 0, len(s.info))
	for _, uid := range s.started {
		if info, ok := s.info[uid]; ok {
			out = append(out, info)
		}
	}
	return out
}
