// Command pilot-agent is the binary pkg/launch.Process re-execs into: a
// hidden "run-component" subcommand reconstructs a single Component
// from the PILOT_COMPONENT_KIND/PILOT_COMPONENT_CONFIG environment
// variables its parent set and runs it until stopped (spec §9,
// "Process-level dispatch ... No state is inherited across the process
// boundary — everything needed is in the config document").
//
// pilot-agent is the only binary in this repository that handles
// "run-component"; cmd/pilot has no such subcommand. pkg/session's
// Session.Binary, the binary launch.Process re-execs, defaults to
// os.Args[0], so a session that spawns components as processes needs
// Session.Binary pointed at pilot-agent. pilot-agent itself has no
// session or admin surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/pilot/pkg/launch"
	"github.com/cuemby/pilot/pkg/log"
	"github.com/cuemby/pilot/pkg/registry"

	_ "github.com/cuemby/pilot/pkg/stages" // registers "scheduler", "stager"
)

func main() {
	log.Init(log.Config{Level: log.InfoLevel})

	if len(os.Args) < 2 || os.Args[1] != launch.RunSubcommand {
		fmt.Fprintf(os.Stderr, "usage: %s %s\n", os.Args[0], launch.RunSubcommand)
		os.Exit(2)
	}

	if err := runComponent(); err != nil {
		log.Logger.Error().Err(err).Msg("pilot-agent: component failed")
		os.Exit(1)
	}
}

func runComponent() error {
	kind := os.Getenv(launch.EnvKind)
	encoded := os.Getenv(launch.EnvConfig)
	if kind == "" || encoded == "" {
		return fmt.Errorf("pilot-agent: missing %s/%s environment", launch.EnvKind, launch.EnvConfig)
	}

	cfg, err := launch.DecodeConfig(encoded)
	if err != nil {
		return err
	}

	factory, err := registry.Lookup(kind)
	if err != nil {
		return err
	}
	c, err := factory(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("pilot-agent: start component: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		c.Stop()
	}()

	c.Wait()
	return nil
}
