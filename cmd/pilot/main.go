// Command pilot runs a session: it loads a session configuration file,
// brings up the configured bridges and components, serves the admin
// HTTP surface, and waits for a termination signal before tearing
// everything back down.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/pilot/pkg/admin"
	"github.com/cuemby/pilot/pkg/log"
	"github.com/cuemby/pilot/pkg/session"
	"github.com/spf13/cobra"

	_ "github.com/cuemby/pilot/pkg/stages" // registers "scheduler", "stager"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "pilot",
	Short:   "Pilot runs a session of bridges and components from a configuration file",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("pilot version %s\nCommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)
	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

var runCmd = &cobra.Command{
	Use:   "run <config-file>",
	Short: "Start a session from a configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adminAddr, _ := cmd.Flags().GetString("admin-addr")

		cfg, err := session.LoadConfig(args[0])
		if err != nil {
			return err
		}

		sess := session.New(cfg)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := sess.Start(ctx); err != nil {
			return fmt.Errorf("pilot: start session: %w", err)
		}

		srv := &http.Server{Addr: adminAddr, Handler: admin.NewRouter(sess)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Logger.Error().Err(err).Msg("pilot: admin server error")
			}
		}()
		log.Logger.Info().Str("addr", adminAddr).Msg("pilot: admin surface listening")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		log.Logger.Info().Msg("pilot: shutting down")
		_ = srv.Shutdown(context.Background())
		sess.Stop()

		return nil
	},
}

func init() {
	runCmd.Flags().String("admin-addr", "127.0.0.1:8090", "Address for the admin HTTP surface")
}
