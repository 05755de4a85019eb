/*
Package log provides structured logging for the pilot framework using
zerolog.

Every component gets its own child logger carrying its uid and kind as
structured fields, so a single aggregated log stream can be filtered down
to one component's lifecycle without grepping for a free-text prefix.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	compLog := log.WithComponent("scheduler.0", "scheduler")
	compLog.Info().Msg("initialize_common complete")
	compLog.Error().Err(err).Str("uid", item.UID).Msg("advance failed")

# Design

A single package-level zerolog.Logger is configured once via Init and
never reconfigured afterward; components derive from it with With() rather
than constructing their own. This mirrors the rest of the pack's loggers:
cheap child-logger derivation, one place that owns the sink.
*/
package log
