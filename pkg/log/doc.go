/*
Package log provides structured logging for the consensus engine using
zerolog.

The package wraps zerolog with a global logger, JSON or console output,
and a set of context-logger helpers for the fields the engine actually
emits on: term, role, and command id.

# Usage

Initializing the logger:

	import "github.com/Kylemclean11/Xline/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Structured logging:

	log.Logger.Info().
		Uint64("term", term).
		Str("cmd_id", cmd.ID().String()).
		Msg("fast-path command accepted")

Context loggers:

	log.WithTerm(term).Info().Msg("became leader")
	log.WithRole("candidate").Debug().Msg("election timed out")
	log.WithCmdID(id.String()).Error().Err(err).Msg("after_sync failed")

# Integration points

  - pkg/consensus: logs nothing itself; its role transitions reach the
    log as engine events that cmd/curpd logs
  - pkg/pipeline: exe/apply worker failures, with a cmd_id field
  - pkg/snapshot: InstallSnapshot assembly and compaction lifecycle
  - pkg/engine: stable-state persistence failures, fast-path recovery
  - cmd/curpd: startup/shutdown and fatal errors before process exit

# Design

A single package-level zerolog.Logger, initialized once via Init and
read directly or through a With* helper. Context loggers carry exactly
the fields this engine's hot paths (election, propose, apply) need —
term, role, cmd_id — rather than a generic component/node/service/task
taxonomy.
*/
package log
