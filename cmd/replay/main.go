// Command replay drives one full replay run: load config, dial the forked
// node, load the recorded CSV event stream, replay it through internal/replay,
// and write the resulting position segments to CSV (and, if configured, to
// the audit trail), matching the reference codebase's thin cmd/main.go
// wiring shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/lilyjjo/ammreplay/configs"
	"github.com/lilyjjo/ammreplay/internal/fork"
	"github.com/lilyjjo/ammreplay/internal/logging"
	"github.com/lilyjjo/ammreplay/internal/recorder"
	"github.com/lilyjjo/ammreplay/internal/replay"
	"github.com/lilyjjo/ammreplay/internal/tabular"
)

func main() {
	log := logging.Default()
	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("replay run failed")
	}
}

func run(log logging.Logger) error {
	configPath := "configs/config.yml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	if err := configs.LoadDotEnvOverrides(".env.test.local"); err != nil {
		return fmt.Errorf("load env overrides: %w", err)
	}

	cfg, err := configs.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	rc, err := cfg.ToReplayConfig()
	if err != nil {
		return fmt.Errorf("translate config: %w", err)
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, parseErr := zerolog.ParseLevel(lvl); parseErr == nil {
			log = log.Level(parsed)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session, err := fork.Open(ctx, rc.RPCEndpoint, rc.Contracts.QuoteToken, rc.Contracts.Router, rc.Contracts.PositionManager)
	if err != nil {
		return fmt.Errorf("open forked node: %w", err)
	}
	defer session.Close()

	events, err := tabular.LoadAll(rc.Paths)
	if err != nil {
		return fmt.Errorf("load input CSVs: %w", err)
	}
	log.Info().Int("event_count", len(events)).Msg("loaded recorded event stream")

	driver := replay.New(session, rc.Contracts, rc.Accounts, rc.Funding, rc.Surrogate, log)

	var auditSink *recorder.MySQLRecorder
	if rc.AuditDSN != "" {
		auditSink, err = recorder.NewMySQLRecorder(rc.AuditDSN, log)
		if err != nil {
			log.Warn().Err(err).Msg("audit trail unavailable, continuing without it")
		} else {
			defer auditSink.Close()
			driver.SetAuditSink(auditSink)
		}
	}

	segments, err := driver.Run(ctx, events)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	if err := tabular.WriteSegmentsAudited(rc.Paths.Output, segments, auditSink); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	log.Info().Str("output", rc.Paths.Output).Msg("replay complete")
	return nil
}
