package main

import (
	"context"
	"io"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/slotwatch/internal/app/bootstrap"
	appconfig "github.com/wolfman30/slotwatch/internal/config"
	"github.com/wolfman30/slotwatch/pkg/logging"
)

// cycler runs one poll cycle.
type cycler interface {
	RunCycle(ctx context.Context) error
}

type handler struct {
	loop   cycler
	logger *logging.Logger
}

// handle runs a single cycle per scheduled event. The schedule replaces the
// interval sleep of the long running command.
func (h *handler) handle(ctx context.Context, evt events.CloudWatchEvent) error {
	h.logger.Info("scheduled poll", "event_id", evt.ID, "rule", firstResource(evt))
	if err := h.loop.RunCycle(ctx); err != nil {
		h.logger.Error("poll cycle failed", "event_id", evt.ID, "error", err)
		return err
	}
	return nil
}

func firstResource(evt events.CloudWatchEvent) string {
	if len(evt.Resources) == 0 {
		return ""
	}
	return evt.Resources[0]
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.LedgerBackend == "file" {
		logger.Warn("file ledger does not survive lambda cold starts", "path", cfg.LedgerPath)
	}

	rt, err := bootstrap.BuildRuntime(context.Background(), cfg, logger, io.Discard, nil)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	h := &handler{loop: rt.Loop, logger: logger}
	lambda.Start(h.handle)
}
