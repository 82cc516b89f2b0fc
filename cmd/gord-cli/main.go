package main

import (
	"context"
	"log/slog"
	"time"

	"catalogscraper/cmd/gord-cli/commands"
	"catalogscraper/internal/components/telemetry"
	"catalogscraper/pkg/serviceutil"
)

func main() {
	ctx := serviceutil.SignalContext()

	otel, err := telemetry.SetupFromEnv(ctx, "gord-cli")
	if err != nil {
		slog.Debug("telemetry disabled", "err", err.Error())
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
			defer cancel()
			otel.Shutdown(shutdownCtx)
		}()
	}
	telemetry.InstrumentPerfStats(ctx, telemetry.SlogAPI{}, 0)

	commands.ExecuteContext(ctx)
}
