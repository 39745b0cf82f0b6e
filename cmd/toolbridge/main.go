package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/toolbridge/toolbridge/internal/cli"
	"github.com/toolbridge/toolbridge/internal/observability/tracing"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	shutdown, err := tracing.Init(ctx)
	if err != nil {
		slog.Warn("tracing disabled", slog.String("error", err.Error()))
		shutdown = func(context.Context) error { return nil }
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			slog.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
