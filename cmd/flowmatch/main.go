// main.go - Einstiegspunkt des flowmatch CLI
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/7blacky7/flowmatch/envconfig"
)

func main() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: envconfig.LogLevel(),
	})
	slog.SetDefault(slog.New(handler))

	if err := NewCLI().ExecuteContext(context.Background()); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
