// Command repoindexd builds and publishes a portable artifact index for a
// Maven-style repository tree.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"repoindex/cmd/repoindexd/cli"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	rootCmd := &cobra.Command{
		Use:   "repoindexd",
		Short: "Build and publish a portable artifact repository index",
	}

	rootCmd.AddCommand(
		cli.NewPackCommand(logger),
		cli.NewVerifyCommand(logger),
		cli.NewInspectCommand(logger),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
