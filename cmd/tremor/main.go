// Package main implements the tremor command: it loads a YAML
// configuration, builds the onramps, pipelines and offramps it declares and
// runs them until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
)

// Build information, overridden by the linker
var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

const appName = "tremor"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		slog.Error("Command failed", "error", err, "exit_code", 1)
		cancel()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           appName,
		Short:         "event processing runtime with durable write-ahead logging",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}
			slog.SetDefault(setupLogger(cmd.ErrOrStderr(), flags.LogLevel, flags.LogFormat))
			return nil
		},
	}
	flags.bind(root.PersistentFlags())

	root.AddCommand(
		runCommand(flags),
		validateCommand(flags),
		walCommand(),
		versionCommand(),
	)
	return root
}
