package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/webterm/webterm/internal/core"
	"github.com/webterm/webterm/internal/core/execution"
	"github.com/webterm/webterm/internal/terminal"
)

const localSessionID = "local"

func getRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Run one command or request in the current directory",
		Long: `Run a single input through the same pipeline as the browser terminal.
Allow-listed commands run directly; anything else is translated first.

Examples:
  webterm run ls -la
  webterm run "show the five largest files here"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			engine, err := newEngine(ctx, cfg, logger, wd)
			if err != nil {
				return err
			}
			defer engine.Shutdown(context.Background())

			return runOnce(ctx, engine, strings.Join(args, " "), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	return cmd
}

// runOnce executes input and reports anything but a completed command as
// an error.
func runOnce(ctx context.Context, engine *core.Engine, input string, out, errOut io.Writer) error {
	printer := terminal.NewPrinter(out, errOut)

	proc, sub, err := engine.Submit(ctx, localSessionID, input)
	if err != nil {
		return err
	}
	if sub.Translated {
		printer.Translated(sub.Command)
	}

	res := printer.Stream(proc)
	if res.State != execution.StateCompleted {
		return fmt.Errorf("command %s (exit status %d)", res.State, res.ExitCode)
	}
	return nil
}
