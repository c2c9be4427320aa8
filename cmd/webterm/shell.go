package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/webterm/webterm/internal/terminal"
)

func getShellCommand() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive session in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			engine, err := newEngine(ctx, cfg, logger, wd)
			if err != nil {
				return err
			}
			defer engine.Shutdown(context.Background())

			repl := terminal.NewREPL(terminal.Options{
				Engine:    engine,
				SessionID: localSessionID,
				Confirm:   confirm,
				In:        cmd.InOrStdin(),
				Out:       cmd.OutOrStdout(),
				ErrOut:    cmd.ErrOrStderr(),
			})
			return repl.Run(ctx)
		},
	}

	cmd.Flags().BoolVarP(&confirm, "confirm", "c", true, "ask before running translated commands")
	return cmd
}
