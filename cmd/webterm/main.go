package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/webterm/webterm/internal/logging"
	"github.com/webterm/webterm/internal/storage"
)

var (
	cfgFile string
	verbose bool

	cfg    *storage.Config
	logger = zap.NewNop()
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "webterm",
		Short: "Browser terminal with natural-language commands",
		Long: `webterm serves a remote shell to the browser. Commands on the allow-list run
directly; anything else is translated into a single shell command by an AI model
and validated before it runs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := storage.InitConfig(cfgFile)
			if err != nil {
				return err
			}
			cfg = loaded

			level := cfg.Log.Level
			if verbose {
				level = "debug"
			}
			l, err := logging.New(level, cfg.Log.Format)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.webterm/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(getServeCommand())
	root.AddCommand(getRunCommand())
	root.AddCommand(getShellCommand())
	root.AddCommand(getConfigCommand())
	return root
}

func main() {
	err := newRootCommand().Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
