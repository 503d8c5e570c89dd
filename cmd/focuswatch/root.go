package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"focuswatch/internal/config"
	"focuswatch/internal/logging"
)

// cliEnv carries values resolved in PersistentPreRunE
type cliEnv struct {
	configPath string
	debug      bool

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	env := &cliEnv{}

	root := &cobra.Command{
		Use:           "focuswatch",
		Short:         "Watch the League client and compare your farming against benchmarks",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env.configPath)
			if err != nil {
				return err
			}
			if env.debug {
				cfg.Debug = true
			}
			env.cfg = cfg
			env.log = logging.Must(cfg.Debug)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if env.log != nil {
				_ = env.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&env.configPath, "config", "", "config file (default is the user config dir)")
	root.PersistentFlags().BoolVar(&env.debug, "debug", false, "verbose logging")

	root.AddCommand(newWatchCmd(env), newResolveCmd(env), newBenchmarkCmd(env))
	return root
}
