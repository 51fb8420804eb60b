package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/jobs"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a Temporal enrichment worker",
	Long:  "Registers the enrichment workflow and activity on the configured task queue and processes runs until interrupted. Requires a Temporal address in config.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Temporal.Address == "" {
			return eris.New("worker requires temporal.address to be configured")
		}

		env, err := initApp(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(ctx); err != nil {
			return err
		}

		dispatcher, err := jobs.NewDispatcher(ctx, cfg.Temporal)
		if err != nil {
			return err
		}
		defer dispatcher.Close()

		return jobs.RunWorker(ctx, dispatcher.Client(), cfg.Temporal.TaskQueue, env.Orch)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
