package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecomdw/etl/internal/application/pipeline"
	"github.com/ecomdw/etl/internal/infrastructure/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// shutdownTimeout bounds how long an interrupted in-flight run may take to stop
const shutdownTimeout = 30 * time.Second

func newScheduleCommand(global *globalFlags) *cobra.Command {
	var (
		spec    string
		migrate bool
		now     bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on a cron schedule until interrupted",
		Long: `Runs the pipeline on a cron expression (default: scheduler.cron) until SIGINT
or SIGTERM. At most one run is in progress; a tick that fires while a run
is still going is skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(global)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			load := a.cfg.Pipeline.LoadToDB
			svc, err := a.pipeline(ctx, load)
			if err != nil {
				return err
			}

			if spec == "" {
				spec = a.cfg.Scheduler.Cron
			}
			opts := pipeline.Options{NoLoad: !load}
			// Migrations run before the first run only
			if load && (migrate || a.cfg.Pipeline.MigrateOnRun) {
				if err := a.migrate(ctx); err != nil {
					return err
				}
			}

			trigger, err := scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
				Spec:       spec,
				RunTimeout: a.cfg.Scheduler.RunTimeout,
			}, func(ctx context.Context) error {
				_, err := svc.Run(ctx, opts)
				return err
			}, a.log)
			if err != nil {
				return err
			}

			if now {
				_ = trigger.TriggerNow(ctx)
			}
			if err := trigger.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			a.log.Info("Shutdown signal received, stopping scheduler")

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := trigger.Stop(stopCtx); err != nil {
				a.log.Warn("Scheduler did not stop cleanly", zap.Error(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "cron expression (default: scheduler.cron)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending schema migrations before scheduling")
	cmd.Flags().BoolVar(&now, "now", false, "run once immediately before the first scheduled run")
	return cmd
}
