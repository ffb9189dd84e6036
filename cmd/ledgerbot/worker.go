package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hiltonbrown/ledgerbot/internal/config"
	"github.com/hiltonbrown/ledgerbot/worker"
)

func newWorkerCommand(cfg config.Config, log zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background sync worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := worker.NewServer(redisOpt(cfg), a.syncer, cfg.GetWorkerConcurrency(), log)

			go func() {
				stop := make(chan os.Signal, 1)
				signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
				select {
				case <-stop:
				case <-ctx.Done():
				}
				log.Info().Msg("shutting down worker")
				srv.Shutdown()
			}()

			log.Info().Int("concurrency", cfg.GetWorkerConcurrency()).Msg("worker starting")
			return srv.Run()
		},
	}
}
