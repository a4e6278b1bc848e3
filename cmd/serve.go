package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/national-treasure/internal/api"
	"github.com/jonesrussell/national-treasure/internal/maintenance"
)

// shutdownGrace bounds graceful shutdown of the API server and the queue.
const shutdownGrace = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the full service: workers, maintenance and the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		// Workers run on their own context: shutdown goes through
		// queue.Stop so in-flight jobs drain instead of being cut off
		// mid-handler by the signal context.
		workCtx, workCancel := context.WithCancel(context.Background())
		defer workCancel()

		if err := a.queue.Start(workCtx); err != nil {
			return err
		}

		maint := maintenance.NewRunner(
			cfg.Maintenance, a.jobs, a.outcomes, a.domains, a.learner, log)
		if err := maint.Start(workCtx); err != nil {
			return err
		}

		server := api.NewServer(cfg.Server, a.queue, a.jobs, a.domains, a.learner, log)
		serverErr := make(chan error, 1)
		go func() { serverErr <- server.Start() }()

		select {
		case <-ctx.Done():
			log.Info("Shutdown signal received")
		case err := <-serverErr:
			if err != nil {
				log.Error("API server failed", "error", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("API shutdown failed", "error", err)
		}
		maint.Stop()
		if err := a.queue.Stop(shutdownCtx); err != nil {
			log.Error("Queue shutdown failed", "error", err)
		}
		return nil
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run queue workers and maintenance without the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		workCtx, workCancel := context.WithCancel(context.Background())
		defer workCancel()

		if err := a.queue.Start(workCtx); err != nil {
			return err
		}
		maint := maintenance.NewRunner(
			cfg.Maintenance, a.jobs, a.outcomes, a.domains, a.learner, log)
		if err := maint.Start(workCtx); err != nil {
			return err
		}

		<-ctx.Done()
		log.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		maint.Stop()
		if err := a.queue.Stop(shutdownCtx); err != nil {
			log.Error("Queue shutdown failed", "error", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
}
