package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/national-treasure/internal/domain"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the job queue",
}

var (
	enqueuePriority    int
	enqueueMaxAttempts int
	enqueueType        string
	enqueueDependsOn   string
)

var queueEnqueueCmd = &cobra.Command{
	Use:   "enqueue <url>",
	Short: "Add a job to the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()
		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		maxAttempts := enqueueMaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = cfg.MaxAttempts
		}
		var dependsOn *string
		if enqueueDependsOn != "" {
			dependsOn = &enqueueDependsOn
		}

		id, err := a.queue.Enqueue(ctx, enqueueType,
			domain.NewPayload(map[string]any{"url": args[0]}),
			enqueuePriority, maxAttempts, dependsOn)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue depth by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()
		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.jobs.Stats(ctx, cfg.Queue.Queue)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Queue", "Pending", "Running", "Done", "Failed", "Dead", "Dead Letter"})
		t.AppendRow(table.Row{
			stats.Queue, stats.Pending, stats.Running,
			stats.Done, stats.Failed, stats.Dead, stats.DeadLetter,
		})
		t.Render()
		return nil
	},
}

var deadLetterLimit int

var queueDeadLetterCmd = &cobra.Command{
	Use:   "dead-letter",
	Short: "List dead-lettered jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()
		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.jobs.ListDeadLetter(ctx, deadLetterLimit)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Job ID", "Type", "Attempts", "Died At", "Revived", "Error"})
		for _, e := range entries {
			revived := ""
			if e.RevivedAt != nil {
				revived = e.RevivedAt.Format("2006-01-02 15:04")
			}
			t.AppendRow(table.Row{
				e.ID, e.JobID, e.Type, e.Attempts,
				e.DiedAt.Format("2006-01-02 15:04"), revived, e.Error,
			})
		}
		t.Render()
		return nil
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry <dead-letter-id>",
	Short: "Revive a dead-lettered job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid dead letter id %q", args[0])
		}

		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()
		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.jobs.RetryDeadLetter(ctx, id); err != nil {
			return err
		}
		fmt.Println("revived")
		return nil
	},
}

var queueCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Remove a pending job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()
		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.jobs.Cancel(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("canceled")
		return nil
	},
}

func init() {
	queueEnqueueCmd.Flags().StringVar(&enqueueType, "type", domain.JobTypeCapture, "job type (capture, scrape)")
	queueEnqueueCmd.Flags().IntVar(&enqueuePriority, "priority", 0, "job priority, higher runs first")
	queueEnqueueCmd.Flags().IntVar(&enqueueMaxAttempts, "max-attempts", 0, "attempt budget; 0 uses the configured default")
	queueEnqueueCmd.Flags().StringVar(&enqueueDependsOn, "depends-on", "", "parent job id that must finish first")
	queueDeadLetterCmd.Flags().IntVar(&deadLetterLimit, "limit", 50, "max entries to list")

	queueCmd.AddCommand(queueEnqueueCmd)
	queueCmd.AddCommand(queueStatsCmd)
	queueCmd.AddCommand(queueDeadLetterCmd)
	queueCmd.AddCommand(queueRetryCmd)
	queueCmd.AddCommand(queueCancelCmd)
	rootCmd.AddCommand(queueCmd)
}
