package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/national-treasure/internal/database"
	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/learning"
)

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "Inspect learned per-domain state",
}

var domainsShowCmd = &cobra.Command{
	Use:   "show <domain>",
	Short: "Show a domain's record, arms and drift signals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
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

		rec, err := a.domains.Get(ctx, name)
		if err != nil {
			return err
		}

		best := "-"
		lastOK := "-"
		if rec.BestConfigID != nil {
			best = *rec.BestConfigID
			at, err := a.outcomes.LastSuccessAt(ctx, name, best)
			switch {
			case err == nil:
				lastOK = at.Format("2006-01-02 15:04")
			case !errors.Is(err, database.ErrNotFound):
				return err
			}
		}
		fmt.Printf("domain: %s\nbest config: %s\nlast success: %s\nconfidence: %.3f\nsamples: %d\nmin delay: %dms\nmax/minute: %d\n",
			rec.Domain, best, lastOK, rec.Confidence, rec.SampleCount, rec.MinDelayMS, rec.MaxPerMinute)
		if len(rec.BlockIndicators) > 0 {
			fmt.Printf("block indicators: %v\n", []string(rec.BlockIndicators))
		}

		now := time.Now().UTC()
		since := now.AddDate(0, 0, -cfg.Learning.HistoryDays)
		history, err := a.outcomes.ListByDomain(ctx, name, since)
		if err != nil {
			return err
		}
		arms := learning.BuildArms(history, now, cfg.Learning.HalfLifeDays)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Config", "Weighted OK", "Weighted Fail", "Raw", "Posterior Mean", "Last Success"})
		for _, arm := range arms {
			lastSuccess := "-"
			if arm.LastSuccess != nil {
				lastSuccess = arm.LastSuccess.Format("2006-01-02 15:04")
			}
			t.AppendRow(table.Row{
				arm.ConfigID,
				fmt.Sprintf("%.2f", arm.Successes),
				fmt.Sprintf("%.2f", arm.Failures),
				arm.Observations,
				fmt.Sprintf("%.3f", arm.PosteriorMean()),
				lastSuccess,
			})
		}
		t.Render()

		signals, err := a.learner.Drift(ctx, name)
		if err != nil {
			return err
		}
		if len(signals) > 0 {
			fmt.Printf("drift signals: %v\n", signals)
		}
		return nil
	},
}

var (
	linkKind   string
	linkWeight float64
)

var domainsLinkCmd = &cobra.Command{
	Use:   "link <domain-a> <domain-b>",
	Short: "Record a similarity edge used for cold starts",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch linkKind {
		case domain.SimilarityTLD, domain.SimilarityTechnology, domain.SimilarityBehavior:
		default:
			return fmt.Errorf("unknown similarity kind %q", linkKind)
		}
		if linkWeight <= 0 || linkWeight > 1 {
			return fmt.Errorf("weight must be in (0, 1]")
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

		sim := domain.Similarity{
			DomainA: args[0],
			DomainB: args[1],
			Kind:    linkKind,
			Weight:  linkWeight,
		}
		if err := a.domains.AddSimilarity(ctx, sim); err != nil {
			return err
		}
		// Cold start looks up neighbors of either side.
		sim.DomainA, sim.DomainB = sim.DomainB, sim.DomainA
		return a.domains.AddSimilarity(ctx, sim)
	},
}

func init() {
	domainsLinkCmd.Flags().StringVar(&linkKind, "kind", domain.SimilarityTLD,
		"similarity kind (tld, technology, behavior)")
	domainsLinkCmd.Flags().Float64Var(&linkWeight, "weight", 0.5, "similarity weight in (0, 1]")

	domainsCmd.AddCommand(domainsShowCmd)
	domainsCmd.AddCommand(domainsLinkCmd)
	rootCmd.AddCommand(domainsCmd)
}
