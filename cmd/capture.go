package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/national-treasure/internal/capture"
	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/queue"
)

var (
	captureArtifacts []string
	captureBehaviors bool
)

var captureCmd = &cobra.Command{
	Use:   "capture <url>",
	Short: "Capture one page immediately, bypassing the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawURL := args[0]
		u, err := url.Parse(rawURL)
		if err != nil || !u.IsAbs() || u.Hostname() == "" {
			return fmt.Errorf("malformed url %q", rawURL)
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

		artifacts := captureArtifacts
		if len(artifacts) == 0 {
			artifacts = domain.AllArtifacts
		}
		for _, kind := range artifacts {
			if !domain.ValidArtifact(kind) {
				return fmt.Errorf("unknown artifact kind %q", kind)
			}
		}

		// Same path as the queue handler: rate discipline applies and
		// the outcome feeds the learner.
		res, runErr := queue.CaptureOnce(ctx, a.learner, a.pipeline, log, capture.Request{
			URL:       rawURL,
			Artifacts: artifacts,
			Behaviors: captureBehaviors,
		})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	captureCmd.Flags().StringSliceVar(&captureArtifacts, "artifacts", nil,
		"artifact kinds to emit (screenshot, pdf, html, warc); default all")
	captureCmd.Flags().BoolVar(&captureBehaviors, "behaviors", true,
		"run content-expansion behaviors before capture")
	rootCmd.AddCommand(captureCmd)
}
