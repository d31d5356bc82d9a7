package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MacAttak/riskscan/pkg/config"
	"github.com/MacAttak/riskscan/pkg/registry"
	"github.com/MacAttak/riskscan/pkg/scoring"
	"github.com/MacAttak/riskscan/pkg/trigger"
)

// scoreInput is the score subcommand's expected JSON shape: the label
// rollup "riskscan scan" produces, plus the exposure context a caller
// derives from pkg/cloudctx or its own knowledge of the target.
type scoreInput struct {
	Labels  []scoring.LabelSummary `json:"labels"`
	Context scoring.ExposureContext `json:"context"`
}

type scoreOutput struct {
	scoring.ScoringResult
	ShouldRescan bool              `json:"should_rescan"`
	Triggers     []trigger.Trigger `json:"triggers"`
	Report       *scoring.Report   `json:"report,omitempty"`
}

func newScoreCmd(configPath *string) *cobra.Command {
	var (
		inputPath   string
		contentPath string
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute a risk score and rescan decision from labels and an exposure context",
		Long: `score reads a JSON document with "labels" (a LabelSummary array, as
produced by "riskscan scan") and "context" (a NormalizedContext/
ExposureContext), then prints the deterministic risk score alongside the
scan trigger policy's rescan decision. Read from stdin by default, or
--input <file>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			raw, err := readInput(inputPath)
			if err != nil {
				return err
			}

			var in scoreInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return fmt.Errorf("parse input: %w", err)
			}

			reg := registry.Default()
			result := scoring.Score(in.Labels, in.Context, reg)

			policy := trigger.Policy{
				HighRiskWeight:   cfg.Trigger.HighRiskWeight,
				RescanConfidence: cfg.Trigger.RescanConfidence,
			}
			shouldRescan, triggers := policy.Evaluate(in.Labels, in.Context, reg)

			out := scoreOutput{
				ScoringResult: result,
				ShouldRescan:  shouldRescan,
				Triggers:      triggers,
			}

			if contentPath != "" {
				content, err := os.ReadFile(contentPath)
				if err != nil {
					return fmt.Errorf("read %s: %w", contentPath, err)
				}
				report := scoring.BuildReport(result, in.Labels, in.Context, content, nil, generatorID(), time.Now())
				out.Report = &report
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "path to a JSON file with {labels, context} (defaults to stdin)")
	cmd.Flags().StringVar(&contentPath, "content", "", "path to the scanned content; when set, the portable scoring-result document is attached with its content hash")

	return cmd
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}
