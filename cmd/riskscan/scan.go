package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MacAttak/riskscan/pkg/config"
	"github.com/MacAttak/riskscan/pkg/discovery"
	"github.com/MacAttak/riskscan/pkg/orchestrator"
	"github.com/MacAttak/riskscan/pkg/scoring"
	"github.com/MacAttak/riskscan/pkg/span"
	"github.com/MacAttak/riskscan/pkg/wire"
)

// scanOutput is the scan subcommand's JSON result: the raw spans found
// plus the LabelSummary rollup pkg/scoring.Score consumes, so a caller
// can pipe this straight into `riskscan score`.
type scanOutput struct {
	Path     string                 `json:"path"`
	ScanID   string                 `json:"scan_id"`
	Degraded bool                   `json:"degraded"`
	Spans    []spanOutput           `json:"spans"`
	Labels   []scoring.LabelSummary `json:"labels"`
}

type spanOutput struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
	Tier       int     `json:"tier"`
	Detector   string  `json:"detector"`
}

func newScanCmd(configPath *string) *cobra.Command {
	var (
		structuredData bool
		writeSidecar   bool
	)

	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Run the detector orchestrator over a file or directory and summarize the labels found",
		Long: `scan runs the detector orchestrator over the file at <path> and prints
the resulting spans plus a per-entity-type LabelSummary rollup suitable
for "riskscan score". When <path> is a directory, every text file under
it (minus VCS internals, dependency trees, and riskscan's own sidecars)
is scanned, one JSON document per file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			orch, _ := buildOrchestrator(cfg)

			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if !info.IsDir() {
				return scanOne(cmd, orch, path, structuredData, writeSidecar)
			}

			walkCfg := discovery.DefaultWalkConfig()
			if cfg.Orchestrator.MaxTextBytes > 0 {
				walkCfg.MaxFileSize = int64(cfg.Orchestrator.MaxTextBytes)
			}
			return discovery.NewWalker(walkCfg).Walk(cmd.Context(), path, func(t discovery.Target) error {
				return scanOne(cmd, orch, t.Path, structuredData, writeSidecar)
			})
		},
	}

	cmd.Flags().BoolVar(&structuredData, "structured", false, "treat the input as structured (CSV/JSON) data for the header-aware extractor")
	cmd.Flags().BoolVar(&writeSidecar, "sidecar", false, "write a .openlabel.json sidecar alongside the scanned file")

	return cmd
}

// scanOne runs the orchestrator over a single file and writes its JSON
// result (and optional sidecar) out.
func scanOne(cmd *cobra.Command, orch *orchestrator.Orchestrator, path string, structuredData, writeSidecar bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	scanID := uuid.NewString()

	req := orchestrator.Request{
		Text:           string(content),
		StructuredData: structuredData,
		ScanID:         scanID,
	}
	result, err := orch.Detect(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("detect %s: %w", path, err)
	}

	out := scanOutput{
		Path:     path,
		ScanID:   scanID,
		Degraded: result.Degraded,
		Labels:   summarize(result.Spans),
	}
	for _, s := range result.Spans {
		out.Spans = append(out.Spans, spanOutput{
			EntityType: s.EntityType,
			Start:      s.Start,
			End:        s.End,
			Confidence: s.Confidence,
			Tier:       int(s.DetectorTier),
			Detector:   s.SourceDetector,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	if writeSidecar {
		sum := sha256.Sum256(content)
		set := labelSetFromSpans(out.Labels, scanID)
		set.File = &wire.FileRef{
			Name: filepath.Base(path),
			Size: int64(len(content)),
			Hash: "sha256:" + hex.EncodeToString(sum[:]),
		}
		raw, err := wire.WriteSidecar(set)
		if err != nil {
			return fmt.Errorf("write sidecar: %w", err)
		}
		sidecarPath := wire.SidecarName(path)
		if err := os.WriteFile(sidecarPath, raw, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", sidecarPath, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", sidecarPath)
	}

	return nil
}

// summarize rolls per-span detections up into one LabelSummary per entity
// type, the unit pkg/scoring.Score operates over.
func summarize(spans []span.Span) []scoring.LabelSummary {
	type acc struct {
		count   int
		confSum float64
	}
	byType := map[string]*acc{}
	var order []string
	for _, s := range spans {
		a, ok := byType[s.EntityType]
		if !ok {
			a = &acc{}
			byType[s.EntityType] = a
			order = append(order, s.EntityType)
		}
		a.count++
		a.confSum += s.Confidence
	}

	summaries := make([]scoring.LabelSummary, 0, len(order))
	for _, entityType := range order {
		a := byType[entityType]
		summaries = append(summaries, scoring.LabelSummary{
			EntityType:    entityType,
			Count:         a.count,
			ConfidenceAvg: a.confSum / float64(a.count),
		})
	}
	return summaries
}

func labelSetFromSpans(labels []scoring.LabelSummary, scanID string) wire.LabelSet {
	set := wire.LabelSet{
		Version:     1,
		Source:      "riskscan:" + scanID,
		GeneratedAt: time.Now().Unix(),
	}
	for _, l := range labels {
		set.Labels = append(set.Labels, wire.Label{
			Type:          l.EntityType,
			Count:         l.Count,
			ConfidenceAvg: l.ConfidenceAvg,
			DetectorKind:  "orchestrator",
		})
	}
	return set
}
