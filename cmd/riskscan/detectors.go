package main

import (
	"github.com/rs/zerolog/log"

	"github.com/MacAttak/riskscan/pkg/catalogue"
	"github.com/MacAttak/riskscan/pkg/config"
	"github.com/MacAttak/riskscan/pkg/detect"
	"github.com/MacAttak/riskscan/pkg/orchestrator"
	"github.com/MacAttak/riskscan/pkg/registry"
)

// buildOrchestrator assembles the detector set and an Orchestrator per
// cfg. Detectors that fail to construct (the credential detector needs a
// parseable gitleaks ruleset) are logged and skipped rather than failing
// the whole command, matching the orchestrator's own degrade-don't-crash
// stance on a single misbehaving detector.
func buildOrchestrator(cfg *config.Config) (*orchestrator.Orchestrator, *registry.Registry) {
	reg := registry.Default()
	cat := catalogue.Default()

	detectors := []detect.Detector{
		detect.NewCheckDetector(),
		detect.NewPatternDetector(cat),
	}

	if credDetector, err := detect.NewCredentialDetector(); err != nil {
		log.Warn().Err(err).Msg("riskscan: credential detector unavailable, continuing without it")
	} else {
		detectors = append(detectors, credDetector)
	}

	if cfg.ML.Enabled {
		detectors = append(detectors, detect.NewMLDetector(detect.MLConfig{
			ModelPath:     cfg.ML.ModelPath,
			TokenizerPath: cfg.ML.TokenizerPath,
			MaxTokens:     cfg.ML.MaxTokens,
			MinConfidence: cfg.ML.MinConfidence,
			Labels:        cfg.ML.Labels,
		}))
	}

	orchCfg := orchestrator.Config{
		MaxConcurrentDetections: cfg.Orchestrator.MaxConcurrentDetections,
		MaxTextBytes:            int64(cfg.Orchestrator.MaxTextBytes),
		PerDetectorTimeout:      cfg.Orchestrator.PerDetectorTimeout,
	}

	orch := orchestrator.New(orchCfg, detectors, detect.NewStructuredDetector(), nil)
	return orch, reg
}
