package detect

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	gitleaksconfig "github.com/zricethezav/gitleaks/v8/config"
	gitleaksdetect "github.com/zricethezav/gitleaks/v8/detect"

	"github.com/MacAttak/riskscan/pkg/span"
)

// CredentialDetector wraps gitleaks' rule-matching engine to find
// credentials and secrets (cloud access keys, VCS tokens, private key
// material, generic high-entropy secrets). Gitleaks rules are themselves
// curated regex-plus-entropy validators, so matches are treated with
// tier-1 confidence rather than tier-2 — the rule author has already done
// the validation work a checksum would otherwise provide.
type CredentialDetector struct {
	detector *gitleaksdetect.Detector
}

// defaultGitleaksTOML extends gitleaks' full built-in ruleset (AWS, GCP,
// GitHub, private keys, and the rest of its curated credential
// catalogue) rather than replacing it.
const defaultGitleaksTOML = `
[extend]
useDefault = true
`

// NewCredentialDetector builds a CredentialDetector using gitleaks'
// built-in rule set, loaded through a temporary TOML file the same way
// the gitleaks CLI itself loads viper-backed configuration.
func NewCredentialDetector() (*CredentialDetector, error) {
	tmpFile, err := os.CreateTemp("", "riskscan-gitleaks-*.toml")
	if err != nil {
		return nil, fmt.Errorf("detect: create gitleaks config: %w", err)
	}
	defer os.Remove(tmpFile.Name())
	if _, err := tmpFile.WriteString(defaultGitleaksTOML); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("detect: write gitleaks config: %w", err)
	}
	tmpFile.Close()

	v := viper.New()
	v.SetConfigFile(tmpFile.Name())
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("detect: read gitleaks config: %w", err)
	}

	var vc gitleaksconfig.ViperConfig
	if err := v.Unmarshal(&vc); err != nil {
		return nil, fmt.Errorf("detect: unmarshal gitleaks config: %w", err)
	}
	cfg, err := vc.Translate()
	if err != nil {
		return nil, fmt.Errorf("detect: translate gitleaks config: %w", err)
	}

	d := gitleaksdetect.NewDetector(cfg)
	d.Verbose = false
	d.Redact = 0
	return &CredentialDetector{detector: d}, nil
}

func (d *CredentialDetector) Name() string    { return "credential" }
func (d *CredentialDetector) Tier() span.Tier { return span.TierChecksum }

func (d *CredentialDetector) Detect(ctx context.Context, text string) ([]span.Span, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	fragment := gitleaksdetect.Fragment{Raw: text}
	results := d.detector.Detect(fragment)

	var spans []span.Span
	for _, r := range results {
		entityType := mapRuleToEntityType(r.RuleID)
		match := r.Secret
		if match == "" {
			match = r.Match
		}
		start := strings.Index(text, match)
		if start < 0 {
			continue
		}
		end := start + len(match)
		spans = append(spans, span.Span{
			EntityType:     entityType,
			Start:          start,
			End:            end,
			Confidence:     0.9,
			DetectorTier:   span.TierChecksum,
			SourceDetector: d.Name(),
			RawValueHash:   valueHash(strings.TrimSpace(match)),
		})
	}
	return collapseSelfOverlaps(spans), nil
}

// mapRuleToEntityType maps gitleaks rule IDs to registry entity types,
// falling back to a generic GENERIC_SECRET type for unrecognized rules so
// no finding is silently dropped.
func mapRuleToEntityType(ruleID string) string {
	switch {
	case strings.Contains(ruleID, "aws") && strings.Contains(ruleID, "secret"):
		return "AWS_SECRET_KEY"
	case strings.Contains(ruleID, "aws"):
		return "AWS_ACCESS_KEY"
	case strings.Contains(ruleID, "gcp"):
		return "GCP_API_KEY"
	case strings.Contains(ruleID, "github"):
		return "GITHUB_TOKEN"
	case strings.Contains(ruleID, "private-key") || strings.Contains(ruleID, "privatekey"):
		return "PRIVATE_KEY"
	case strings.Contains(ruleID, "api-key") || strings.Contains(ruleID, "apikey"):
		return "API_KEY"
	default:
		return "GENERIC_SECRET"
	}
}
