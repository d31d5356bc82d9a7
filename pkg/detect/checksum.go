package detect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"github.com/MacAttak/riskscan/pkg/checksum"
	"github.com/MacAttak/riskscan/pkg/span"
)

// CandidateRule pairs a candidate regex with the checksum validator that
// confirms or rejects each raw match.
type CandidateRule struct {
	EntityType string
	Candidate  *regexp.Regexp
	Validator  checksum.Validator
	// Group selects which capture group carries the candidate value;
	// zero means the whole match.
	Group int
}

// defaultCandidateRules pairs each candidate shape with its validator,
// covering every entity type with a registered checksum algorithm.
func defaultCandidateRules(reg *checksum.Registry) []CandidateRule {
	mustValidator := func(t string) checksum.Validator {
		v, ok := reg.Get(t)
		if !ok {
			panic("detect: no checksum validator registered for " + t)
		}
		return v
	}
	return []CandidateRule{
		{EntityType: "CREDIT_CARD", Candidate: regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`), Validator: mustValidator("CREDIT_CARD")},
		{EntityType: "SSN", Candidate: regexp.MustCompile(`\b\d{3}[\s\-]?\d{2}[\s\-]?\d{4}\b`), Validator: mustValidator("SSN")},
		{EntityType: "IBAN", Candidate: regexp.MustCompile(`\b[A-Za-z]{2}\d{2}[A-Za-z0-9]{11,30}\b`), Validator: mustValidator("IBAN")},
		{EntityType: "NPI", Candidate: regexp.MustCompile(`\b\d{10}\b`), Validator: mustValidator("NPI")},
		{EntityType: "AADHAAR", Candidate: regexp.MustCompile(`\b\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`), Validator: mustValidator("AADHAAR")},
		{EntityType: "ABN", Candidate: regexp.MustCompile(`\b\d{2}[\s]?\d{3}[\s]?\d{3}[\s]?\d{3}\b`), Validator: mustValidator("ABN")},
		{EntityType: "MEDICARE", Candidate: regexp.MustCompile(`\b[2-6]\d{3}[\s\-]?\d{5}[\s\-]?\d{1}(?:/\d)?\b`), Validator: mustValidator("MEDICARE")},
		{EntityType: "TFN", Candidate: regexp.MustCompile(`\b\d{3}[\s\-]?\d{3}[\s\-]?\d{3}\b`), Validator: mustValidator("TFN")},
		{EntityType: "BSB", Candidate: regexp.MustCompile(`\b\d{3}[\-]?\d{3}\b`), Validator: mustValidator("BSB")},
		{EntityType: "ACN", Candidate: regexp.MustCompile(`(?i)(?:acn[:\s]*|company\s*acn[:\s]*)\s*["']?(\d{3}[\s]?\d{3}[\s]?\d{3})["']?`), Validator: mustValidator("ACN"), Group: 1},
	}
}

// CheckDetector is the tier-1 checksum detector: candidate regex,
// followed by checksum validation, minimum confidence 0.95.
type CheckDetector struct {
	rules []CandidateRule
}

// NewCheckDetector builds a CheckDetector over the full default checksum
// validator registry.
func NewCheckDetector() *CheckDetector {
	return &CheckDetector{rules: defaultCandidateRules(checksum.NewRegistry())}
}

func (d *CheckDetector) Name() string    { return "checksum" }
func (d *CheckDetector) Tier() span.Tier { return span.TierChecksum }

func (d *CheckDetector) Detect(ctx context.Context, text string) ([]span.Span, error) {
	var spans []span.Span
	for _, rule := range d.rules {
		select {
		case <-ctx.Done():
			return collapseSelfOverlaps(spans), ctx.Err()
		default:
		}
		matches := rule.Candidate.FindAllStringSubmatchIndex(text, -1)
		for _, m := range matches {
			gi := rule.Group * 2
			if gi+1 >= len(m) || m[gi] < 0 {
				gi = 0
			}
			start, end := m[gi], m[gi+1]
			raw := text[start:end]
			valid, err := rule.Validator.Validate(raw)
			if err != nil || !valid {
				continue
			}
			spans = append(spans, span.Span{
				EntityType:     rule.EntityType,
				Start:          start,
				End:            end,
				Confidence:     0.95,
				DetectorTier:   span.TierChecksum,
				SourceDetector: d.Name(),
				RawValueHash:   valueHash(rule.Validator.Normalize(raw)),
			})
		}
	}
	return collapseSelfOverlaps(spans), nil
}

// valueHash computes the first 6 hex chars of the SHA-256 of a
// normalized value, the same truncated hash labels carry on the wire.
func valueHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:6]
}
