package detect

import (
	"context"

	"github.com/MacAttak/riskscan/pkg/catalogue"
	"github.com/MacAttak/riskscan/pkg/span"
)

// PatternDetector is the tier-2 detector: a regex catalogue with a
// per-pattern entity type and confidence, loaded from an external
// declarative file rather than hard-coded in source.
type PatternDetector struct {
	cat *catalogue.Catalogue
}

// NewPatternDetector builds a PatternDetector over the given catalogue.
func NewPatternDetector(cat *catalogue.Catalogue) *PatternDetector {
	return &PatternDetector{cat: cat}
}

func (d *PatternDetector) Name() string    { return "pattern" }
func (d *PatternDetector) Tier() span.Tier { return span.TierPattern }

func (d *PatternDetector) Detect(ctx context.Context, text string) ([]span.Span, error) {
	var spans []span.Span
	for _, p := range d.cat.Patterns() {
		select {
		case <-ctx.Done():
			return collapseSelfOverlaps(spans), ctx.Err()
		default:
		}
		matches := p.Regexp.FindAllStringSubmatchIndex(text, -1)
		for _, m := range matches {
			groupIdx := p.Group * 2
			if groupIdx+1 >= len(m) || m[groupIdx] < 0 {
				groupIdx = 0
			}
			start, end := m[groupIdx], m[groupIdx+1]
			if start < 0 || end <= start {
				continue
			}
			spans = append(spans, span.Span{
				EntityType:     p.EntityType,
				Start:          start,
				End:            end,
				Confidence:     p.Confidence,
				DetectorTier:   span.TierPattern,
				SourceDetector: d.Name(),
				RawValueHash:   valueHash(text[start:end]),
			})
		}
	}
	return collapseSelfOverlaps(spans), nil
}
