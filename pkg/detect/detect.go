// Package detect implements the four detector kinds the orchestrator
// fans out to: checksum detectors, pattern detectors, structured-field
// detectors, and the optional ML tagger. Each detector is a pure function
// of normalized text to spans; detectors never perform I/O and never
// emit overlapping spans of their own entity type.
package detect

import (
	"context"

	"github.com/MacAttak/riskscan/pkg/span"
)

// Detector is the common contract every detector kind satisfies.
// Detect must be deterministic for a given input, must report byte
// offsets into the text it was handed (the orchestrator is responsible
// for translating normalized offsets back to original coordinates), and
// must collapse any overlapping spans of the same entity type it itself
// produced before returning.
type Detector interface {
	// Name identifies the detector for logging and event metadata.
	Name() string
	// Tier is this detector's reliability class, used by the span merger.
	Tier() span.Tier
	// Detect runs against text and returns spans. ctx carries the
	// orchestrator's per-detector deadline; detectors performing
	// potentially-unbounded work (regex backtracking) must check ctx
	// between work units so cooperative cancellation can return control
	// promptly.
	Detect(ctx context.Context, text string) ([]span.Span, error)
}

// collapseSelfOverlaps removes overlapping spans a detector itself
// produced for the same entity type, satisfying each detector kind's
// stand-alone non-overlap contract independent of the orchestrator's
// cross-detector merge stage.
func collapseSelfOverlaps(spans []span.Span) []span.Span {
	return span.Merge(spans)
}
