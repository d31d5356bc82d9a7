package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// reportVersion is the scoring-result document's wire version. Readers
// must ignore fields they do not recognize; a version bump signals a
// breaking change to the fields listed here, not an additive one.
const reportVersion = "1.0"

// Report is the portable scoring-result JSON document: the one
// representation of a scoring outcome intended to leave the process and
// be consumed by other tooling (manifests, dashboards, remediation
// queues). Everything in it is derived from the ScoringResult, the label
// set, and the scanned content; nothing requires this module to read
// back.
type Report struct {
	Version       string        `json:"version"`
	Score         int           `json:"score"`
	Tier          string        `json:"tier"`
	ContentHash   string        `json:"content_hash"`
	ContentLength int           `json:"content_length"`
	Factors       ReportFactors `json:"factors"`
	Context       ReportContext `json:"context"`
	Scoring       ReportParams  `json:"scoring"`
	Provenance    Provenance    `json:"provenance"`
}

// ReportFactors carries the explainability inputs: which entities
// contributed, which co-occurrence rules fired, and the pre-clamp raw
// score.
type ReportFactors struct {
	Entities           []LabelSummary `json:"entities"`
	Exposure           string         `json:"exposure"`
	ExposureMultiplier float64        `json:"exposure_multiplier"`
	CoOccurrenceRules  []string       `json:"co_occurrence_rules"`
	RawScore           float64        `json:"raw_score"`
	Filtered           []string       `json:"filtered"`
}

// ReportContext is the exposure-context subset the document re-states so
// a reader can interpret the score without access to the original
// NormalizedContext.
type ReportContext struct {
	Encryption           string `json:"encryption"`
	Versioning           bool   `json:"versioning"`
	AccessLogging        bool   `json:"access_logging"`
	StalenessDays        int    `json:"staleness_days"`
	ClassificationSource string `json:"classification_source"`
}

// ReportParams records which algorithm revision and thresholds produced
// the score, so results from different builds are comparable.
type ReportParams struct {
	Algorithm           string  `json:"algorithm"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	Mode                string  `json:"mode"`
}

// Provenance names the generator build and the wall-clock instant the
// document was produced. GeneratedAt is supplied by the caller so report
// generation stays a pure function of its inputs.
type Provenance struct {
	Generator   string `json:"generator"`
	GeneratedAt int64  `json:"generated_at"`
}

// algorithmID names the section 4.2 scoring algorithm revision this
// build implements.
const algorithmID = "weighted-log-count/1"

// BuildReport assembles the portable scoring-result document from a
// ScoringResult, the labels and context it was computed over, and the
// scanned content. filtered lists entity types suppressed by the span
// pipeline's context filters, for reviewers auditing what did not make
// it into the score.
func BuildReport(result ScoringResult, labels []LabelSummary, ctx ExposureContext, content []byte, filtered []string, generator string, generatedAt time.Time) Report {
	sum := sha256.Sum256(content)

	if labels == nil {
		labels = []LabelSummary{}
	}
	if result.CoOccurrenceRules == nil {
		result.CoOccurrenceRules = []string{}
	}
	if filtered == nil {
		filtered = []string{}
	}

	return Report{
		Version:       reportVersion,
		Score:         result.Score,
		Tier:          string(result.Tier),
		ContentHash:   "sha256:" + hex.EncodeToString(sum[:]),
		ContentLength: len(content),
		Factors: ReportFactors{
			Entities:           labels,
			Exposure:           string(ctx.Exposure),
			ExposureMultiplier: result.ExposureMult,
			CoOccurrenceRules:  result.CoOccurrenceRules,
			RawScore:           result.RawScore,
			Filtered:           filtered,
		},
		Context: ReportContext{
			Encryption:           string(ctx.Encryption),
			Versioning:           ctx.Versioning,
			AccessLogging:        ctx.AccessLogging,
			StalenessDays:        ctx.StalenessDays,
			ClassificationSource: ctx.ClassificationSource,
		},
		Scoring: ReportParams{
			Algorithm:           algorithmID,
			ConfidenceThreshold: rescanConfidenceDef,
			Mode:                "strict",
		},
		Provenance: Provenance{
			Generator:   generator,
			GeneratedAt: generatedAt.Unix(),
		},
	}
}

// MarshalReport renders the document as compact JSON.
func MarshalReport(r Report) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("scoring: marshal report: %w", err)
	}
	return raw, nil
}
