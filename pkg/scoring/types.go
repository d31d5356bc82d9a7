// Package scoring computes a deterministic risk score from a set of
// detected labels and an exposure context, following the co-occurrence
// and exposure-multiplier rules the platform's compliance reviewers rely
// on when triaging scan results.
package scoring

import "time"

// RiskLevel is the risk severity tier a score maps to.
type RiskLevel string

const (
	RiskLevelCritical RiskLevel = "CRITICAL"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMinimal  RiskLevel = "MINIMAL"
)

// Encryption describes an object's at-rest encryption state.
type Encryption string

const (
	EncryptionNone            Encryption = "none"
	EncryptionPlatform        Encryption = "platform"
	EncryptionCustomerManaged Encryption = "customer_managed"
)

// Exposure describes how broadly an object is reachable.
type Exposure string

const (
	ExposurePrivate     Exposure = "PRIVATE"
	ExposureInternal    Exposure = "INTERNAL"
	ExposureOverExposed Exposure = "OVER_EXPOSED"
	ExposurePublic      Exposure = "PUBLIC"
)

// LabelSummary aggregates one entity type's detections within a scanned
// object: how many detections (spans) were found and their average
// confidence, the two quantities the contribution formula needs.
type LabelSummary struct {
	EntityType    string  `json:"entity_type"`
	Count         int     `json:"count"`
	ConfidenceAvg float64 `json:"confidence_avg"`
}

// ExposureContext carries the exposure-side inputs the scorer and the
// scan-trigger policy both depend on. All fields are required at
// scoring time; the zero value of a bool or int
// field is explicit policy (e.g. AccessLogging=false), never an implicit
// default standing in for "unknown."
type ExposureContext struct {
	Exposure             Exposure   `json:"exposure"`
	Encryption           Encryption `json:"encryption"`
	AccessLogging        bool       `json:"access_logging"`
	Versioning           bool       `json:"versioning"`
	StalenessDays        int        `json:"staleness_days"`
	CrossAccount         bool       `json:"cross_account"`
	HasClassification    bool       `json:"has_classification"`
	ClassificationSource string     `json:"classification_source"`
}

// AuditEntry is one line of the explainability trail attached to a
// ScoringResult, so a reviewer can see exactly which rule contributed
// which multiplier without re-deriving the math by hand.
type AuditEntry struct {
	Component   string            `json:"component"`
	Description string            `json:"description"`
	Value       float64           `json:"value"`
	Details     map[string]string `json:"details,omitempty"`
}

// ComplianceHint is a non-binding pointer to a regulatory regime the
// detected label mix plausibly implicates, generalized from a single
// jurisdiction's banking rules to the categories the entity registry
// exposes.
type ComplianceHint struct {
	Regime   string `json:"regime"`
	Reason   string `json:"reason"`
	Severity string `json:"severity"`
}

// ScoringResult is the complete output of Score: the final 0-100 score,
// its tier, and the audit trail and compliance hints a caller can surface
// to a reviewer.
type ScoringResult struct {
	Score             int              `json:"score"`
	Tier              RiskLevel        `json:"tier"`
	ContentScore      float64          `json:"content_score"`
	RawScore          float64          `json:"raw_score"`
	CoOccurrenceRules []string         `json:"co_occurrence_rules,omitempty"`
	CoOccurrenceMult  float64          `json:"co_occurrence_multiplier"`
	ExposureMult      float64          `json:"exposure_multiplier"`
	AuditTrail        []AuditEntry     `json:"audit_trail"`
	ComplianceHints   []ComplianceHint `json:"compliance_hints"`
	ScoredAt          time.Time        `json:"scored_at"`
}

// tierForScore maps a final 0-100 score to its severity tier per the
// fixed threshold table.
func tierForScore(score int) RiskLevel {
	switch {
	case score >= 86:
		return RiskLevelCritical
	case score >= 61:
		return RiskLevelHigh
	case score >= 31:
		return RiskLevelMedium
	case score >= 11:
		return RiskLevelLow
	default:
		return RiskLevelMinimal
	}
}
