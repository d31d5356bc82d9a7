package scoring

import (
	"math"
	"sort"
	"strconv"

	"github.com/MacAttak/riskscan/pkg/registry"
)

// categoryWeight and categoryOf are the narrow registry surface Score
// needs: the entity's integer weight and its dot-separated category path.
// Taking an interface rather than *registry.Registry keeps this package a
// pure function of its inputs, independent of how the caller sourced the
// registry.
type categoryWeight interface {
	Weight(entityType string) int
	Category(entityType string) string
}

var _ categoryWeight = (*registry.Registry)(nil)

// rescanConfidenceDef is the default RESCAN_CONFIDENCE threshold,
// restated in the report document. BuildReport always reports this
// default, even when the trigger policy ran with a configured value.
const rescanConfidenceDef = 0.80

// exposureBase is the starting multiplier per exposure level before the
// independent adjustments in rule order.
var exposureBase = map[Exposure]float64{
	ExposurePrivate:     1.0,
	ExposureInternal:    1.2,
	ExposureOverExposed: 1.8,
	ExposurePublic:      2.5,
}

// coOccurrenceRule is one predicate-and-multiplier pair, evaluated in
// declared order; Score takes the maximum multiplier among rules that
// fire, never a sum.
type coOccurrenceRule struct {
	name string
	mult float64
	fire func(labels []LabelSummary, reg categoryWeight) bool
}

func hasCategoryPrefix(labels []LabelSummary, reg categoryWeight, prefix string) bool {
	for _, l := range labels {
		if hasPrefix(reg.Category(l.EntityType), prefix) {
			return true
		}
	}
	return false
}

func countDistinctCategoryPrefix(labels []LabelSummary, reg categoryWeight, prefix string) int {
	n := 0
	for _, l := range labels {
		if hasPrefix(reg.Category(l.EntityType), prefix) {
			n++
		}
	}
	return n
}

func hasPrefix(category, prefix string) bool {
	if len(category) < len(prefix) {
		return false
	}
	if category[:len(prefix)] != prefix {
		return false
	}
	return len(category) == len(prefix) || category[len(prefix)] == '.'
}

// coOccurrenceRules is the declared-order rule table. Order does not
// affect the multiplier, since Score takes the max firing multiplier
// rather than the first; it only sets the order in which fired rule
// names are reported.
var coOccurrenceRules = []coOccurrenceRule{
	{
		name: "hipaa_phi",
		mult: 2.0,
		fire: func(l []LabelSummary, r categoryWeight) bool {
			return hasCategoryPrefix(l, r, "direct_identifier") && hasCategoryPrefix(l, r, "health")
		},
	},
	{
		name: "identity_theft",
		mult: 1.8,
		fire: func(l []LabelSummary, r categoryWeight) bool {
			return hasCategoryPrefix(l, r, "direct_identifier") && hasCategoryPrefix(l, r, "financial")
		},
	},
	{
		name: "credential_exposure",
		mult: 2.0,
		fire: func(l []LabelSummary, r categoryWeight) bool {
			return hasCategoryPrefix(l, r, "credential") && hasCategoryPrefix(l, r, "pii")
		},
	},
	{
		name: "reidentification",
		mult: 1.5,
		fire: func(l []LabelSummary, r categoryWeight) bool {
			return countDistinctCategoryPrefix(l, r, "quasi_identifier") >= 3
		},
	},
	{
		name: "bulk_quasi_id",
		mult: 1.7,
		fire: func(l []LabelSummary, r categoryWeight) bool {
			return countDistinctCategoryPrefix(l, r, "quasi_identifier") >= 4
		},
	},
	{
		name: "classified",
		mult: 2.5,
		fire: func(l []LabelSummary, r categoryWeight) bool {
			return hasCategoryPrefix(l, r, "classification")
		},
	},
	{
		name: "biometric_pii",
		mult: 2.2,
		fire: func(l []LabelSummary, r categoryWeight) bool {
			return hasCategoryPrefix(l, r, "biometric") && hasCategoryPrefix(l, r, "direct_identifier")
		},
	},
	{
		name: "genetic",
		mult: 2.0,
		fire: func(l []LabelSummary, r categoryWeight) bool {
			return hasCategoryPrefix(l, r, "genetic")
		},
	},
}

// Score computes the complete, deterministic ScoringResult for a label
// set and its exposure context. Score is a pure function: no I/O, no
// hidden state, identical inputs always produce an identical result.
func Score(labels []LabelSummary, ctx ExposureContext, reg categoryWeight) ScoringResult {
	var trail []AuditEntry

	if len(labels) == 0 {
		return scoreEmpty(ctx, trail)
	}

	// Step 1-2: per-entity contribution, summed into content score.
	content := 0.0
	for _, l := range labels {
		count := l.Count
		if count < 1 {
			count = 1
		}
		weight := float64(reg.Weight(l.EntityType))
		contribution := weight * (1 + math.Log(float64(count))) * l.ConfidenceAvg
		content += contribution
		trail = append(trail, AuditEntry{
			Component:   "entity_contribution",
			Description: l.EntityType,
			Value:       contribution,
			Details: map[string]string{
				"weight":         formatFloat(weight),
				"count":          formatInt(count),
				"confidence_avg": formatFloat(l.ConfidenceAvg),
			},
		})
	}
	trail = append(trail, AuditEntry{Component: "content_score", Description: "sum of entity contributions", Value: content})

	// Step 3: co-occurrence multiplier - max among firing rules, default
	// 1.0. Every firing rule is recorded in declared order; only the
	// largest multiplier applies.
	coMult := 1.0
	var fired []string
	for _, rule := range coOccurrenceRules {
		if rule.fire(labels, reg) {
			fired = append(fired, rule.name)
			if rule.mult > coMult {
				coMult = rule.mult
			}
			trail = append(trail, AuditEntry{
				Component:   "co_occurrence",
				Description: rule.name,
				Value:       rule.mult,
			})
		}
	}
	contentPrime := content * coMult

	// Step 4: exposure multiplier, fixed-order independent adjustments.
	exposureMult := exposureBase[ctx.Exposure]
	trail = append(trail, AuditEntry{Component: "exposure_base", Description: string(ctx.Exposure), Value: exposureMult})
	if ctx.Encryption == EncryptionNone {
		exposureMult *= 1.3
		trail = append(trail, AuditEntry{Component: "exposure_adjust", Description: "encryption=none", Value: 1.3})
	}
	if !ctx.AccessLogging {
		exposureMult *= 1.1
		trail = append(trail, AuditEntry{Component: "exposure_adjust", Description: "access_logging=false", Value: 1.1})
	}
	if ctx.StalenessDays > 365 {
		exposureMult *= 1.2
		trail = append(trail, AuditEntry{Component: "exposure_adjust", Description: "staleness_days>365", Value: 1.2})
	}
	if ctx.CrossAccount {
		exposureMult *= 1.3
		trail = append(trail, AuditEntry{Component: "exposure_adjust", Description: "cross_account=true", Value: 1.3})
	}

	// Step 5: final clamp.
	raw := contentPrime * exposureMult
	score := int(math.Floor(raw))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	return ScoringResult{
		Score:             score,
		Tier:              tierForScore(score),
		ContentScore:      contentPrime,
		RawScore:          raw,
		CoOccurrenceRules: fired,
		CoOccurrenceMult:  coMult,
		ExposureMult:      exposureMult,
		AuditTrail:        trail,
		ComplianceHints:   complianceHints(labels, reg),
	}
}

// scoreEmpty handles the empty label set: an exposure-only base score,
// plus 5 when unencrypted.
func scoreEmpty(ctx ExposureContext, trail []AuditEntry) ScoringResult {
	base := 0
	switch ctx.Exposure {
	case ExposurePublic:
		base = 15
	case ExposureOverExposed:
		base = 10
	}
	trail = append(trail, AuditEntry{Component: "exposure_only_base", Description: string(ctx.Exposure), Value: float64(base)})
	if ctx.Encryption == EncryptionNone {
		base += 5
		trail = append(trail, AuditEntry{Component: "exposure_only_adjust", Description: "encryption=none", Value: 5})
	}
	if base > 100 {
		base = 100
	}
	return ScoringResult{
		Score:           base,
		Tier:            tierForScore(base),
		ContentScore:    0,
		RawScore:        float64(base),
		ExposureMult:    0,
		AuditTrail:      trail,
		ComplianceHints: nil,
	}
}

// complianceHints derives category-driven, provider-neutral regulatory
// hints: additive explainability, never feeding back into score math.
func complianceHints(labels []LabelSummary, reg categoryWeight) []ComplianceHint {
	var hints []ComplianceHint
	if hasCategoryPrefix(labels, reg, "direct_identifier") && hasCategoryPrefix(labels, reg, "health") {
		hints = append(hints, ComplianceHint{
			Regime:   "health_privacy",
			Reason:   "direct identifier co-occurring with health data",
			Severity: "high",
		})
	}
	if hasCategoryPrefix(labels, reg, "direct_identifier") && hasCategoryPrefix(labels, reg, "financial") {
		hints = append(hints, ComplianceHint{
			Regime:   "financial_privacy",
			Reason:   "direct identifier co-occurring with financial data",
			Severity: "high",
		})
	}
	if hasCategoryPrefix(labels, reg, "credential") {
		hints = append(hints, ComplianceHint{
			Regime:   "security_incident",
			Reason:   "credential material detected",
			Severity: "critical",
		})
	}
	if hasCategoryPrefix(labels, reg, "classification") {
		hints = append(hints, ComplianceHint{
			Regime:   "classified_information",
			Reason:   "classification marker detected",
			Severity: "critical",
		})
	}
	sort.Slice(hints, func(i, j int) bool { return hints[i].Regime < hints[j].Regime })
	return hints
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
func formatInt(i int) string       { return strconv.Itoa(i) }
