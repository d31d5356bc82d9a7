// Package trigger implements the scan trigger policy: a pure function
// deciding whether existing labels and exposure context are sufficient
// to skip a rescan, or whether a forcing condition requires the detector
// orchestrator to be invoked again.
package trigger

import (
	"sort"

	"github.com/MacAttak/riskscan/pkg/scoring"
)

// Trigger is one forcing condition that requires a rescan.
type Trigger string

const (
	NoLabels              Trigger = "NO_LABELS"
	PublicAccess          Trigger = "PUBLIC_ACCESS"
	OverExposed           Trigger = "OVER_EXPOSED"
	NoEncryption          Trigger = "NO_ENCRYPTION"
	StaleData             Trigger = "STALE_DATA"
	LowConfidenceHighRisk Trigger = "LOW_CONFIDENCE_HIGH_RISK"
)

// Policy holds the rescan tunables HIGH_RISK_WEIGHT and
// RESCAN_CONFIDENCE. Zero values select the defaults (8 and 0.80).
type Policy struct {
	HighRiskWeight   int
	RescanConfidence float64
}

func (p Policy) withDefaults() Policy {
	if p.HighRiskWeight <= 0 {
		p.HighRiskWeight = 8
	}
	if p.RescanConfidence <= 0 {
		p.RescanConfidence = 0.80
	}
	return p
}

// weigher is the narrow registry surface Evaluate needs: each label's
// entity weight, to compare against HIGH_RISK_WEIGHT.
type weigher interface {
	Weight(entityType string) int
}

// Evaluate maps existing labels and their exposure context to a rescan
// decision. Any fired trigger forces a rescan; the bool is true iff the
// trigger list is non-empty.
func (p Policy) Evaluate(labels []scoring.LabelSummary, ctx scoring.ExposureContext, reg weigher) (bool, []Trigger) {
	p = p.withDefaults()
	var fired []Trigger

	if len(labels) == 0 || !ctx.HasClassification {
		fired = append(fired, NoLabels)
	}
	if ctx.Exposure == scoring.ExposurePublic {
		fired = append(fired, PublicAccess)
	}
	if ctx.Exposure == scoring.ExposureOverExposed {
		fired = append(fired, OverExposed)
	}
	if ctx.Encryption == scoring.EncryptionNone {
		fired = append(fired, NoEncryption)
	}
	if ctx.StalenessDays > 365 {
		fired = append(fired, StaleData)
	}
	for _, l := range labels {
		if reg.Weight(l.EntityType) >= p.HighRiskWeight && l.ConfidenceAvg < p.RescanConfidence {
			fired = append(fired, LowConfidenceHighRisk)
			break
		}
	}

	sort.Slice(fired, func(i, j int) bool { return fired[i] < fired[j] })
	return len(fired) > 0, fired
}
