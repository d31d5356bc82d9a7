package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacAttak/riskscan/pkg/registry"
	"github.com/MacAttak/riskscan/pkg/scoring"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, errs := registry.New([]byte(`
entities:
  - type: SSN
    category: direct_identifier.national_id
    weight: 10
    flags: [checksum_validatable, high_risk]
  - type: EMAIL
    category: pii.contact
    weight: 3
    flags: []
`))
	require.Empty(t, errs)
	return reg
}

// An empty label set in a public, unencrypted bucket must fire exactly
// {NO_LABELS, PUBLIC_ACCESS, NO_ENCRYPTION}.
func TestEvaluate_NoLabelsPublicBucket(t *testing.T) {
	reg := testRegistry(t)
	ctx := scoring.ExposureContext{Exposure: scoring.ExposurePublic, Encryption: scoring.EncryptionNone}

	shouldScan, triggers := Policy{}.Evaluate(nil, ctx, reg)
	assert.True(t, shouldScan)
	assert.ElementsMatch(t, []Trigger{NoLabels, PublicAccess, NoEncryption}, triggers)
}

func TestEvaluate_NoTriggersWhenSatisfied(t *testing.T) {
	reg := testRegistry(t)
	labels := []scoring.LabelSummary{{EntityType: "EMAIL", Count: 1, ConfidenceAvg: 0.9}}
	ctx := scoring.ExposureContext{
		Exposure:          scoring.ExposurePrivate,
		Encryption:        scoring.EncryptionCustomerManaged,
		AccessLogging:     true,
		StalenessDays:     10,
		HasClassification: true,
	}

	shouldScan, triggers := Policy{}.Evaluate(labels, ctx, reg)
	assert.False(t, shouldScan)
	assert.Empty(t, triggers)
}

func TestEvaluate_LowConfidenceHighRisk(t *testing.T) {
	reg := testRegistry(t)
	labels := []scoring.LabelSummary{{EntityType: "SSN", Count: 1, ConfidenceAvg: 0.5}}
	ctx := scoring.ExposureContext{
		Exposure:          scoring.ExposurePrivate,
		Encryption:        scoring.EncryptionCustomerManaged,
		AccessLogging:     true,
		HasClassification: true,
	}

	shouldScan, triggers := Policy{}.Evaluate(labels, ctx, reg)
	assert.True(t, shouldScan)
	assert.Equal(t, []Trigger{LowConfidenceHighRisk}, triggers)
}

func TestEvaluate_CustomThresholds(t *testing.T) {
	reg := testRegistry(t)
	labels := []scoring.LabelSummary{{EntityType: "EMAIL", Count: 1, ConfidenceAvg: 0.7}}
	ctx := scoring.ExposureContext{
		Exposure:          scoring.ExposurePrivate,
		Encryption:        scoring.EncryptionCustomerManaged,
		AccessLogging:     true,
		HasClassification: true,
	}

	// Default HighRiskWeight=8 doesn't flag a weight-3 entity.
	_, triggers := Policy{}.Evaluate(labels, ctx, reg)
	assert.NotContains(t, triggers, LowConfidenceHighRisk)

	// Lowering HighRiskWeight to 3 brings EMAIL into scope.
	_, triggers = Policy{HighRiskWeight: 3, RescanConfidence: 0.8}.Evaluate(labels, ctx, reg)
	assert.Contains(t, triggers, LowConfidenceHighRisk)
}
