package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacAttak/riskscan/pkg/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, errs := registry.New([]byte(`
entities:
  - type: SSN
    category: direct_identifier.national_id
    weight: 10
    flags: [checksum_validatable, high_risk]
  - type: DIAGNOSIS
    category: health.clinical
    weight: 9
    flags: [high_risk]
  - type: EMAIL
    category: pii.contact
    weight: 3
    flags: []
  - type: PHONE
    category: pii.contact
    weight: 4
    flags: []
`))
	require.Empty(t, errs)
	return reg
}

func TestScore_EmptyLabels(t *testing.T) {
	reg := testRegistry(t)

	result := Score(nil, ExposureContext{Exposure: ExposurePublic, Encryption: EncryptionNone}, reg)
	assert.Equal(t, 20, result.Score)
	assert.Equal(t, RiskLevelLow, result.Tier)

	result = Score(nil, ExposureContext{Exposure: ExposurePrivate, Encryption: EncryptionPlatform}, reg)
	assert.Equal(t, 0, result.Score)
	assert.Equal(t, RiskLevelMinimal, result.Tier)
}

// SSN + DIAGNOSIS in a public, unencrypted bucket fires hipaa_phi and
// clamps to 100/CRITICAL.
func TestScore_HealthcarePublicBucket(t *testing.T) {
	reg := testRegistry(t)
	labels := []LabelSummary{
		{EntityType: "SSN", Count: 1, ConfidenceAvg: 0.99},
		{EntityType: "DIAGNOSIS", Count: 1, ConfidenceAvg: 0.8},
	}
	ctx := ExposureContext{Exposure: ExposurePublic, Encryption: EncryptionNone, StalenessDays: 0}

	result := Score(labels, ctx, reg)
	assert.Contains(t, result.CoOccurrenceRules, "hipaa_phi")
	assert.Equal(t, 2.0, result.CoOccurrenceMult)
	assert.Equal(t, 100, result.Score)
	assert.Equal(t, RiskLevelCritical, result.Tier)
}

// Many low-weight contact-detail labels in a private, encrypted store
// land in MEDIUM with no co-occurrence rule firing.
func TestScore_PrivateEncryptedContactList(t *testing.T) {
	reg := testRegistry(t)
	labels := []LabelSummary{
		{EntityType: "EMAIL", Count: 156, ConfidenceAvg: 0.9},
		{EntityType: "PHONE", Count: 89, ConfidenceAvg: 0.85},
	}
	ctx := ExposureContext{Exposure: ExposurePrivate, Encryption: EncryptionPlatform, AccessLogging: true, StalenessDays: 30}

	result := Score(labels, ctx, reg)
	assert.Empty(t, result.CoOccurrenceRules)
	assert.GreaterOrEqual(t, result.Score, 30)
	assert.LessOrEqual(t, result.Score, 55)
	assert.Equal(t, RiskLevelMedium, result.Tier)
}

func TestScore_Bounded(t *testing.T) {
	reg := testRegistry(t)
	labels := []LabelSummary{{EntityType: "SSN", Count: 1000, ConfidenceAvg: 1.0}}
	ctx := ExposureContext{Exposure: ExposurePublic, Encryption: EncryptionNone, CrossAccount: true, StalenessDays: 9999}

	result := Score(labels, ctx, reg)
	assert.LessOrEqual(t, result.Score, 100)
	assert.GreaterOrEqual(t, result.Score, 0)
}

// Higher exposure / worse encryption never lowers the score for a
// fixed label set.
func TestScore_Monotonicity(t *testing.T) {
	reg := testRegistry(t)
	labels := []LabelSummary{{EntityType: "SSN", Count: 2, ConfidenceAvg: 0.9}}

	private := Score(labels, ExposureContext{Exposure: ExposurePrivate, Encryption: EncryptionCustomerManaged, AccessLogging: true}, reg)
	public := Score(labels, ExposureContext{Exposure: ExposurePublic, Encryption: EncryptionNone, AccessLogging: true}, reg)
	assert.LessOrEqual(t, private.Score, public.Score)
}

// Adding a label never decreases the score.
func TestScore_AddingLabelDominates(t *testing.T) {
	reg := testRegistry(t)
	ctx := ExposureContext{Exposure: ExposureInternal, Encryption: EncryptionPlatform, AccessLogging: true}

	base := []LabelSummary{{EntityType: "EMAIL", Count: 1, ConfidenceAvg: 0.8}}
	extra := append(append([]LabelSummary{}, base...), LabelSummary{EntityType: "SSN", Count: 1, ConfidenceAvg: 0.9})

	baseResult := Score(base, ctx, reg)
	extraResult := Score(extra, ctx, reg)
	assert.LessOrEqual(t, baseResult.Score, extraResult.Score)
}

func TestScore_Determinism(t *testing.T) {
	reg := testRegistry(t)
	labels := []LabelSummary{{EntityType: "SSN", Count: 3, ConfidenceAvg: 0.95}}
	ctx := ExposureContext{Exposure: ExposureOverExposed, Encryption: EncryptionPlatform, StalenessDays: 400}

	first := Score(labels, ctx, reg)
	second := Score(labels, ctx, reg)
	assert.Equal(t, first, second)
}

func TestTierForScore_Thresholds(t *testing.T) {
	cases := []struct {
		score int
		tier  RiskLevel
	}{
		{100, RiskLevelCritical}, {86, RiskLevelCritical},
		{85, RiskLevelHigh}, {61, RiskLevelHigh},
		{60, RiskLevelMedium}, {31, RiskLevelMedium},
		{30, RiskLevelLow}, {11, RiskLevelLow},
		{10, RiskLevelMinimal}, {0, RiskLevelMinimal},
	}
	for _, c := range cases {
		assert.Equal(t, c.tier, tierForScore(c.score), "score=%d", c.score)
	}
}
