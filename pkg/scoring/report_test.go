package scoring

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReport(t *testing.T) {
	reg := testRegistry(t)
	labels := []LabelSummary{
		{EntityType: "SSN", Count: 1, ConfidenceAvg: 0.99},
		{EntityType: "DIAGNOSIS", Count: 2, ConfidenceAvg: 0.8},
	}
	ctx := ExposureContext{
		Exposure:             ExposurePublic,
		Encryption:           EncryptionNone,
		StalenessDays:        12,
		ClassificationSource: "riskscan",
	}
	result := Score(labels, ctx, reg)
	content := []byte("SSN: 123-45-6789\nDiagnosis: diabetes\n")

	report := BuildReport(result, labels, ctx, content, []string{"TRACKING_NUMBER"}, "riskscan/1.0.0", time.Unix(1706140800, 0))

	assert.Equal(t, "1.0", report.Version)
	assert.Equal(t, result.Score, report.Score)
	assert.Equal(t, string(result.Tier), report.Tier)
	assert.True(t, strings.HasPrefix(report.ContentHash, "sha256:"))
	assert.Len(t, report.ContentHash, len("sha256:")+64)
	assert.Equal(t, len(content), report.ContentLength)
	assert.Equal(t, "PUBLIC", report.Factors.Exposure)
	assert.Contains(t, report.Factors.CoOccurrenceRules, "hipaa_phi")
	assert.Equal(t, []string{"TRACKING_NUMBER"}, report.Factors.Filtered)
	assert.Equal(t, "none", report.Context.Encryption)
	assert.Equal(t, 12, report.Context.StalenessDays)
	assert.Equal(t, "riskscan/1.0.0", report.Provenance.Generator)
	assert.Equal(t, int64(1706140800), report.Provenance.GeneratedAt)
}

// Report generation is part of the determinism surface: identical inputs
// must yield byte-identical documents.
func TestBuildReport_Deterministic(t *testing.T) {
	reg := testRegistry(t)
	labels := []LabelSummary{{EntityType: "EMAIL", Count: 3, ConfidenceAvg: 0.7}}
	ctx := ExposureContext{Exposure: ExposureInternal, Encryption: EncryptionPlatform}
	content := []byte("a@example.com b@example.com c@example.com")
	at := time.Unix(1706000000, 0)

	result := Score(labels, ctx, reg)
	first, err := MarshalReport(BuildReport(result, labels, ctx, content, nil, "riskscan/1.0.0", at))
	require.NoError(t, err)
	second, err := MarshalReport(BuildReport(result, labels, ctx, content, nil, "riskscan/1.0.0", at))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// Empty slices serialize as [], not null, so readers that iterate the
// factor arrays never need a nil guard.
func TestBuildReport_EmptyCollections(t *testing.T) {
	ctx := ExposureContext{Exposure: ExposurePrivate, Encryption: EncryptionCustomerManaged}
	report := BuildReport(ScoringResult{Tier: RiskLevelMinimal}, nil, ctx, nil, nil, "riskscan/1.0.0", time.Unix(0, 0))

	raw, err := MarshalReport(report)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	var factors struct {
		Entities          []LabelSummary `json:"entities"`
		CoOccurrenceRules []string       `json:"co_occurrence_rules"`
		Filtered          []string       `json:"filtered"`
	}
	require.NoError(t, json.Unmarshal(decoded["factors"], &factors))
	assert.NotNil(t, factors.Entities)
	assert.NotNil(t, factors.CoOccurrenceRules)
	assert.NotNil(t, factors.Filtered)
}
