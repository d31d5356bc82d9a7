package catalogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_LoadsEmbeddedPatterns(t *testing.T) {
	cat := Default()
	require.Greater(t, cat.Len(), 0)
	foundEmail := false
	for _, p := range cat.Patterns() {
		if p.EntityType == "EMAIL" {
			foundEmail = true
			assert.True(t, p.Confidence >= 0.55 && p.Confidence <= 0.9)
		}
	}
	assert.True(t, foundEmail)
}

func TestLoad_SkipsInvalidRegexAndOutOfRangeConfidence(t *testing.T) {
	raw := []byte(`
patterns:
  test:
    sub:
      - regex: "(unterminated"
        type: "FOO"
        confidence: 0.6
      - regex: "valid"
        type: "BAR"
        confidence: 1.5
      - regex: "ok"
        type: "BAZ"
        confidence: 0.7
`)
	cat, warnings := Load(raw)
	assert.Len(t, warnings, 2)
	require.Len(t, cat.Patterns(), 1)
	assert.Equal(t, "BAZ", cat.Patterns()[0].EntityType)
}

func TestLoad_IgnoreCaseFlag(t *testing.T) {
	raw := []byte(`
patterns:
  test:
    sub:
      - regex: "diagnosis"
        type: "DIAGNOSIS"
        confidence: 0.8
        flags: "IGNORECASE"
`)
	cat, warnings := Load(raw)
	require.Empty(t, warnings)
	require.Len(t, cat.Patterns(), 1)
	assert.True(t, cat.Patterns()[0].Regexp.MatchString("DIAGNOSIS: foo"))
}
