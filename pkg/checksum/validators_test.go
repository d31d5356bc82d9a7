package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditCardValidator(t *testing.T) {
	v := CreditCardValidator()
	valid, err := v.Validate("4532015112830366")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = v.Validate("4532015112830367")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestNPIValidator(t *testing.T) {
	v := &NPIValidator{}
	valid, err := v.Validate("1234567893")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, _ = v.Validate("1234567890")
	assert.False(t, valid)
}

func TestSSNValidator(t *testing.T) {
	v := &SSNValidator{}
	tests := []struct {
		ssn   string
		valid bool
	}{
		{"123-45-6789", true},
		{"000-45-6789", false}, // area 000 never issued
		{"666-45-6789", false}, // area 666 never issued
		{"900-45-6789", false}, // area >= 900 never issued
		{"123-00-6789", false}, // group 00 never issued
		{"123-45-0000", false}, // serial 0000 never issued
	}
	for _, tc := range tests {
		valid, err := v.Validate(tc.ssn)
		require.NoError(t, err)
		assert.Equal(t, tc.valid, valid, tc.ssn)
	}
}

func TestIBANValidator(t *testing.T) {
	v := &IBANValidator{}
	valid, err := v.Validate("GB29 NWBK 6016 1331 9268 19")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, _ = v.Validate("GB29 NWBK 6016 1331 9268 18")
	assert.False(t, valid)
}

func TestAadhaarValidator(t *testing.T) {
	v := &AadhaarValidator{}
	// Digit string with a valid Verhoeff checksum.
	valid, err := v.Validate("234123412346")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, _ = v.Validate("234123412347")
	assert.False(t, valid)
}

func TestAustralianValidators_RetainedBehavior(t *testing.T) {
	tfn := &TFNValidator{}
	valid, err := tfn.Validate("123456782")
	require.NoError(t, err)
	assert.True(t, valid)

	abn := &ABNValidator{}
	valid, err = abn.Validate("51824753556")
	require.NoError(t, err)
	assert.True(t, valid)

	bsb := &BSBValidator{}
	valid, err = bsb.Validate("032-001")
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestRegistry_GetAndAll(t *testing.T) {
	reg := NewRegistry()
	v, ok := reg.Get("SSN")
	require.True(t, ok)
	assert.Equal(t, "SSN", v.Type())
	assert.NotEmpty(t, reg.All())
}
