package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_WhitespaceCollapse(t *testing.T) {
	r := Normalize("hello    world\t\tfoo")
	assert.Equal(t, "hello world foo", r.Text)
}

func TestNormalize_Ligature(t *testing.T) {
	r := Normalize("oﬃce")
	assert.Equal(t, "office", r.Text)
}

func TestNormalize_OCRDigitConfusableOnlyInNumericContext(t *testing.T) {
	r := Normalize("SSN: 123-45-678O")
	assert.Contains(t, r.Text, "6780")

	r2 := Normalize("Once upon a time")
	assert.Equal(t, "Once upon a time", r2.Text)
}

func TestNormalize_OffsetMapMonotonic(t *testing.T) {
	r := Normalize("abc   def")
	prev := -1
	for i := 0; i < len(r.Text); i++ {
		off := r.ToOriginal(i)
		assert.GreaterOrEqual(t, off, prev)
		prev = off
	}
}

func TestNormalize_OffsetBeyondRangeClampsToOriginalLength(t *testing.T) {
	r := Normalize("abc")
	assert.Equal(t, len("abc"), r.ToOriginal(1000))
}
