package contextfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MacAttak/riskscan/pkg/span"
)

func TestClinicalContextFilter_SuppressesLineComment(t *testing.T) {
	text := "// example ssn: 123-45-6789 for docs\nreal code here"
	spans := []span.Span{{EntityType: "SSN", Start: 16, End: 27}}
	f := NewClinicalContextFilter()
	kept := f.Apply(text, spans)
	assert.Empty(t, kept)
}

func TestClinicalContextFilter_KeepsNonCommentSpan(t *testing.T) {
	text := "patient ssn: 123-45-6789 on file"
	spans := []span.Span{{EntityType: "SSN", Start: 13, End: 24}}
	f := NewClinicalContextFilter()
	kept := f.Apply(text, spans)
	assert.Len(t, kept, 1)
}

func TestTrackingNumberFilter_SuppressesValidFedExTracking(t *testing.T) {
	// A 12-digit run that passes the luhn-like checksum test.
	digits := "490123456789"
	text := "tracking " + digits
	spans := []span.Span{{EntityType: "SSN", Start: len("tracking "), End: len(text)}}
	f := NewTrackingNumberFilter()
	kept := f.Apply(text, spans)
	assert.Empty(t, kept)
}

func TestTrackingNumberFilter_KeepsNonTrackingSSN(t *testing.T) {
	text := "ssn 123-45-6789"
	spans := []span.Span{{EntityType: "SSN", Start: 4, End: 15}}
	f := NewTrackingNumberFilter()
	kept := f.Apply(text, spans)
	assert.Len(t, kept, 1)
}

func TestContextEnhancer_UpgradesMRNHotword(t *testing.T) {
	text := "MRN: 123456789012"
	spans := []span.Span{{EntityType: "NUMBER", Start: 5, End: 17}}
	e := NewContextEnhancer()
	out := e.Apply(text, spans)
	assert.Equal(t, "MRN", out[0].EntityType)
}

func TestContextEnhancer_LeavesUnrelatedTypeAlone(t *testing.T) {
	text := "MRN: some@email.com"
	spans := []span.Span{{EntityType: "EMAIL", Start: 5, End: 19}}
	e := NewContextEnhancer()
	out := e.Apply(text, spans)
	assert.Equal(t, "EMAIL", out[0].EntityType)
}
