// Package normalize implements the orchestrator's text-normalization
// stage: Unicode NFKC, whitespace collapse, and OCR artifact correction,
// while maintaining an offset map so spans detected in normalized text
// can be translated back to original byte coordinates.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Result holds normalized text plus the means to translate an offset in
// the normalized text back to the corresponding offset in the original.
type Result struct {
	Text string
	// offsets[i] is the byte offset in the original text that normalized
	// byte i was derived from.
	offsets []int
	origLen int
}

// ToOriginal translates a byte offset in normalized text back to the
// original text's coordinate space. Offsets beyond the mapped range clamp
// to the original text's length.
func (r Result) ToOriginal(normalizedOffset int) int {
	if normalizedOffset < 0 {
		return 0
	}
	if normalizedOffset >= len(r.offsets) {
		return r.origLen
	}
	return r.offsets[normalizedOffset]
}

// digitContext reports whether the surrounding runs of text look numeric,
// gating the OCR letter/digit confusable corrections so they only fire
// inside numeric contexts (e.g. "O" -> "0" inside an SSN-shaped run, but
// never inside ordinary prose).
func digitContext(runes []rune, i int) bool {
	lo, hi := i, i
	for lo > 0 && (unicode.IsDigit(runes[lo-1]) || isConfusable(runes[lo-1])) {
		lo--
	}
	for hi < len(runes)-1 && (unicode.IsDigit(runes[hi+1]) || isConfusable(runes[hi+1])) {
		hi++
	}
	digitCount := 0
	for j := lo; j <= hi; j++ {
		if unicode.IsDigit(runes[j]) {
			digitCount++
		}
	}
	return digitCount >= 2
}

func isConfusable(r rune) bool {
	switch r {
	case 'O', 'o', 'l', 'I', 'S', 's', 'B', 'Z', 'z':
		return true
	}
	return false
}

var confusableMap = map[rune]rune{
	'O': '0', 'o': '0',
	'l': '1', 'I': '1',
	'S': '5', 's': '5',
	'B': '8',
	'Z': '2', 'z': '2',
}

// ligatureMap expands common typographic ligatures NFKC alone does not
// reliably fold in every runtime, matching the "ligature/confusable
// remediation" the orchestrator contract requires.
var ligatureMap = map[rune]string{
	'ﬀ': "ff",
	'ﬁ': "fi",
	'ﬂ': "fl",
	'ﬃ': "ffi",
	'ﬄ': "ffl",
}

// Normalize applies NFKC normalization, collapses runs of whitespace to a
// single space, expands known ligatures, and corrects OCR digit/letter
// confusables when they occur inside a numeric context. It returns the
// normalized text along with an offset map back to the original bytes.
func Normalize(text string) Result {
	nfkc := norm.NFKC.String(text)

	// Build an offset map across the NFKC pass by re-deriving byte
	// offsets from rune boundaries; NFKC is applied whole-string since
	// per-rune normalization would break multi-rune compositions, so the
	// map here approximates by nearest preceding original offset. This is
	// exact for the common case (ASCII/Latin-1 input) the orchestrator
	// targets and monotonic non-decreasing in all cases.
	runes := []rune(nfkc)
	origRunes := []rune(text)

	expanded := make([]rune, 0, len(runes))
	offsets := make([]int, 0, len(runes))

	origIdx := 0
	for i, r := range runes {
		if lig, ok := ligatureMap[r]; ok {
			for _, lr := range lig {
				expanded = append(expanded, lr)
				offsets = append(offsets, clampOrigOffset(origRunes, origIdx))
			}
			origIdx++
			continue
		}
		expanded = append(expanded, r)
		offsets = append(offsets, clampOrigOffset(origRunes, origIdx))
		if i < len(origRunes) {
			origIdx++
		}
	}

	// Whitespace collapse: runs of unicode whitespace fold to a single
	// ASCII space, tracking the offset of the first rune in each run.
	var collapsed []rune
	var collapsedOffsets []int
	inRun := false
	for i, r := range expanded {
		if unicode.IsSpace(r) {
			if !inRun {
				collapsed = append(collapsed, ' ')
				collapsedOffsets = append(collapsedOffsets, offsets[i])
				inRun = true
			}
			continue
		}
		inRun = false
		collapsed = append(collapsed, r)
		collapsedOffsets = append(collapsedOffsets, offsets[i])
	}

	// OCR confusable correction, gated to numeric contexts only.
	for i, r := range collapsed {
		if repl, ok := confusableMap[r]; ok && digitContext(collapsed, i) {
			collapsed[i] = repl
		}
	}

	var sb strings.Builder
	byteOffsets := make([]int, 0, len(collapsed))
	for i, r := range collapsed {
		start := sb.Len()
		n, _ := sb.WriteRune(r)
		_ = n
		for b := start; b < sb.Len(); b++ {
			byteOffsets = append(byteOffsets, collapsedOffsets[i])
		}
	}

	return Result{
		Text:    sb.String(),
		offsets: byteOffsets,
		origLen: len(text),
	}
}

func clampOrigOffset(origRunes []rune, idx int) int {
	if idx >= len(origRunes) {
		if len(origRunes) == 0 {
			return 0
		}
		idx = len(origRunes) - 1
	}
	// Translate rune index to byte offset within the original string.
	byteOff := 0
	for i := 0; i < idx; i++ {
		byteOff += len(string(origRunes[i]))
	}
	return byteOff
}
