// Package contextfilter implements the orchestrator's clinical-context
// filter, tracking-number filter, and context-enhancement stages — the
// declarative negative- and positive-context rules that run after span
// merging. The two filters run before confidence normalization; context
// enhancement runs after it.
package contextfilter

import (
	"regexp"
	"strings"

	"github.com/MacAttak/riskscan/pkg/span"
)

// negativeContextRule suppresses a span when its surrounding text matches
// a pattern that is clearly not PHI/PII context: code comments, URL
// paths, source file headers. The rules are declarative data, not
// branching logic, so new suppression contexts are table additions.
type negativeContextRule struct {
	name    string
	pattern *regexp.Regexp
}

var negativeContextRules = []negativeContextRule{
	{name: "line_comment", pattern: regexp.MustCompile(`(?m)^\s*(//|#)`)},
	{name: "block_comment", pattern: regexp.MustCompile(`/\*[\s\S]*?\*/`)},
	{name: "url_path", pattern: regexp.MustCompile(`https?://\S+`)},
	{name: "license_header", pattern: regexp.MustCompile(`(?i)copyright|licensed under|spdx-license-identifier`)},
	{name: "import_statement", pattern: regexp.MustCompile(`(?m)^\s*(import|package|using|#include)\b`)},
}

// lineAround returns the full source line containing the span's start
// offset, used for comment/header rules that key on line-start anchors.
func lineAround(text string, s span.Span) string {
	start := strings.LastIndexByte(text[:s.Start], '\n') + 1
	end := strings.IndexByte(text[s.Start:], '\n')
	if end == -1 {
		return text[start:]
	}
	return text[start : s.Start+end]
}

// ClinicalContextFilter suppresses spans that appear only in clearly
// non-PHI/PII contexts.
type ClinicalContextFilter struct {
	rules []negativeContextRule
}

// NewClinicalContextFilter builds a filter over the default declarative
// rule set.
func NewClinicalContextFilter() *ClinicalContextFilter {
	return &ClinicalContextFilter{rules: negativeContextRules}
}

// Apply removes spans whose containing line matches a negative-context
// rule.
func (f *ClinicalContextFilter) Apply(text string, spans []span.Span) []span.Span {
	var kept []span.Span
	for _, s := range spans {
		line := lineAround(text, s)
		suppressed := false
		for _, rule := range f.rules {
			if rule.pattern.MatchString(line) {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, s)
		}
	}
	return kept
}

// --- Tracking-number filter ---

// trackingPattern pairs a carrier tracking-number shape with its own
// checksum so digit runs that collide with SSN/MRN length classes can be
// distinguished from genuine PII.
type trackingPattern struct {
	carrier string
	shape   *regexp.Regexp
	valid   func(digits string) bool
}

var trackingPatterns = []trackingPattern{
	{
		carrier: "UPS",
		shape:   regexp.MustCompile(`^1Z[0-9A-Z]{16}$`),
		valid: func(digits string) bool {
			// Letters are dropped and the Luhn-style mod-10 check runs
			// over the remaining digits, the leading "1" included.
			return upsChecksum(digits)
		},
	},
	{
		carrier: "USPS",
		shape:   regexp.MustCompile(`^\d{20,22}$`),
		valid:   func(digits string) bool { return luhnLike(digits) },
	},
	{
		carrier: "FedEx",
		shape:   regexp.MustCompile(`^\d{12}$`),
		valid:   func(digits string) bool { return luhnLike(digits) },
	},
}

func upsChecksum(raw string) bool {
	digitsOnly := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if len(digitsOnly) < 2 {
		return false
	}
	return luhnLike(digitsOnly)
}

func luhnLike(digits string) bool {
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}

// TrackingNumberFilter suppresses digit runs that match a carrier
// tracking-number pattern AND pass that carrier's checksum — such runs
// collide with SSN/MRN length classes but are not PII. A run that matches
// the shape but fails the checksum is kept, since it is then more likely
// to be the PII the shape accidentally resembles.
type TrackingNumberFilter struct {
	patterns []trackingPattern
}

// NewTrackingNumberFilter builds a filter over the default carrier set.
func NewTrackingNumberFilter() *TrackingNumberFilter {
	return &TrackingNumberFilter{patterns: trackingPatterns}
}

// Apply suppresses SSN/MRN-class spans whose raw value matches a carrier
// tracking pattern and passes that carrier's checksum.
func (f *TrackingNumberFilter) Apply(text string, spans []span.Span) []span.Span {
	var kept []span.Span
	for _, s := range spans {
		if s.EntityType != "SSN" && s.EntityType != "MRN" {
			kept = append(kept, s)
			continue
		}
		raw := text[s.Start:s.End]
		if f.isCarrierTracking(raw) {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

func (f *TrackingNumberFilter) isCarrierTracking(raw string) bool {
	compact := strings.ReplaceAll(raw, "-", "")
	compact = strings.ReplaceAll(compact, " ", "")
	for _, p := range f.patterns {
		if p.shape.MatchString(compact) && p.valid(compact) {
			return true
		}
	}
	return false
}

// --- Context enhancement ---

// hotword ties a nearby keyword to the entity-type upgrade it triggers
// when found within the proximity window of a generic numeric span.
type hotword struct {
	keyword    *regexp.Regexp
	upgradesTo string
}

const hotwordWindow = 16

var hotwords = []hotword{
	{keyword: regexp.MustCompile(`(?i)\bMRN\s*[:#]?`), upgradesTo: "MRN"},
	{keyword: regexp.MustCompile(`(?i)\bSSN\s*[:#]?`), upgradesTo: "SSN"},
	{keyword: regexp.MustCompile(`(?i)\bTFN\s*[:#]?`), upgradesTo: "TFN"},
	{keyword: regexp.MustCompile(`(?i)\bMedicare\s*[:#]?`), upgradesTo: "MEDICARE"},
	{keyword: regexp.MustCompile(`(?i)\bNPI\s*[:#]?`), upgradesTo: "NPI"},
}

// ContextEnhancer widens a generic NUMBER (or other low-specificity)
// entity type to a more specific subtype when the local neighborhood
// contains a disambiguating hotword within hotwordWindow characters
// before the span.
type ContextEnhancer struct {
	hotwords []hotword
}

// NewContextEnhancer builds an enhancer over the default hotword table.
func NewContextEnhancer() *ContextEnhancer {
	return &ContextEnhancer{hotwords: hotwords}
}

// Apply upgrades eligible spans in place, returning a new slice.
func (e *ContextEnhancer) Apply(text string, spans []span.Span) []span.Span {
	out := make([]span.Span, len(spans))
	copy(out, spans)
	for i, s := range out {
		if s.EntityType != "NUMBER" && s.EntityType != "SSN" {
			continue
		}
		start := s.Start - hotwordWindow
		if start < 0 {
			start = 0
		}
		preceding := text[start:s.Start]
		for _, h := range e.hotwords {
			if h.keyword.MatchString(preceding) {
				out[i].EntityType = h.upgradesTo
				break
			}
		}
	}
	return out
}
