// Package span defines the Span type — a single raw detection produced by
// a detector — and the merge algorithm that resolves overlapping spans of
// the same entity type down to one winner per the orchestrator's span
// merger stage.
package span

import "sort"

// Tier is the detector reliability class. Lower numeric tiers win ties
// during merge.
type Tier int

const (
	TierChecksum   Tier = 1
	TierPattern    Tier = 2
	TierML         Tier = 3
	TierDictionary Tier = 4
)

// Span is a single detection: a byte-offset range into normalized text,
// tagged with an entity type, confidence, and provenance.
//
// Invariant: 0 <= Start < End <= len(text).
type Span struct {
	EntityType     string
	Start          int
	End            int
	Confidence     float64
	DetectorTier   Tier
	SourceDetector string
	RawValueHash   string
}

// Len returns the span's byte length.
func (s Span) Len() int { return s.End - s.Start }

func (s Span) overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Sort orders spans by (start, entity_type, detector_tier), the stable
// ordering the orchestrator guarantees for a given input and detector set.
func Sort(spans []Span) {
	sort.SliceStable(spans, func(i, j int) bool {
		a, b := spans[i], spans[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.EntityType != b.EntityType {
			return a.EntityType < b.EntityType
		}
		return a.DetectorTier < b.DetectorTier
	})
}

// Merge resolves overlapping spans of the same entity type down to a
// single winner per span, following the orchestrator's deterministic
// tie-break chain: lower detector_tier wins; then higher confidence; then
// earlier start; then longer length. Exact duplicates collapse to one.
// Spans of differing entity types never compete against each other, even
// when their ranges overlap — only same-type overlaps are resolved here.
func Merge(spans []Span) []Span {
	byType := make(map[string][]Span)
	for _, s := range spans {
		byType[s.EntityType] = append(byType[s.EntityType], s)
	}

	var merged []Span
	for _, group := range byType {
		merged = append(merged, mergeSameType(group)...)
	}
	Sort(merged)
	return merged
}

func mergeSameType(spans []Span) []Span {
	order := append([]Span(nil), spans...)
	sort.SliceStable(order, func(i, j int) bool { return winsOver(order[i], order[j]) })

	var kept []Span
	for _, s := range order {
		collided := false
		for i, k := range kept {
			if s.overlaps(k) {
				collided = true
				if winsOver(s, k) {
					kept[i] = s
				}
				break
			}
		}
		if !collided {
			kept = append(kept, s)
		}
	}
	return kept
}

// winsOver reports whether a wins the merge tie-break against b, applying
// the fixed chain: lower tier, then higher confidence, then earlier start,
// then longer length.
func winsOver(a, b Span) bool {
	if a.DetectorTier != b.DetectorTier {
		return a.DetectorTier < b.DetectorTier
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.Len() > b.Len()
}

// NonOverlapping reports whether spans contains no two spans of the
// same entity type whose byte ranges overlap.
func NonOverlapping(spans []Span) bool {
	byType := make(map[string][]Span)
	for _, s := range spans {
		byType[s.EntityType] = append(byType[s.EntityType], s)
	}
	for _, group := range byType {
		sort.Slice(group, func(i, j int) bool { return group[i].Start < group[j].Start })
		for i := 1; i < len(group); i++ {
			if group[i].Start < group[i-1].End {
				return false
			}
		}
	}
	return true
}
