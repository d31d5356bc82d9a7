// Package registry implements the static entity-type catalogue: weights,
// category hierarchy, and validation flags, loaded once at process init
// from a declarative configuration document.
package registry

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed entities.yaml
var defaultCatalogue []byte

// Entry describes one entity type in the registry.
type Entry struct {
	Type     string   `yaml:"type"`
	Category string   `yaml:"category"`
	Weight   int      `yaml:"weight"`
	Flags    []string `yaml:"flags"`
}

type document struct {
	Entities []Entry `yaml:"entities"`
}

const (
	// FlagChecksumValidatable marks types whose spans carry a checksum
	// detector (tier 1).
	FlagChecksumValidatable = "checksum_validatable"
	// FlagHighRisk marks types whose presence alone should weigh heavily
	// in scoring and trigger policy.
	FlagHighRisk = "high_risk"

	unknownCategory = "unknown"
	unknownWeight   = 1
)

// Registry is an immutable, thread-safe-by-construction entity catalogue.
type Registry struct {
	entries map[string]Entry
}

// New builds a Registry from raw YAML bytes matching the declarative
// catalogue schema. Malformed entries are skipped with an error collected
// for the caller to log; overall load still succeeds for the entries that
// did parse, per the permanent/local-recoverable error class.
func New(raw []byte) (*Registry, []error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return &Registry{entries: map[string]Entry{}}, []error{fmt.Errorf("registry: parse catalogue: %w", err)}
	}

	entries := make(map[string]Entry, len(doc.Entities))
	var warnings []error
	for _, e := range doc.Entities {
		if e.Type == "" {
			warnings = append(warnings, fmt.Errorf("registry: entry with empty type skipped"))
			continue
		}
		canon := Canonicalize(e.Type)
		if e.Weight < 1 || e.Weight > 10 {
			warnings = append(warnings, fmt.Errorf("registry: entry %s has out-of-range weight %d, skipped", canon, e.Weight))
			continue
		}
		e.Type = canon
		if e.Category == "" {
			e.Category = unknownCategory
		}
		entries[canon] = e
	}

	return &Registry{entries: entries}, warnings
}

// Default loads the embedded default catalogue. Panics only if the
// embedded document itself is malformed, which would be a build-time
// defect, not a runtime condition.
func Default() *Registry {
	reg, errs := New(defaultCatalogue)
	if len(reg.entries) == 0 && len(errs) > 0 {
		panic(fmt.Sprintf("registry: embedded default catalogue failed to load: %v", errs[0]))
	}
	return reg
}

// Canonicalize applies the single normalization function entity types
// must pass through before any comparison: canonical form is uppercase
// ASCII.
func Canonicalize(entityType string) string {
	return strings.ToUpper(strings.TrimSpace(entityType))
}

// Weight returns the integer weight (1-10) for an entity type. Unknown
// types return 1, never an error, for forward compatibility across
// generator versions.
func (r *Registry) Weight(entityType string) int {
	if e, ok := r.entries[Canonicalize(entityType)]; ok {
		return e.Weight
	}
	return unknownWeight
}

// Category returns the dot-separated category path for an entity type.
// Unknown types return "unknown".
func (r *Registry) Category(entityType string) string {
	if e, ok := r.entries[Canonicalize(entityType)]; ok {
		return e.Category
	}
	return unknownCategory
}

// Contains reports whether the entity type is present in the registry.
func (r *Registry) Contains(entityType string) bool {
	_, ok := r.entries[Canonicalize(entityType)]
	return ok
}

// HasFlag reports whether an entity type carries the named flag. Unknown
// types never carry flags.
func (r *Registry) HasFlag(entityType, flag string) bool {
	e, ok := r.entries[Canonicalize(entityType)]
	if !ok {
		return false
	}
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// EnumerateByCategory returns all known entity types whose category path
// starts with prefix, sorted for deterministic iteration.
func (r *Registry) EnumerateByCategory(prefix string) []string {
	var out []string
	for t, e := range r.entries {
		if strings.HasPrefix(e.Category, prefix) {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of distinct entity types loaded.
func (r *Registry) Len() int {
	return len(r.entries)
}
