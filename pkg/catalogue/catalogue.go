// Package catalogue loads the declarative, machine-validated pattern
// catalogue backing tier-2 pattern detectors. Patterns are never
// hard-coded in Go source; they live in an external YAML document with
// schema validation at load time.
package catalogue

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var defaultPatterns []byte

// rawEntry mirrors the on-disk schema exactly:
//
//	patterns:
//	  <category>:
//	    <subcat>:
//	      - regex: "..."
//	        type: "SSN"
//	        confidence: 0.85
//	        group: 0
//	        flags: "IGNORECASE"
type rawEntry struct {
	Regex      string  `yaml:"regex"`
	Type       string  `yaml:"type"`
	Confidence float64 `yaml:"confidence"`
	Group      int     `yaml:"group"`
	Flags      string  `yaml:"flags"`
}

type document struct {
	Patterns map[string]map[string][]rawEntry `yaml:"patterns"`
}

// Pattern is a single compiled, validated catalogue entry.
type Pattern struct {
	Category    string
	Subcategory string
	EntityType  string
	Confidence  float64
	Group       int
	Regexp      *regexp.Regexp
}

// Catalogue is the immutable, compiled pattern set.
type Catalogue struct {
	patterns []Pattern
}

// Load parses raw YAML bytes into a Catalogue. Malformed entries
// (unparseable regex, confidence outside [0,1]) are skipped; skipping is
// reported back as warnings so the overall load still succeeds for valid
// entries, per the permanent/local-recoverable error class.
func Load(raw []byte) (*Catalogue, []error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return &Catalogue{}, []error{fmt.Errorf("catalogue: parse: %w", err)}
	}

	var patterns []Pattern
	var warnings []error
	for category, subcats := range doc.Patterns {
		for subcat, entries := range subcats {
			for _, e := range entries {
				p, err := compile(category, subcat, e)
				if err != nil {
					warnings = append(warnings, err)
					continue
				}
				patterns = append(patterns, p)
			}
		}
	}

	return &Catalogue{patterns: patterns}, warnings
}

func compile(category, subcat string, e rawEntry) (Pattern, error) {
	if e.Type == "" {
		return Pattern{}, fmt.Errorf("catalogue: %s/%s: missing type", category, subcat)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return Pattern{}, fmt.Errorf("catalogue: %s/%s type=%s: confidence %v out of range", category, subcat, e.Type, e.Confidence)
	}
	pattern := e.Regex
	for _, f := range strings.Split(e.Flags, "|") {
		switch strings.ToUpper(strings.TrimSpace(f)) {
		case "IGNORECASE":
			pattern = "(?i)" + pattern
		case "MULTILINE":
			pattern = "(?m)" + pattern
		case "":
		}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Pattern{}, fmt.Errorf("catalogue: %s/%s type=%s: bad regex: %w", category, subcat, e.Type, err)
	}
	return Pattern{
		Category:    category,
		Subcategory: subcat,
		EntityType:  strings.ToUpper(e.Type),
		Confidence:  e.Confidence,
		Group:       e.Group,
		Regexp:      re,
	}, nil
}

// Default loads the embedded default pattern catalogue.
func Default() *Catalogue {
	cat, errs := Load(defaultPatterns)
	if len(cat.patterns) == 0 && len(errs) > 0 {
		panic(fmt.Sprintf("catalogue: embedded default patterns failed to load: %v", errs[0]))
	}
	return cat
}

// Patterns returns every compiled pattern in the catalogue.
func (c *Catalogue) Patterns() []Pattern {
	return c.patterns
}

// Len returns the number of loaded patterns.
func (c *Catalogue) Len() int {
	return len(c.patterns)
}
