// Package wire implements the two on-disk label formats — the appended
// trailer and the adjacent sidecar file — plus
// the label_hash value-correlation hash and its per-entity-type
// normalization rules. Both formats share the same compact LabelSet JSON
// schema; only the framing around that JSON differs.
package wire

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformed is returned when a trailer or sidecar document fails to
// parse, is truncated, or its markers are not byte-exact.
var ErrMalformed = errors.New("wire: malformed label document")

// trailerStart and trailerEnd are byte-exact markers, 20 bytes each
// including the leading newline (the start marker also ends in one). Any
// deviation (extra whitespace, different casing) is a parse failure, not
// a best-effort recovery.
const (
	trailerStart = "\n---OPENLABEL-V1---\n"
	trailerEnd   = "\n---END-OPENLABEL---"
)

// Label is one per-file aggregate, serialized with fixed compact field
// names: t=entity_type, n=count, c=confidence_avg, d=detector_kind,
// h=value_hash.
type Label struct {
	Type          string  `json:"t"`
	Count         int     `json:"n"`
	ConfidenceAvg float64 `json:"c"`
	DetectorKind  string  `json:"d"`
	ValueHash     string  `json:"h"`
}

// FileRef identifies the file a sidecar document describes. Required on
// sidecars, optional on trailers (the trailer is already inside the file
// it describes).
type FileRef struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Hash string `json:"hash"`
}

// LabelSet is the portable label collection for one file, using the
// compact Label representation. Version is a positive integer; Source is
// "generator:semver"; GeneratedAt is Unix seconds.
type LabelSet struct {
	Version     int      `json:"v"`
	Labels      []Label  `json:"labels"`
	Source      string   `json:"src"`
	GeneratedAt int64    `json:"ts"`
	File        *FileRef `json:"file,omitempty"`
}

// WriteTrailer appends a LabelSet as a trailer to content: compact (no
// internal whitespace) UTF-8 JSON with no BOM, between byte-exact
// start/end markers.
func WriteTrailer(content []byte, set LabelSet) ([]byte, error) {
	body, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal label set: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(content)
	buf.WriteString(trailerStart)
	buf.Write(body)
	buf.WriteString(trailerEnd)
	return buf.Bytes(), nil
}

// ReadTrailer locates the end marker from EOF, scans backward for the
// start marker, and strictly parses the JSON between them. It rejects
// malformed input rather than attempting partial recovery, and
// round-trips exactly: ReadTrailer(WriteTrailer(content, tag)) ==
// (content, tag) for all valid content and tag.
func ReadTrailer(blob []byte) (content []byte, set LabelSet, err error) {
	endIdx := bytes.LastIndex(blob, []byte(trailerEnd))
	if endIdx < 0 || endIdx+len(trailerEnd) != len(blob) {
		return nil, LabelSet{}, fmt.Errorf("%w: end marker not found at EOF", ErrMalformed)
	}
	startIdx := bytes.LastIndex(blob[:endIdx], []byte(trailerStart))
	if startIdx < 0 {
		return nil, LabelSet{}, fmt.Errorf("%w: start marker not found", ErrMalformed)
	}

	jsonBody := blob[startIdx+len(trailerStart) : endIdx]
	if err := json.Unmarshal(jsonBody, &set); err != nil {
		return nil, LabelSet{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return blob[:startIdx], set, nil
}

// SidecarName returns the adjacent sidecar path for a given content
// file name: "<name>.openlabel.json".
func SidecarName(contentName string) string {
	return contentName + ".openlabel.json"
}

// WriteSidecar renders a LabelSet as the standalone sidecar JSON document.
// set.File must be populated; sidecars require the file reference the
// trailer format can omit since it is self-describing.
func WriteSidecar(set LabelSet) ([]byte, error) {
	if set.File == nil {
		return nil, fmt.Errorf("wire: sidecar requires a file reference")
	}
	return json.Marshal(set)
}

// ReadSidecar strictly parses a standalone sidecar document.
func ReadSidecar(raw []byte) (LabelSet, error) {
	var set LabelSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return LabelSet{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return set, nil
}

// LabelHash computes the correlation hash for a detected value: the
// first 6 lowercase hex characters of SHA-256 of the UTF-8 normalized
// value. Callers must normalize the value for its entity type (see
// NormalizeForHash) before calling LabelHash.
func LabelHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:6]
}

var (
	nonDigits     = regexp.MustCompile(`[^\d]`)
	spacesHyphens = regexp.MustCompile(`[\s\-]`)
)

// NormalizeForHash applies the per-entity-type normalization rule used
// before hashing: strip surrounding whitespace always;
// for SSN strip non-digits; for CREDIT_CARD strip spaces/hyphens; for
// PHONE keep digits only. Unrecognized entity types fall back to
// whitespace-trimming only, the universal baseline rule.
func NormalizeForHash(entityType, value string) string {
	v := strings.TrimSpace(value)
	switch strings.ToUpper(entityType) {
	case "SSN", "TFN", "MEDICARE", "NPI", "AADHAAR", "PHONE":
		return nonDigits.ReplaceAllString(v, "")
	case "CREDIT_CARD":
		return spacesHyphens.ReplaceAllString(v, "")
	default:
		return v
	}
}
