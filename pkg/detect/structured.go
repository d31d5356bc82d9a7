package detect

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"

	"github.com/MacAttak/riskscan/pkg/span"
)

// headerAliases maps common column/field names to the entity type they
// imply. Declarative by design — extend this table rather than adding
// branching logic per new header name.
var headerAliases = map[string]string{
	"ssn": "SSN", "social_security_number": "SSN", "social_security_no": "SSN",
	"tfn": "TFN", "tax_file_number": "TFN",
	"medicare": "MEDICARE", "medicare_number": "MEDICARE",
	"email": "EMAIL", "email_address": "EMAIL",
	"phone": "PHONE", "phone_number": "PHONE", "mobile": "PHONE",
	"credit_card": "CREDIT_CARD", "card_number": "CREDIT_CARD", "cc_number": "CREDIT_CARD",
	"iban": "IBAN", "account_number": "ACCOUNT_NUMBER", "bsb": "BSB",
	"diagnosis": "DIAGNOSIS", "dx": "DIAGNOSIS",
	"mrn": "MRN", "medical_record_number": "MRN",
	"dob": "DATE_OF_BIRTH", "date_of_birth": "DATE_OF_BIRTH", "birth_date": "DATE_OF_BIRTH",
	"address": "ADDRESS", "street_address": "ADDRESS", "home_address": "ADDRESS",
	"name": "NAME", "full_name": "NAME", "patient_name": "NAME",
	"ip_address": "IP_ADDRESS", "ip": "IP_ADDRESS",
	"passport": "PASSPORT", "passport_number": "PASSPORT",
	"driver_license": "DRIVER_LICENSE", "drivers_license": "DRIVER_LICENSE",
	"aadhaar": "AADHAAR", "aadhaar_number": "AADHAAR",
	"npi": "NPI",
	"aws_access_key": "AWS_ACCESS_KEY", "aws_secret_key": "AWS_SECRET_KEY",
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return h
}

// StructuredDetector consumes JSON or CSV input and associates column or
// field values with labels of that header's inferred type. Detection is
// tier 1 when the header unambiguously maps to a known entity type.
type StructuredDetector struct {
	aliases map[string]string
}

// NewStructuredDetector builds a StructuredDetector over the default
// header-alias table.
func NewStructuredDetector() *StructuredDetector {
	return &StructuredDetector{aliases: headerAliases}
}

func (d *StructuredDetector) Name() string    { return "structured" }
func (d *StructuredDetector) Tier() span.Tier { return span.TierChecksum }

// Detect attempts CSV parsing first (the common case for tabular exports),
// falling back to parsing the whole input as one JSON object (only its
// top-level string fields are examined). Failure to parse as either
// structured form yields zero spans, not an error — callers run this
// detector only when they declare the input has structure; an unparsable
// declared-structured input is therefore the caller's degraded-path
// signal, surfaced by the orchestrator rather than this detector.
func (d *StructuredDetector) Detect(ctx context.Context, text string) ([]span.Span, error) {
	if spans := d.detectCSV(text); len(spans) > 0 {
		return collapseSelfOverlaps(spans), nil
	}
	if spans := d.detectJSON(text); len(spans) > 0 {
		return collapseSelfOverlaps(spans), nil
	}
	return nil, nil
}

func (d *StructuredDetector) detectCSV(text string) []span.Span {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil || len(header) == 0 {
		return nil
	}
	types := make([]string, len(header))
	anyKnown := false
	for i, h := range header {
		if t, ok := d.aliases[normalizeHeader(h)]; ok {
			types[i] = t
			anyKnown = true
		}
	}
	if !anyKnown {
		return nil
	}

	var spans []span.Span
	searchFrom := 0
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		for i, value := range record {
			if i >= len(types) || types[i] == "" || value == "" {
				continue
			}
			idx := strings.Index(text[searchFrom:], value)
			if idx < 0 {
				continue
			}
			start := searchFrom + idx
			end := start + len(value)
			spans = append(spans, span.Span{
				EntityType:     types[i],
				Start:          start,
				End:            end,
				Confidence:     0.95,
				DetectorTier:   span.TierChecksum,
				SourceDetector: d.Name(),
				RawValueHash:   valueHash(strings.TrimSpace(value)),
			})
		}
	}
	return spans
}

func (d *StructuredDetector) detectJSON(text string) []span.Span {
	var generic map[string]interface{}
	if err := json.Unmarshal([]byte(text), &generic); err != nil {
		return nil
	}
	var spans []span.Span
	for key, val := range generic {
		t, ok := d.aliases[normalizeHeader(key)]
		if !ok {
			continue
		}
		s, ok := val.(string)
		if !ok || s == "" {
			continue
		}
		idx := strings.Index(text, s)
		if idx < 0 {
			continue
		}
		spans = append(spans, span.Span{
			EntityType:     t,
			Start:          idx,
			End:            idx + len(s),
			Confidence:     0.9,
			DetectorTier:   span.TierChecksum,
			SourceDetector: d.Name(),
			RawValueHash:   valueHash(strings.TrimSpace(s)),
		})
	}
	return spans
}
