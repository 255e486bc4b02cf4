// Package catalog loads the field catalog that drives sentence decoding:
// which sentence fields become measurements, their display names, groups
// and unit hints.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"smart0183d/internal/nmea0183"
)

// embedded is the built-in catalog covering the common marine talker
// sentences. A configured catalog path replaces it wholesale.
//
//go:embed smart0183.json
var embedded []byte

// Field describes one field of a sentence type.
type Field struct {
	// UniqueID is "{sentenceType}_{fieldIndex}", e.g. "GGA_2".
	UniqueID        string `json:"unique_id"`
	FullDescription string `json:"full_description"`
	// Unit is a unit hint: a literal unit, "#N" to re-read field N of the
	// sentence, or a GPS{LAT|LON}{d} coordinate directive.
	Unit string `json:"unit_of_measurement,omitempty"`
}

// Sentence groups the catalogued fields of one sentence type.
type Sentence struct {
	Group       string  `json:"group"`
	Description string  `json:"sentence_description"`
	Fields      []Field `json:"fields"`
}

// Descriptor is the resolved lookup result for one sentence field.
type Descriptor struct {
	FullDescription     string
	Group               string
	SentenceDescription string
	Unit                string
}

// Catalog maps "{sentenceType}_{fieldIndex}" ids to field descriptors.
// Read-only after load.
type Catalog struct {
	sentences []Sentence
	byID      map[string]Descriptor
}

// Parse decodes a catalog from its JSON form: an array of sentence
// definitions. Later duplicates of a unique_id win, as in the original
// schema format.
func Parse(data []byte) (*Catalog, error) {
	var sentences []Sentence
	if err := json.Unmarshal(data, &sentences); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	c := &Catalog{
		sentences: sentences,
		byID:      make(map[string]Descriptor),
	}
	for _, s := range sentences {
		for _, f := range s.Fields {
			c.byID[f.UniqueID] = Descriptor{
				FullDescription:     f.FullDescription,
				Group:               s.Group,
				SentenceDescription: s.Description,
				Unit:                f.Unit,
			}
		}
	}
	return c, nil
}

// Load reads a catalog file from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(embedded)
}

// Lookup resolves one field of a sentence type. A miss means the field is
// not catalogued and must be skipped.
func (c *Catalog) Lookup(sentenceType string, fieldIndex int) (Descriptor, bool) {
	d, ok := c.byID[sentenceType+"_"+strconv.Itoa(fieldIndex)]
	return d, ok
}

// Sentences returns the number of sentence definitions.
func (c *Catalog) Sentences() int { return len(c.sentences) }

// FieldCount returns the number of catalogued fields.
func (c *Catalog) FieldCount() int { return len(c.byID) }

// Types returns the catalogued sentence types in definition order.
func (c *Catalog) Types() []string {
	out := make([]string, 0, len(c.sentences))
	for _, s := range c.sentences {
		if len(s.Fields) == 0 {
			continue
		}
		id := s.Fields[0].UniqueID
		if i := strings.IndexByte(id, '_'); i > 0 {
			out = append(out, id[:i])
		}
	}
	return out
}

// Embedded returns the raw JSON of the built-in catalog.
func Embedded() []byte { return embedded }

// TypeInfo is a per-sentence-type summary for listing tools.
type TypeInfo struct {
	Type        string
	Description string
	Group       string
	Fields      int
}

// Summary returns one TypeInfo per sentence definition, in definition
// order.
func (c *Catalog) Summary() []TypeInfo {
	out := make([]TypeInfo, 0, len(c.sentences))
	for _, s := range c.sentences {
		info := TypeInfo{
			Description: s.Description,
			Group:       s.Group,
			Fields:      len(s.Fields),
		}
		if len(s.Fields) > 0 {
			if typ, _, ok := splitID(s.Fields[0].UniqueID); ok {
				info.Type = typ
			}
		}
		out = append(out, info)
	}
	return out
}

// Validate reports findings a catalog author should fix: duplicate or
// malformed unique_ids and unit hints that can never resolve. Findings do
// not prevent the catalog from loading.
func Validate(data []byte) ([]string, error) {
	var sentences []Sentence
	if err := json.Unmarshal(data, &sentences); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	var findings []string
	seen := make(map[string]bool)
	for _, s := range sentences {
		if s.Description == "" {
			findings = append(findings, fmt.Sprintf("sentence group %q has no description", s.Group))
		}
		for _, f := range s.Fields {
			if seen[f.UniqueID] {
				findings = append(findings, fmt.Sprintf("duplicate unique_id %q", f.UniqueID))
			}
			seen[f.UniqueID] = true

			if _, _, ok := splitID(f.UniqueID); !ok {
				findings = append(findings, fmt.Sprintf("malformed unique_id %q", f.UniqueID))
			}
			switch {
			case f.Unit == "":
			case nmea0183.IsGPSHint(f.Unit):
				if _, err := nmea0183.ParseGPSDirective(f.Unit); err != nil {
					findings = append(findings, fmt.Sprintf("field %q: bad coordinate directive %q", f.UniqueID, f.Unit))
				}
			case strings.HasPrefix(f.Unit, "#"):
				if n, err := strconv.Atoi(f.Unit[1:]); err != nil || n < 1 {
					findings = append(findings, fmt.Sprintf("field %q: unit ref %q can never resolve", f.UniqueID, f.Unit))
				}
			}
		}
	}
	return findings, nil
}

// splitID splits "GGA_2" into type and index.
func splitID(id string) (string, int, bool) {
	i := strings.LastIndexByte(id, '_')
	if i <= 0 || i == len(id)-1 {
		return "", 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n < 1 {
		return "", 0, false
	}
	return id[:i], n, true
}
