// Package filterlist loads blacklist documents from files and keeps the
// engine's pattern set in sync with them.
package filterlist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PatternSpec is a single pattern as it appears in a blacklist document.  A
// missing type means "exact".
type PatternSpec struct {
	// Type is one of "exact", "domain", "path", or "regex".  Other values are
	// accepted, but such patterns never match.
	Type string `json:"type" yaml:"type"`

	// Value is the string, domain, URL fragment, or expression to match.
	Value string `json:"value" yaml:"value"`

	// Description is the optional human-readable label.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Document is a parsed blacklist document.
type Document struct {
	Patterns []PatternSpec `json:"patterns" yaml:"patterns"`
}

// Format is the format of a blacklist document.
type Format uint8

// Format values.
const (
	FormatJSON Format = iota
	FormatYAML
)

// String implements the [fmt.Stringer] interface for Format.
func (f Format) String() (s string) {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return fmt.Sprintf("Format(%d)", f)
	}
}

// FormatFromPath returns the format of the document at path judging by its
// extension.  Everything except ".yaml" and ".yml" is JSON.
func FormatFromPath(path string) (f Format) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse parses a blacklist document.  Empty data is an empty document.
func Parse(data []byte, f Format) (doc *Document, err error) {
	doc = &Document{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	switch f {
	case FormatYAML:
		err = yaml.Unmarshal(data, doc)
	case FormatJSON:
		err = json.Unmarshal(data, doc)
	default:
		return nil, fmt.Errorf("unsupported format %s", f)
	}

	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", f, err)
	}

	return doc, nil
}
