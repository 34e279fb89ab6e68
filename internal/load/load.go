// Package load reads schedule templates from JSON or YAML files. Loading is
// a CLI concern; the solver only ever sees the in-memory template.
package load

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/sa2812/skejj/internal/model"
	"github.com/sa2812/skejj/internal/validate"
)

// File reads and decodes a template file. The format is sniffed from the
// content, not the extension: valid JSON is decoded directly, anything else
// is tried as YAML.
func File(path string) (*model.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	t, err := Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	return t, nil
}

// Bytes decodes a template from raw JSON or YAML content and applies the
// schema defaults. Field names follow the JSON spelling in both formats.
func Bytes(data []byte) (*model.Template, error) {
	var t model.Template

	if gjson.ValidBytes(data) {
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	} else {
		// YAML keys keep the JSON spelling, so route the decoded document
		// through the JSON tags rather than duplicating the schema.
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
		bridged, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("bridge YAML document: %w", err)
		}
		if err := json.Unmarshal(bridged, &t); err != nil {
			return nil, fmt.Errorf("decode YAML template: %w", err)
		}
	}

	validate.Normalize(&t)
	return &t, nil
}
