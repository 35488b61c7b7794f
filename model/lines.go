package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// Lines is an ordered run of literal text lines. A payload may give either a
// single string or a list of strings; both decode to Lines.
type Lines []string

// NewLines lifts the given values into Lines, keeping their order.
func NewLines(lines ...string) Lines {
	if len(lines) == 0 {
		return Lines{}
	}
	out := make(Lines, len(lines))
	copy(out, lines)
	return out
}

// Slice returns a copy of the lines.
func (l Lines) Slice() []string {
	out := make([]string, len(l))
	copy(out, l)
	return out
}

// Count returns the number of lines.
func (l Lines) Count() int {
	return len(l)
}

// IsBlank reports whether no line has any non-whitespace content.
func (l Lines) IsBlank() bool {
	for _, line := range l {
		if strings.TrimSpace(line) != "" {
			return false
		}
	}
	return true
}

func (l *Lines) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*l = Lines{}
		return nil
	case len(trimmed) > 0 && trimmed[0] == '"':
		var line string
		if err := json.Unmarshal(trimmed, &line); err != nil {
			return errors.Errorf("decoding line: %w", err)
		}
		*l = Lines{line}
		return nil
	}

	var lines []string
	if err := json.Unmarshal(trimmed, &lines); err != nil {
		return errors.Errorf("expected a string or a list of strings: %w", err)
	}
	*l = NewLines(lines...)
	return nil
}

func (l *Lines) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*l = Lines{}
			return nil
		}
		*l = Lines{value.Value}
		return nil
	case yaml.SequenceNode:
		lines := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return errors.Errorf("line %d:%d: expected a string", item.Line, item.Column)
			}
			lines = append(lines, item.Value)
		}
		*l = NewLines(lines...)
		return nil
	default:
		return errors.Errorf("line %d:%d: expected a string or a list of strings", value.Line, value.Column)
	}
}

// JSONSchema describes the string-or-list shape accepted when decoding.
func (Lines) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		},
	}
}
