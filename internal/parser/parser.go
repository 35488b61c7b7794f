// Package parser turns a raw edit payload into typed changes.
package parser

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/invopop/jsonschema"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/sokinpui/llm2fs/model"
)

// Format is the serialization of a payload body.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type wirePayload struct {
	Explanation string       `json:"explanation" yaml:"explanation" jsonschema:"description=Free text shown before any edit is applied."`
	Changes     []wireChange `json:"changes" yaml:"changes" jsonschema:"required,description=Edits applied in order."`
	Conclusion  string       `json:"conclusion" yaml:"conclusion" jsonschema:"description=Free text shown after all edits were attempted."`
}

type wireChange struct {
	Filename    string       `json:"filename" yaml:"filename" jsonschema:"required,description=Path of the file relative to the working directory."`
	Command     string       `json:"command" yaml:"command" jsonschema:"required,enum=INSERT_AFTER,enum=INSERT_BEFORE,enum=DELETE,enum=CREATE_FILE,enum=RENAME_FILE,enum=DELETE_FILE"`
	InsertLines *model.Lines `json:"insert_lines,omitempty" yaml:"insert_lines" jsonschema:"description=Lines to insert (INSERT_AFTER and INSERT_BEFORE)."`
	MarkerLines *model.Lines `json:"marker_lines,omitempty" yaml:"marker_lines" jsonschema:"description=Existing lines the insertion is anchored to. May be an empty string but not omitted."`
	DeleteLines *model.Lines `json:"delete_lines,omitempty" yaml:"delete_lines" jsonschema:"description=Existing lines to remove (DELETE)."`
	NewLines    *model.Lines `json:"new_lines,omitempty" yaml:"new_lines" jsonschema:"description=Content of the new file (CREATE_FILE)."`
	NewFilename string       `json:"new_filename,omitempty" yaml:"new_filename" jsonschema:"description=Destination path (RENAME_FILE)."`
	Reason      string       `json:"reason" yaml:"reason" jsonschema:"description=Why the change is made."`

	Insert  *model.Lines `json:"insert,omitempty" yaml:"insert" jsonschema:"-"`
	Marker  *model.Lines `json:"marker,omitempty" yaml:"marker" jsonschema:"-"`
	Target  *model.Lines `json:"target,omitempty" yaml:"target" jsonschema:"-"`
	Content *model.Lines `json:"content,omitempty" yaml:"content" jsonschema:"-"`
	NewPath string       `json:"new_path,omitempty" yaml:"new_path" jsonschema:"-"`
}

// Extract finds the payload body inside raw text. A fenced json or yaml code
// block wins; otherwise everything before the first "{" is dropped, and text
// without any "{" is treated as YAML.
func Extract(raw string) (string, Format) {
	if block, ok := firstPayloadBlock([]byte(raw)); ok {
		if block.Lang == "json" {
			return block.Content, FormatJSON
		}
		return block.Content, FormatYAML
	}
	if i := strings.Index(raw, "{"); i >= 0 {
		return raw[i:], FormatJSON
	}
	return raw, FormatYAML
}

// Parse decodes raw into a payload. Every error wraps model.ErrPayloadMalformed.
func Parse(raw string) (*model.Payload, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.Errorf("%w: empty input", model.ErrPayloadMalformed)
	}

	body, format := Extract(raw)
	wire, err := decode(body, format)
	if err != nil && format == FormatJSON && !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		// Unfenced YAML may still contain a "{" somewhere.
		if alt, yerr := decode(raw, FormatYAML); yerr == nil && len(alt.Changes) > 0 {
			wire, err = alt, nil
		}
	}
	if err != nil {
		return nil, errors.Errorf("%w: decoding %s: %w", model.ErrPayloadMalformed, format, err)
	}

	payload := &model.Payload{
		Explanation: wire.Explanation,
		Conclusion:  wire.Conclusion,
		Changes:     make([]model.Change, 0, len(wire.Changes)),
	}
	for i, wc := range wire.Changes {
		change, err := wc.toChange()
		if err != nil {
			return nil, errors.Errorf("%w: change %d: %w", model.ErrPayloadMalformed, i+1, err)
		}
		payload.Changes = append(payload.Changes, change)
	}
	return payload, nil
}

func decode(body string, format Format) (*wirePayload, error) {
	var wire wirePayload
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(strings.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&wire); err != nil {
			return nil, errors.WithStack(err)
		}
	default:
		dec := yaml.NewDecoder(strings.NewReader(body))
		dec.KnownFields(true)
		if err := dec.Decode(&wire); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.WithStack(err)
		}
	}
	return &wire, nil
}

// pick returns the field given under its canonical name or its alias. A
// field that is absent under both names is an error; an explicit empty string
// or list is not.
func pick(primary, alias *model.Lines, name string) (model.Lines, error) {
	switch {
	case primary != nil:
		return *primary, nil
	case alias != nil:
		return *alias, nil
	default:
		return nil, errors.Errorf("missing %s", name)
	}
}

func (w wireChange) toChange() (model.Change, error) {
	if strings.TrimSpace(w.Filename) == "" {
		return model.Change{}, errors.New("missing filename")
	}

	kind := model.OperationKind(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(w.Command), "-", "_")))
	change := model.Change{Path: w.Filename, Reason: w.Reason}

	switch kind {
	case model.KindInsertBefore, model.KindInsertAfter:
		insert, err := pick(w.InsertLines, w.Insert, "insert_lines")
		if err != nil {
			return model.Change{}, errors.Errorf("%s: %w", w.Filename, err)
		}
		marker, err := pick(w.MarkerLines, w.Marker, "marker_lines")
		if err != nil {
			return model.Change{}, errors.Errorf("%s: %w", w.Filename, err)
		}
		if kind == model.KindInsertBefore {
			change.Op = model.InsertBefore{Insert: insert, Marker: marker}
		} else {
			change.Op = model.InsertAfter{Insert: insert, Marker: marker}
		}
	case model.KindDelete:
		target, err := pick(w.DeleteLines, w.Target, "delete_lines")
		if err != nil {
			return model.Change{}, errors.Errorf("%s: %w", w.Filename, err)
		}
		change.Op = model.Delete{Target: target}
	case model.KindCreateFile:
		content, err := pick(w.NewLines, w.Content, "new_lines")
		if err != nil {
			return model.Change{}, errors.Errorf("%s: %w", w.Filename, err)
		}
		change.Op = model.CreateFile{Content: content}
	case model.KindRenameFile:
		newPath := w.NewFilename
		if newPath == "" {
			newPath = w.NewPath
		}
		if strings.TrimSpace(newPath) == "" {
			return model.Change{}, errors.Errorf("%s: missing new_filename", w.Filename)
		}
		change.Op = model.RenameFile{NewPath: newPath}
	case model.KindDeleteFile:
		change.Op = model.DeleteFile{}
	case "":
		return model.Change{}, errors.Errorf("%s: missing command", w.Filename)
	default:
		return model.Change{}, errors.Errorf("%s: unknown command %q (want one of %v)", w.Filename, w.Command, model.Kinds)
	}
	return change, nil
}

// Schema returns the JSON schema of the payload format, indented.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(&wirePayload{})
	schema.Title = "llm2fs payload"
	schema.Description = "File edits to apply to the working directory."

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, errors.Errorf("encoding schema: %w", err)
	}
	return data, nil
}
