package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLines_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Lines
		wantErr bool
	}{
		{name: "scalar", input: `"fn main() {"`, want: Lines{"fn main() {"}},
		{name: "empty_scalar", input: `""`, want: Lines{""}},
		{name: "sequence", input: `["a", "", "  b"]`, want: Lines{"a", "", "  b"}},
		{name: "empty_sequence", input: `[]`, want: Lines{}},
		{name: "null", input: `null`, want: Lines{}},
		{name: "number", input: `42`, wantErr: true},
		{name: "mixed_sequence", input: `["a", 1]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Lines
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLines_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Lines
		wantErr bool
	}{
		{name: "scalar", input: `v: "}"`, want: Lines{"}"}},
		{name: "sequence", input: "v:\n  - one\n  - \"  two\"\n", want: Lines{"one", "  two"}},
		{name: "null", input: `v: null`, want: Lines{}},
		{name: "mapping", input: "v:\n  a: b\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc struct {
				V Lines `yaml:"v"`
			}
			err := yaml.Unmarshal([]byte(tt.input), &doc)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if len(tt.want) == 0 {
				assert.Empty(t, doc.V)
				return
			}
			assert.Equal(t, tt.want, doc.V)
		})
	}
}

func TestLines_Accessors(t *testing.T) {
	l := NewLines("a", "b")
	assert.Equal(t, 2, l.Count())

	s := l.Slice()
	s[0] = "changed"
	assert.Equal(t, "a", l[0], "Slice must return a copy")

	assert.True(t, NewLines().IsBlank())
	assert.True(t, NewLines("", "  \t").IsBlank())
	assert.False(t, NewLines("", "x").IsBlank())
}

func TestReport_Summary(t *testing.T) {
	r := &Report{Results: []Result{
		{Path: "a.go", Kind: KindCreateFile, Outcome: OutcomeApplied},
		{Path: "a.go", Kind: KindInsertAfter, Outcome: OutcomeApplied},
		{Path: "a.go", Kind: KindDelete, Outcome: OutcomeApplied},
		{Path: "b.go", Kind: KindRenameFile, NewPath: "c.go", Outcome: OutcomeApplied},
		{Path: "d.go", Kind: KindDeleteFile, Outcome: OutcomeApplied},
		{Path: "e.go", Kind: KindDelete, Outcome: OutcomeFailed},
		{Path: "/etc/passwd", Kind: KindDeleteFile, Outcome: OutcomeSkipped},
	}}

	s := r.Summary()
	assert.Equal(t, []string{"a.go"}, s.Created)
	assert.Equal(t, []string{"a.go"}, s.Modified)
	assert.Equal(t, []string{"b.go -> c.go"}, s.Renamed)
	assert.Equal(t, []string{"d.go"}, s.Deleted)
	assert.Equal(t, []string{"e.go"}, s.Failed)
	assert.Equal(t, []string{"/etc/passwd"}, s.Skipped)
	assert.Equal(t, 1, r.Failed())
}
