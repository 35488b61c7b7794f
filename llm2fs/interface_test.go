package llm2fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/llm2fs/llm2fs"
	"github.com/sokinpui/llm2fs/model"
)

func TestLibraryApply(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.rs"), []byte("fn main() {\n    println!(\"hi\");\n}"), 0o644))

	content := "```json\n" + `{
  "explanation": "farewell",
  "changes": [
    {"filename": "main.rs", "command": "INSERT_BEFORE", "insert_lines": ["    println!(\"bye\");"], "marker_lines": ["}"], "reason": "say bye"},
    {"filename": "old.rs", "command": "RENAME_FILE", "new_filename": "new.rs", "reason": "missing source"}
  ],
  "conclusion": "ok"
}` + "\n```\n"

	report, err := llm2fs.Apply(context.Background(), content, llm2fs.Config{Root: dir})
	require.NoError(t, err)

	assert.Equal(t, "fn main() {\n    println!(\"hi\");\n    println!(\"bye\");\n}", readFile(t, filepath.Join(dir, "main.rs")))
	require.Len(t, report.Results, 2)
	assert.Equal(t, model.OutcomeApplied, report.Results[0].Outcome)
	assert.ErrorIs(t, report.Results[1].Err, model.ErrNotFound)
	assert.NoDirExists(t, filepath.Join(dir, ".llm2fs"), "history is off by default")
}

func TestLibraryApply_Options(t *testing.T) {
	t.Run("history_and_audit", func(t *testing.T) {
		dir := t.TempDir()
		audit := filepath.Join(dir, "audit")

		_, err := llm2fs.Apply(context.Background(), `{"changes": [{"filename": "a.txt", "command": "CREATE_FILE", "new_lines": "a"}]}`,
			llm2fs.Config{Root: dir, History: true, AuditDir: audit})
		require.NoError(t, err)

		assert.FileExists(t, filepath.Join(dir, ".llm2fs", "state.yaml"))
		entries, err := os.ReadDir(audit)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("protected_glob", func(t *testing.T) {
		dir := t.TempDir()

		report, err := llm2fs.Apply(context.Background(), `{"changes": [{"filename": "gen/x.pb.go", "command": "CREATE_FILE", "new_lines": "a"}]}`,
			llm2fs.Config{Root: dir, Protected: []string{"**/*.pb.go"}})
		require.NoError(t, err)
		assert.ErrorIs(t, report.Results[0].Err, model.ErrPathProtected)
	})

	t.Run("invalid_threshold", func(t *testing.T) {
		_, err := llm2fs.Apply(context.Background(), `{"changes": []}`, llm2fs.Config{Root: t.TempDir(), Threshold: 2})
		assert.Error(t, err)
	})

	t.Run("missing_marker_field", func(t *testing.T) {
		dir := t.TempDir()
		original := "package main\n\nfunc main() {\n}\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(original), 0o644))

		_, err := llm2fs.Apply(context.Background(), `{"changes": [
			{"filename": "main.go", "command": "INSERT_AFTER", "insert_lines": ["// added"], "markers": ["func main() {"]},
			{"filename": "new.txt", "command": "CREATE_FILE", "new_line": ["x"]}
		]}`, llm2fs.Config{Root: dir})
		require.ErrorIs(t, err, model.ErrPayloadMalformed)

		assert.Equal(t, original, readFile(t, filepath.Join(dir, "main.go")))
		assert.NoFileExists(t, filepath.Join(dir, "new.txt"))
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := llm2fs.Apply(context.Background(), `not a payload`, llm2fs.Config{Root: t.TempDir()})
		assert.ErrorIs(t, err, model.ErrPayloadMalformed)
	})
}
