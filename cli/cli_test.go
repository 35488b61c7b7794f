package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/llm2fs/internal/config"
)

func TestParseFlags_Defaults(t *testing.T) {
	cfg, err := ParseFlags(context.Background(), nil, t.TempDir(), &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, *config.Default(), cfg.Config)
	assert.Empty(t, cfg.ConfigPath)
	assert.False(t, cfg.Undo)
}

func TestParseFlags_Precedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".llm2fs.yaml"), []byte("threshold: 0.8\nfail_fast: true\ndry_run: true\naudit_dir: from-file\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LLM2FS_AUDIT_DIR=from-env\n"), 0o644))

	cfg, err := ParseFlags(context.Background(), []string{"-t", "0.9", "--protect", "vendor/**"}, dir, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, ".llm2fs.yaml"), cfg.ConfigPath)
	assert.InDelta(t, 0.9, cfg.Threshold, 1e-9, "flag wins over file")
	assert.True(t, cfg.FailFast, "file wins over default")
	assert.True(t, cfg.DryRun, "unset flag does not reset file value")
	assert.Equal(t, "from-env", cfg.AuditDir, "env wins over file")
	assert.Contains(t, cfg.Protected, "vendor/**")
	assert.Contains(t, cfg.Protected, ".git/**")
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "undo_and_redo", args: []string{"--undo", "--redo"}},
		{name: "threshold_out_of_range", args: []string{"--threshold", "1.5"}},
		{name: "unknown_flag", args: []string{"--bogus"}},
		{name: "positional_argument", args: []string{"file.json"}},
		{name: "missing_config_file", args: []string{"-c", "/nonexistent/.llm2fs.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFlags(context.Background(), tt.args, t.TempDir(), &bytes.Buffer{})
			assert.Error(t, err)
		})
	}
}

func TestParseFlags_Help(t *testing.T) {
	var out bytes.Buffer
	_, err := ParseFlags(context.Background(), []string{"--help"}, t.TempDir(), &out)
	assert.ErrorIs(t, err, pflag.ErrHelp)
	assert.Contains(t, out.String(), "Usage: llm2fs")
	assert.Contains(t, out.String(), "--dry-run")
}
