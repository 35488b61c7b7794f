package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/pflag"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/llm2fs/internal/config"
)

// Config holds the settings of a run together with the command-line only
// switches.
type Config struct {
	config.Config

	// ConfigPath is the config file that was loaded, if any.
	ConfigPath string
	Input      string
	Undo       bool
	Redo       bool
	Schema     bool
}

// ParseFlags parses args (without the program name) and merges them over the
// config file, .env and LLM2FS_* variables found in dir. pflag.ErrHelp is
// returned after printing usage for -h.
func ParseFlags(ctx context.Context, args []string, dir string, out io.Writer) (*Config, error) {
	cfg := &Config{}
	flags := config.Default()

	fs := pflag.NewFlagSet("llm2fs", pflag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVarP(&cfg.Input, "input", "i", "", "Read the payload from this file ('-' for stdin) instead of stdin or the clipboard.")
	fs.StringVarP(&cfg.ConfigPath, "config", "c", "", "Config file (.yaml, .yml, .json or .hcl). Defaults to .llm2fs.* in the working directory.")
	fs.BoolVarP(&flags.DryRun, "dry-run", "n", false, "Show what would change without writing any file.")
	fs.BoolVarP(&flags.FailFast, "fail-fast", "f", false, "Stop at the first change that fails.")
	fs.Float64VarP(&flags.Threshold, "threshold", "t", flags.Threshold, "Minimum similarity for a fuzzy marker match, in (0, 1].")
	fs.StringVar(&flags.AuditDir, "audit-dir", flags.AuditDir, "Directory receiving a copy of every payload.")
	fs.BoolVar(&flags.NoAudit, "no-audit", false, "Do not save a copy of the payload.")
	fs.StringSliceVar(&flags.Protected, "protect", nil, "Additional glob of paths that must never be touched (repeatable).")
	fs.BoolVar(&flags.Plain, "plain", false, "Print plain text instead of the interactive view.")
	fs.BoolVar(&flags.NoNvim, "no-nvim", false, "Do not ask a running Neovim to reload changed buffers.")
	fs.BoolVarP(&flags.Debug, "debug", "d", false, "Enable debug logging.")
	fs.BoolVar(&cfg.Schema, "schema", false, "Print the JSON schema of the payload and exit.")

	// Mutually exclusive history group
	fs.BoolVarP(&cfg.Undo, "undo", "u", false, "Undo the last run.")
	fs.BoolVarP(&cfg.Redo, "redo", "r", false, "Redo the last undone run.")

	fs.Usage = func() {
		fmt.Fprintln(out, "Usage: llm2fs [flags]")
		fmt.Fprintln(out, "\nApply a structured edit payload from stdin (pipe), a file or the clipboard to files in the working directory.")
		fmt.Fprintln(out, "\nExample: pbpaste | llm2fs --dry-run")
		fmt.Fprintln(out, "\nFlags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, errors.Errorf("unexpected arguments: %v", fs.Args())
	}
	if cfg.Undo && cfg.Redo {
		return nil, errors.New("--undo and --redo are mutually exclusive")
	}

	settings := config.Default()
	if cfg.ConfigPath == "" {
		cfg.ConfigPath = config.Find(dir)
	}
	if cfg.ConfigPath != "" {
		if err := config.LoadFile(ctx, settings, cfg.ConfigPath); err != nil {
			return nil, err
		}
	}
	if err := config.ApplyEnv(settings, filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "dry-run":
			settings.DryRun = flags.DryRun
		case "fail-fast":
			settings.FailFast = flags.FailFast
		case "threshold":
			settings.Threshold = flags.Threshold
		case "audit-dir":
			settings.AuditDir = flags.AuditDir
		case "no-audit":
			settings.NoAudit = flags.NoAudit
		case "protect":
			settings.Protected = append(settings.Protected, flags.Protected...)
		case "plain":
			settings.Plain = flags.Plain
		case "no-nvim":
			settings.NoNvim = flags.NoNvim
		case "debug":
			settings.Debug = flags.Debug
		}
	})

	if err := settings.Validate(); err != nil {
		return nil, errors.Errorf("invalid configuration: %w", err)
	}
	cfg.Config = *settings
	return cfg, nil
}
