package llm2fs

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/llm2fs/cli"
	"github.com/sokinpui/llm2fs/internal/config"
	"github.com/sokinpui/llm2fs/internal/fs"
	"github.com/sokinpui/llm2fs/model"
)

// Config for using llm2fs as a library.
type Config struct {
	// Root is the directory changes apply to. Defaults to the working directory.
	Root string
	// Compute the changes and previews without writing any file.
	DryRun bool
	// Stop at the first change that fails.
	FailFast bool
	// Minimum similarity for a fuzzy marker match. Zero uses the default.
	Threshold float64
	// Additional globs of paths that must never be touched.
	Protected []string
	// Save a copy of the payload in this directory. Empty disables it.
	AuditDir string
	// Record the run so it can be undone.
	History bool
}

// Apply parses content and applies its changes under config.Root.
func Apply(ctx context.Context, content string, config Config) (*model.Report, error) {
	cliCfg, err := config.toCLI()
	if err != nil {
		return nil, err
	}

	root := config.Root
	if root == "" {
		root = "."
	}
	ws, err := fs.NewWorkspace(root)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithWorkspace(ws)}
	if !config.History {
		opts = append(opts, WithoutHistory())
	}
	app, err := New(cliCfg, opts...)
	if err != nil {
		return nil, errors.Errorf("failed to initialize llm2fs app: %w", err)
	}
	return app.Run(ctx, content)
}

func (c Config) toCLI() (*cli.Config, error) {
	settings := config.Default()
	settings.DryRun = c.DryRun
	settings.FailFast = c.FailFast
	if c.Threshold != 0 {
		settings.Threshold = c.Threshold
	}
	settings.Protected = append(settings.Protected, c.Protected...)
	settings.AuditDir = c.AuditDir
	settings.NoAudit = c.AuditDir == ""
	settings.NoNvim = true
	settings.Plain = true

	if err := settings.Validate(); err != nil {
		return nil, errors.Errorf("invalid configuration: %w", err)
	}
	return &cli.Config{Config: *settings}, nil
}
