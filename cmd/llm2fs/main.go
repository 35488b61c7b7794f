package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/llm2fs/cli"
	"github.com/sokinpui/llm2fs/internal/parser"
	"github.com/sokinpui/llm2fs/internal/tui"
	"github.com/sokinpui/llm2fs/internal/ui"
	"github.com/sokinpui/llm2fs/llm2fs"
	"github.com/sokinpui/llm2fs/model"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	ctx := logger.WithContext(context.Background())

	cfg, err := cli.ParseFlags(ctx, os.Args[1:], ".", os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if cfg.Debug {
		logger = logger.Level(zerolog.DebugLevel)
		ctx = logger.WithContext(ctx)
	}

	// Flags that print to stdout and do not touch the workspace.
	if cfg.Schema {
		schema, err := parser.Schema()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Println(string(schema))
		return 0
	}

	app, err := llm2fs.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		return 1
	}

	interactive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	var report *model.Report
	if interactive && !cfg.Plain {
		report, err = runTUI(ctx, app)
	} else {
		report, err = runPlain(ctx, app, interactive)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var detailed *llm2fs.DetailedError
		if errors.As(err, &detailed) && cfg.Debug {
			fmt.Fprintf(os.Stderr, "%s\n", detailed.Stack)
		}
		return 1
	}
	if report.Failed() > 0 {
		return 1
	}
	return 0
}

func runTUI(ctx context.Context, app *llm2fs.App) (*model.Report, error) {
	m := tui.New(ctx, app)
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	m.SetProgram(p)
	if _, err := p.Run(); err != nil {
		return nil, errors.Errorf("running program: %w", err)
	}
	if m.Err() != nil {
		return nil, m.Err()
	}
	if m.Report() == nil {
		return nil, errors.New("interrupted")
	}
	return m.Report(), nil
}

func runPlain(ctx context.Context, app *llm2fs.App, showProgress bool) (*model.Report, error) {
	var bar *ui.ProgressBar
	if showProgress {
		bar = ui.NewProgressBar(os.Stderr, 0, "Applying")
		app.SetProgressCallback(bar.Set)
	}

	report, err := app.Execute(ctx)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return nil, err
	}
	ui.New(os.Stderr).Report(report)
	return report, nil
}
