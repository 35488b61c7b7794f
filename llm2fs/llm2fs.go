// Package llm2fs applies edit payloads to a working directory.
package llm2fs

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/llm2fs/cli"
	"github.com/sokinpui/llm2fs/internal/audit"
	"github.com/sokinpui/llm2fs/internal/fs"
	"github.com/sokinpui/llm2fs/internal/marker"
	"github.com/sokinpui/llm2fs/internal/nvim"
	"github.com/sokinpui/llm2fs/internal/parser"
	"github.com/sokinpui/llm2fs/internal/patcher"
	"github.com/sokinpui/llm2fs/internal/source"
	"github.com/sokinpui/llm2fs/internal/state"
	"github.com/sokinpui/llm2fs/model"
)

// ProgressUpdate is a callback function to report progress.
type ProgressUpdate func(current, total int)

// Policy decides what a failed change does to the rest of the batch.
type Policy int

const (
	// PolicyContinue reports the failure and moves on to the next change.
	PolicyContinue Policy = iota
	// PolicyAbort stops the batch at the first failed change.
	PolicyAbort
)

// Refresher is told which files changed on disk.
type Refresher interface {
	Refresh(ctx context.Context, paths []string) error
}

// App orchestrates the entire application logic.
type App struct {
	cfg              *cli.Config
	policy           Policy
	ws               *fs.Workspace
	applier          *patcher.Applier
	history          *state.Manager
	noHistory        bool
	audit            *audit.Store
	source           *source.Provider
	refresher        Refresher
	progressCallback ProgressUpdate
	now              func() time.Time
}

// Option customizes an App.
type Option func(*App)

// WithWorkspace applies changes to ws instead of the working directory.
func WithWorkspace(ws *fs.Workspace) Option {
	return func(a *App) { a.ws = ws }
}

// WithRefresher replaces the Neovim refresher.
func WithRefresher(r Refresher) Option {
	return func(a *App) { a.refresher = r }
}

// WithClock sets the time source used for audit file names.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithoutHistory disables recording runs for undo.
func WithoutHistory() Option {
	return func(a *App) { a.noHistory = true }
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}

// New creates a new App instance.
func New(cfg *cli.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	if cfg.FailFast {
		a.policy = PolicyAbort
	}

	if a.ws == nil {
		ws, err := fs.NewWorkspace(".")
		if err != nil {
			return nil, err
		}
		a.ws = ws
	}

	protected := slices.Clone(cfg.Protected)
	if !cfg.NoAudit {
		dir := cfg.AuditDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(a.ws.Root(), dir)
		}
		store, err := audit.New(dir)
		if err != nil {
			return nil, err
		}
		a.audit = store
		protected = append(protected, auditPatterns(a.ws.Root(), dir)...)
	}

	guard, err := fs.NewGuard(protected)
	if err != nil {
		return nil, err
	}
	a.applier = patcher.New(a.ws, patcher.Options{
		Guard:   guard,
		Locator: marker.Locator{Threshold: cfg.Threshold},
		DryRun:  cfg.DryRun,
	})

	if !a.noHistory {
		history, err := state.New(a.ws)
		if err != nil {
			return nil, errors.Errorf("failed to initialize history: %w", err)
		}
		a.history = history
	}

	if a.refresher == nil && !cfg.NoNvim {
		if n := nvim.New(); n != nil {
			a.refresher = n
		}
	}

	a.source = source.New(cfg.Input)
	return a, nil
}

// auditPatterns protects the audit directory when it lies inside the workspace.
func auditPatterns(root, dir string) []string {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	rel = filepath.ToSlash(rel)
	return []string{rel, rel + "/**"}
}

// SetProgressCallback sets a function to be called for progress updates.
func (a *App) SetProgressCallback(cb func(current, total int)) {
	a.progressCallback = cb
}

func (a *App) progress(current, total int) {
	if a.progressCallback != nil {
		a.progressCallback(current, total)
	}
}

// Execute runs the mode selected by the configuration: undo, redo or
// applying the payload from the source.
func (a *App) Execute(ctx context.Context) (report *model.Report, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   errors.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	switch {
	case a.cfg.Undo:
		return a.Undo(ctx)
	case a.cfg.Redo:
		return a.Redo(ctx)
	default:
		return a.processContent(ctx)
	}
}

func (a *App) processContent(ctx context.Context) (*model.Report, error) {
	content, err := a.source.Content(ctx)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return &model.Report{Message: "Source is empty. Nothing to process."}, nil
	}
	return a.Run(ctx, content)
}

// Run saves raw to the audit directory, parses it and applies every change in
// order. A malformed payload is returned as an error before any change is
// attempted; failures of single changes are recorded in the report.
func (a *App) Run(ctx context.Context, raw string) (*model.Report, error) {
	log := zerolog.Ctx(ctx)

	if a.audit != nil {
		path, err := a.audit.Save(raw, a.now())
		if err != nil {
			log.Warn().Err(err).Msg("saving payload copy failed")
		} else {
			log.Debug().Str("path", path).Msg("payload saved")
		}
	}

	payload, err := parser.Parse(raw)
	if err != nil {
		return nil, err
	}

	report := &model.Report{
		Explanation: payload.Explanation,
		Conclusion:  payload.Conclusion,
		DryRun:      a.cfg.DryRun,
	}
	if len(payload.Changes) == 0 {
		report.Message = "No changes in payload. Nothing to do."
	}

	var (
		ops     []state.Operation
		touched []string
	)
	total := len(payload.Changes)
	a.progress(0, total)

	for i, change := range payload.Changes {
		res := a.apply(ctx, change)
		report.Results = append(report.Results, res.Result)
		a.progress(i+1, total)

		if res.Outcome == model.OutcomeApplied && !a.cfg.DryRun {
			touched = append(touched, res.touched...)
			if a.history != nil {
				op, err := a.history.Capture(version(res.out.Before), version(res.out.After))
				if err != nil {
					log.Warn().Err(err).Str("path", res.Path).Msg("recording history failed")
				} else {
					ops = append(ops, op)
				}
			}
		}

		if res.Outcome == model.OutcomeFailed && a.policy == PolicyAbort {
			report.Aborted = i+1 < total
			break
		}
	}

	if a.history != nil {
		if err := a.history.Write(ops); err != nil {
			log.Warn().Err(err).Msg("saving history failed")
		}
	}
	a.refresh(ctx, touched)
	return report, nil
}

type applied struct {
	model.Result
	out     patcher.Outcome
	touched []string
}

func (a *App) apply(ctx context.Context, change model.Change) applied {
	res := applied{Result: model.Result{
		Path:   change.Path,
		Kind:   change.Op.Kind(),
		Action: change.Op.Describe(),
		Reason: change.Reason,
	}}
	if rename, ok := change.Op.(model.RenameFile); ok {
		res.NewPath = rename.NewPath
	}

	out, err := a.applier.Apply(ctx, change)
	log := zerolog.Ctx(ctx).With().Str("path", change.Path).Str("command", string(res.Kind)).Logger()
	switch {
	case err == nil:
		res.Outcome = model.OutcomeApplied
		res.Lines = out.Lines
		res.Preview = out.Preview
		res.Message = appliedMessage(change, out, a.cfg.DryRun)
		res.out = out
		for _, s := range []*patcher.Snapshot{out.Before, out.After} {
			if s != nil && !slices.Contains(res.touched, s.Path) {
				res.touched = append(res.touched, s.Path)
			}
		}
		log.Debug().Int("lines", out.Lines).Msg("change applied")
	case model.IsSkip(err):
		res.Outcome = model.OutcomeSkipped
		res.Err = err
		res.Message = "Skipped: " + err.Error()
		log.Warn().Err(err).Msg("change skipped")
	default:
		res.Outcome = model.OutcomeFailed
		res.Err = err
		res.Message = "Failed: " + err.Error()
		log.Error().Err(err).Msg("change failed")
	}
	return res
}

func appliedMessage(change model.Change, out patcher.Outcome, dryRun bool) string {
	var msg string
	switch op := change.Op.(type) {
	case model.CreateFile:
		msg = fmt.Sprintf("Created file %s and inserted %d lines", change.Path, out.Lines)
	case model.InsertBefore:
		msg = fmt.Sprintf("Inserted %d line(s) before marker in %s", out.Lines, change.Path)
	case model.InsertAfter:
		msg = fmt.Sprintf("Inserted %d line(s) after marker in %s", out.Lines, change.Path)
	case model.Delete:
		msg = fmt.Sprintf("Deleted %d line(s) from %s", out.Lines, change.Path)
	case model.RenameFile:
		msg = fmt.Sprintf("Renamed %s to %s", change.Path, op.NewPath)
	case model.DeleteFile:
		msg = fmt.Sprintf("Deleted file %s", change.Path)
	}
	if dryRun {
		msg = "[dry run] " + msg
	}
	return msg
}

func version(s *patcher.Snapshot) *state.Version {
	if s == nil {
		return nil
	}
	return &state.Version{Path: s.Path, Content: s.Content}
}

func (a *App) refresh(ctx context.Context, paths []string) {
	if a.refresher == nil || len(paths) == 0 {
		return
	}
	if err := a.refresher.Refresh(ctx, paths); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("buffer refresh failed")
	}
}

// Undo reverts the last recorded run.
func (a *App) Undo(ctx context.Context) (*model.Report, error) {
	return a.walkHistory(ctx, a.history.Undo, state.ErrNothingToUndo, "Undid last run.", "No operation to undo.")
}

// Redo re-applies the last undone run.
func (a *App) Redo(ctx context.Context) (*model.Report, error) {
	return a.walkHistory(ctx, a.history.Redo, state.ErrNothingToRedo, "Redid last undone run.", "No operation to redo.")
}

func (a *App) walkHistory(ctx context.Context, step func(context.Context) ([]string, error), empty error, done, nothing string) (*model.Report, error) {
	if a.history == nil {
		return nil, errors.New("history is disabled")
	}

	paths, err := step(ctx)
	if errors.Is(err, empty) {
		return &model.Report{Message: nothing}, nil
	}
	if err != nil {
		return nil, err
	}

	report := &model.Report{Message: done}
	total := len(paths)
	a.progress(0, total)
	for i, p := range paths {
		report.Results = append(report.Results, model.Result{
			Path:    p,
			Action:  "Restoring file",
			Outcome: model.OutcomeApplied,
			Message: "Restored " + p,
		})
		a.progress(i+1, total)
	}
	a.refresh(ctx, paths)
	return report, nil
}
