// Package patcher applies a single change to the workspace.
package patcher

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sergi/go-diff/diffmatchpatch"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/llm2fs/internal/fs"
	"github.com/sokinpui/llm2fs/internal/marker"
	"github.com/sokinpui/llm2fs/model"
)

// Snapshot is the content of a file at one moment.
type Snapshot struct {
	Path    string
	Content []byte
}

// Outcome describes what applying a change did.
type Outcome struct {
	// Lines is the number of lines inserted, deleted or written.
	Lines int
	// Before is nil when the file did not exist before the change, After is
	// nil when it does not exist afterwards.
	Before *Snapshot
	After  *Snapshot
	// Preview is a diff of the change, set in dry-run mode.
	Preview string
}

// Options configures an Applier.
type Options struct {
	Guard   *fs.Guard
	Locator marker.Locator
	DryRun  bool
}

// Applier executes changes one at a time against a workspace.
type Applier struct {
	ws      *fs.Workspace
	guard   *fs.Guard
	locator marker.Locator
	dryRun  bool
}

// New creates an Applier. A zero Locator threshold uses the default.
func New(ws *fs.Workspace, opts Options) *Applier {
	locator := opts.Locator
	if locator.Threshold == 0 {
		locator = marker.Default()
	}
	return &Applier{ws: ws, guard: opts.Guard, locator: locator, dryRun: opts.DryRun}
}

// CheckPaths validates every path a change touches and returns the cleaned
// source path and, for renames, the cleaned destination.
func (a *Applier) CheckPaths(change model.Change) (string, string, error) {
	path, err := a.guard.Check(change.Path)
	if err != nil {
		return "", "", err
	}
	var newPath string
	if rename, ok := change.Op.(model.RenameFile); ok {
		newPath, err = a.guard.Check(rename.NewPath)
		if err != nil {
			return "", "", err
		}
	}
	return path, newPath, nil
}

// Apply performs one change. The change itself is never modified.
func (a *Applier) Apply(ctx context.Context, change model.Change) (Outcome, error) {
	path, newPath, err := a.CheckPaths(change)
	if err != nil {
		return Outcome{}, err
	}

	switch op := change.Op.(type) {
	case model.CreateFile:
		return a.create(path, op)
	case model.RenameFile:
		return a.rename(path, newPath)
	case model.DeleteFile:
		return a.remove(path)
	case model.InsertBefore:
		return a.edit(ctx, path, func(lines []string) ([]string, int, error) {
			index, err := a.locate(ctx, path, lines, op.Marker)
			if err != nil {
				return nil, 0, err
			}
			insert := trimEcho(op.Insert.Slice(), op.Marker.Slice())
			return splice(lines, index, index, insert), len(insert), nil
		})
	case model.InsertAfter:
		return a.edit(ctx, path, func(lines []string) ([]string, int, error) {
			insert := trimEcho(op.Insert.Slice(), op.Marker.Slice())
			if op.Marker.IsBlank() && len(lines) == 0 {
				return insert, len(insert), nil
			}
			index, err := a.locate(ctx, path, lines, op.Marker)
			if err != nil {
				return nil, 0, err
			}
			at := min(index+op.Marker.Count(), len(lines))
			return splice(lines, at, at, insert), len(insert), nil
		})
	case model.Delete:
		return a.edit(ctx, path, func(lines []string) ([]string, int, error) {
			if op.Target.IsBlank() {
				return nil, 0, errors.Errorf("%w: refusing to delete a blank target", model.ErrMarkerNotFound)
			}
			index, err := a.locate(ctx, path, lines, op.Target)
			if err != nil {
				return nil, 0, err
			}
			return splice(lines, index, index+op.Target.Count(), nil), op.Target.Count(), nil
		})
	case nil:
		return Outcome{}, errors.Errorf("%w: %s has no operation", model.ErrPayloadMalformed, path)
	default:
		return Outcome{}, errors.Errorf("%w: unsupported operation %T", model.ErrPayloadMalformed, op)
	}
}

func (a *Applier) create(path string, op model.CreateFile) (Outcome, error) {
	exists, err := a.ws.Exists(path)
	if err != nil {
		return Outcome{}, err
	}
	if exists {
		return Outcome{}, errors.Errorf("%w: %s", model.ErrAlreadyExists, path)
	}

	content := []byte(strings.Join(op.Content.Slice(), "\n"))
	out := Outcome{
		Lines: op.Content.Count(),
		After: &Snapshot{Path: path, Content: content},
	}
	if a.dryRun {
		out.Preview = preview("", string(content))
		return out, nil
	}
	if err := a.ws.WriteFile(path, content); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func (a *Applier) rename(from, to string) (Outcome, error) {
	content, err := a.ws.ReadFile(from)
	if err != nil {
		return Outcome{}, err
	}
	exists, err := a.ws.Exists(to)
	if err != nil {
		return Outcome{}, err
	}
	if exists {
		return Outcome{}, errors.Errorf("%w: %s", model.ErrAlreadyExists, to)
	}

	out := Outcome{
		Before: &Snapshot{Path: from, Content: content},
		After:  &Snapshot{Path: to, Content: content},
	}
	if a.dryRun {
		out.Preview = from + " -> " + to + "\n"
		return out, nil
	}
	if err := a.ws.Rename(from, to); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func (a *Applier) remove(path string) (Outcome, error) {
	content, err := a.ws.ReadFile(path)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{
		Lines:  len(fs.SplitLines(content).Lines),
		Before: &Snapshot{Path: path, Content: content},
	}
	if a.dryRun {
		out.Preview = preview(string(content), "")
		return out, nil
	}
	if err := a.ws.Remove(path); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

type transform func(lines []string) ([]string, int, error)

// edit reads path, transforms its lines and writes the result back, keeping
// the original line endings.
func (a *Applier) edit(ctx context.Context, path string, fn transform) (Outcome, error) {
	content, err := a.ws.ReadFile(path)
	if err != nil {
		return Outcome{}, err
	}

	text := fs.SplitLines(content)
	lines, count, err := fn(text.Lines)
	if err != nil {
		return Outcome{}, errors.Errorf("%s: %w", path, err)
	}

	next := text.WithLines(lines).Bytes()

	out := Outcome{
		Lines:  count,
		Before: &Snapshot{Path: path, Content: content},
		After:  &Snapshot{Path: path, Content: next},
	}
	if a.dryRun {
		out.Preview = preview(string(content), string(next))
		return out, nil
	}
	if err := a.ws.WriteFile(path, next); err != nil {
		return Outcome{}, err
	}
	zerolog.Ctx(ctx).Debug().Str("path", path).Int("lines", count).Msg("file rewritten")
	return out, nil
}

func (a *Applier) locate(ctx context.Context, path string, lines []string, needle model.Lines) (int, error) {
	index, err := a.locator.Find(lines, needle.Slice())
	if err == nil {
		return index, nil
	}

	var nf *marker.NotFoundError
	if errors.As(err, &nf) {
		zerolog.Ctx(ctx).Debug().
			Str("path", path).
			Int("best_line", nf.Best+1).
			Float64("similarity", nf.Similarity).
			Strs("candidate", nf.Candidate).
			Strs("needle", nf.Needle).
			Msg("marker near miss")
	}
	return -1, err
}

// trimEcho drops the leading lines of insert that repeat the marker.
func trimEcho(insert, marker []string) []string {
	if model.Lines(marker).IsBlank() || len(insert) < len(marker) {
		return insert
	}
	for i, line := range marker {
		if strings.TrimSpace(insert[i]) != strings.TrimSpace(line) {
			return insert
		}
	}
	return insert[len(marker):]
}

// splice returns lines[:from] + insert + lines[to:] in a new slice.
func splice(lines []string, from, to int, insert []string) []string {
	out := make([]string, 0, len(lines)-(to-from)+len(insert))
	out = append(out, lines[:from]...)
	out = append(out, insert...)
	return append(out, lines[to:]...)
}

func preview(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}
