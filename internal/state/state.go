// Package state keeps the undo/redo history of applied runs.
package state

import (
	"bytes"
	"context"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/sokinpui/llm2fs/internal/fs"
	"github.com/sokinpui/llm2fs/model"
)

const (
	// DirName is the history directory inside the workspace.
	DirName    = ".llm2fs"
	stateFile  = "state.yaml"
	objectsDir = "objects"
)

var (
	ErrNothingToUndo = errors.Base("no operation to undo")
	ErrNothingToRedo = errors.Base("no operation to redo")
	// ErrConflict means a file changed since the history entry was written.
	ErrConflict = errors.Base("file changed since it was last written")
)

// Action is what an operation did to the file tree.
type Action string

const (
	ActionCreate Action = "create"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
	ActionRename Action = "rename"
)

// Operation records one file transition. Before and After are SHA-256 digests
// of the content; an empty digest means the file did not exist.
type Operation struct {
	Action  Action `yaml:"action"`
	Path    string `yaml:"path"`
	NewPath string `yaml:"new_path,omitempty"`
	Before  string `yaml:"before,omitempty"`
	After   string `yaml:"after,omitempty"`
}

// HistoryEntry represents one complete run of the tool.
type HistoryEntry struct {
	Timestamp  int64       `yaml:"timestamp"`
	Operations []Operation `yaml:"operations"`
}

// State is the content of the state file.
type State struct {
	CurrentIndex int            `yaml:"current_index"`
	History      []HistoryEntry `yaml:"history"`
}

// Version is the content of a file at one moment.
type Version struct {
	Path    string
	Content []byte
}

// Manager reads and writes the history stored in the workspace.
type Manager struct {
	ws    *fs.Workspace
	state *State
	now   func() time.Time
}

// New loads the history of ws. A missing state file yields an empty history.
func New(ws *fs.Workspace) (*Manager, error) {
	m := &Manager{ws: ws, now: time.Now}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func statePath() string {
	return filepath.Join(DirName, stateFile)
}

func objectPath(hash string) string {
	return filepath.Join(DirName, objectsDir, hash)
}

func (m *Manager) load() error {
	data, err := m.ws.ReadFile(statePath())
	if errors.Is(err, model.ErrNotFound) {
		m.state = &State{CurrentIndex: -1}
		return nil
	}
	if err != nil {
		return err
	}

	var st State
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&st); err != nil {
		return errors.Errorf("invalid state file %s: %w", statePath(), err)
	}
	if st.CurrentIndex < -1 || st.CurrentIndex >= len(st.History) {
		return errors.Errorf("invalid state file %s: current_index %d out of range", statePath(), st.CurrentIndex)
	}
	m.state = &st
	return nil
}

func (m *Manager) save() error {
	data, err := yaml.Marshal(m.state)
	if err != nil {
		return errors.Errorf("encoding state: %w", err)
	}
	ignore := filepath.Join(DirName, ".gitignore")
	if ok, _ := m.ws.Exists(ignore); !ok {
		if err := m.ws.WriteFile(ignore, []byte("*\n")); err != nil {
			return err
		}
	}
	return m.ws.WriteFile(statePath(), data)
}

// State returns a copy of the current history.
func (m *Manager) State() State {
	st := *m.state
	st.History = slices.Clone(m.state.History)
	return st
}

func (m *Manager) store(content []byte) (string, error) {
	hash := fs.SHA256(content)
	path := objectPath(hash)
	if ok, err := m.ws.Exists(path); err != nil || ok {
		return hash, err
	}
	if err := m.ws.WriteFile(path, content); err != nil {
		return "", err
	}
	return hash, nil
}

// Capture stores both versions of a file and returns the operation between
// them. A nil before means the file was created, a nil after that it was
// deleted.
func (m *Manager) Capture(before, after *Version) (Operation, error) {
	var op Operation
	switch {
	case before == nil && after == nil:
		return op, errors.New("capturing an operation without any version")
	case before == nil:
		op = Operation{Action: ActionCreate, Path: after.Path}
	case after == nil:
		op = Operation{Action: ActionDelete, Path: before.Path}
	case before.Path != after.Path:
		op = Operation{Action: ActionRename, Path: before.Path, NewPath: after.Path}
	default:
		op = Operation{Action: ActionModify, Path: before.Path}
	}

	var err error
	if before != nil {
		if op.Before, err = m.store(before.Content); err != nil {
			return Operation{}, err
		}
	}
	if after != nil {
		if op.After, err = m.store(after.Content); err != nil {
			return Operation{}, err
		}
	}
	return op, nil
}

// Write appends a run to the history, dropping any undone entries after the
// current one.
func (m *Manager) Write(ops []Operation) error {
	if len(ops) == 0 {
		return nil
	}
	m.state.History = append(m.state.History[:m.state.CurrentIndex+1], HistoryEntry{
		Timestamp:  m.now().UTC().Unix(),
		Operations: ops,
	})
	m.state.CurrentIndex++
	return m.save()
}

// Undo reverts the current history entry and returns the paths it restored.
// Nothing is touched if any file differs from what the entry wrote.
func (m *Manager) Undo(ctx context.Context) ([]string, error) {
	if m.state.CurrentIndex < 0 {
		return nil, errors.WithStack(ErrNothingToUndo)
	}
	ops := slices.Clone(m.state.History[m.state.CurrentIndex].Operations)
	slices.Reverse(ops)

	paths, err := m.transition(ctx, ops, Operation.post, Operation.pre)
	if err != nil {
		return nil, err
	}
	m.state.CurrentIndex--
	return paths, m.save()
}

// Redo re-applies the next undone entry.
func (m *Manager) Redo(ctx context.Context) ([]string, error) {
	next := m.state.CurrentIndex + 1
	if next >= len(m.state.History) {
		return nil, errors.WithStack(ErrNothingToRedo)
	}
	ops := m.state.History[next].Operations

	paths, err := m.transition(ctx, ops, Operation.pre, Operation.post)
	if err != nil {
		return nil, err
	}
	m.state.CurrentIndex = next
	return paths, m.save()
}

// pre returns the digest of every path the operation touches before it ran.
func (op Operation) pre() map[string]string {
	if op.Action == ActionRename {
		return map[string]string{op.Path: op.Before, op.NewPath: ""}
	}
	return map[string]string{op.Path: op.Before}
}

// post returns the digest of every path the operation touches after it ran.
func (op Operation) post() map[string]string {
	if op.Action == ActionRename {
		return map[string]string{op.Path: "", op.NewPath: op.After}
	}
	return map[string]string{op.Path: op.After}
}

// transition moves every operation from its from-state to its to-state. The
// whole sequence is simulated first, so a conflict leaves the tree untouched.
func (m *Manager) transition(ctx context.Context, ops []Operation, from, to func(Operation) map[string]string) ([]string, error) {
	current := make(map[string]string)
	hashOf := func(path string) (string, error) {
		if h, ok := current[path]; ok {
			return h, nil
		}
		return m.ws.FileSHA256(path)
	}

	var conflicts []string
	for _, op := range ops {
		for path, want := range from(op) {
			got, err := hashOf(path)
			if err != nil {
				return nil, err
			}
			if got != want {
				conflicts = append(conflicts, path)
			}
		}
		for path, h := range to(op) {
			current[path] = h
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return nil, errors.Errorf("%w: %v", ErrConflict, slices.Compact(conflicts))
	}

	paths := make([]string, 0, len(current))
	for path := range current {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := m.restore(path, current[path]); err != nil {
			return nil, err
		}
		zerolog.Ctx(ctx).Debug().Str("path", path).Str("sha256", current[path]).Msg("restored")
	}
	return paths, nil
}

func (m *Manager) restore(path, hash string) error {
	if hash == "" {
		exists, err := m.ws.Exists(path)
		if err != nil || !exists {
			return err
		}
		if err := m.ws.Remove(path); err != nil {
			return err
		}
		m.ws.RemoveEmptyParents(path)
		return nil
	}

	content, err := m.ws.ReadFile(objectPath(hash))
	if err != nil {
		return errors.Errorf("loading stored content for %s: %w", path, err)
	}
	return m.ws.WriteFile(path, content)
}
