package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/llm2fs/model"
)

// Workspace is the file tree edits are applied to. All paths are relative to
// its root.
type Workspace struct {
	fs   billy.Filesystem
	root string
}

// NewWorkspace opens the directory at root. The filesystem is bound to root,
// so symlinks cannot lead outside it.
func NewWorkspace(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Errorf("resolving workspace root %q: %w", root, err)
	}
	return &Workspace{fs: osfs.New(abs, osfs.WithBoundOS()), root: abs}, nil
}

// NewWorkspaceFS wraps an existing filesystem, e.g. memfs in tests.
func NewWorkspaceFS(fs billy.Filesystem) *Workspace {
	return &Workspace{fs: fs, root: fs.Root()}
}

// Root returns the workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// CheckPath validates a relative path from a payload and returns its cleaned
// form. Absolute paths and paths climbing above the root are rejected.
func CheckPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.Errorf("%w: empty path", model.ErrPathEscapesRoot)
	}
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) || filepath.VolumeName(p) != "" {
		return "", errors.Errorf("%w: %s is absolute", model.ErrPathEscapesRoot, p)
	}
	clean := filepath.Clean(filepath.FromSlash(p))
	if clean == "." {
		return "", errors.Errorf("%w: %s names the root itself", model.ErrPathEscapesRoot, p)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("%w: %s", model.ErrPathEscapesRoot, p)
	}
	return clean, nil
}

// Exists reports whether path exists.
func (w *Workspace) Exists(path string) (bool, error) {
	_, err := w.fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Errorf("%w: stat %s: %w", model.ErrIO, path, err)
}

// ReadFile returns the content of path.
func (w *Workspace) ReadFile(path string) ([]byte, error) {
	data, err := util.ReadFile(w.fs, path)
	if err != nil {
		return nil, classify(err, "reading", path)
	}
	return data, nil
}

var tempCounter atomic.Uint64

// WriteFile replaces the content of path. Data goes to a temporary file in
// the same directory which is then renamed over path; the original file mode
// is kept. Missing parent directories are created.
func (w *Workspace) WriteFile(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := w.fs.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return classify(err, "creating directory", dir)
		}
	}

	tmpName := filepath.Join(dir, fmt.Sprintf(".%s.llm2fs-%d-%d.tmp",
		filepath.Base(path), time.Now().UnixNano(), tempCounter.Add(1)))
	tmp, err := w.fs.OpenFile(tmpName, os.O_RDWR|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return classify(err, "creating temp file for", path)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = w.fs.Remove(tmpName)
		return classify(err, "writing", path)
	}
	if err := tmp.Close(); err != nil {
		_ = w.fs.Remove(tmpName)
		return classify(err, "closing temp file for", path)
	}

	if ch, ok := w.fs.(billy.Change); ok {
		_ = ch.Chmod(tmpName, mode)
	}

	if err := w.fs.Rename(tmpName, path); err != nil {
		_ = w.fs.Remove(tmpName)
		return classify(err, "replacing", path)
	}
	return nil
}

// Remove deletes the file at path.
func (w *Workspace) Remove(path string) error {
	if err := w.fs.Remove(path); err != nil {
		return classify(err, "removing", path)
	}
	return nil
}

// Rename moves from to to, creating the destination directory if needed.
func (w *Workspace) Rename(from, to string) error {
	if dir := filepath.Dir(to); dir != "." {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return classify(err, "creating directory", dir)
		}
	}
	if err := w.fs.Rename(from, to); err != nil {
		return classify(err, "renaming", from)
	}
	return nil
}

// RemoveEmptyParents removes the now-empty directories above path, stopping
// at the root or the first non-empty directory.
func (w *Workspace) RemoveEmptyParents(path string) {
	for dir := filepath.Dir(path); dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
		entries, err := w.fs.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := w.fs.Remove(dir); err != nil {
			return
		}
	}
}

// FileSHA256 returns the hex digest of the file content, or "" when the file
// does not exist.
func (w *Workspace) FileSHA256(path string) (string, error) {
	data, err := w.ReadFile(path)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return SHA256(data), nil
}

// SHA256 returns the hex digest of data.
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func classify(err error, action, path string) error {
	if errors.Is(err, os.ErrNotExist) {
		return errors.Errorf("%w: %s %s: %w", model.ErrNotFound, action, path, err)
	}
	return errors.Errorf("%w: %s %s: %w", model.ErrIO, action, path, err)
}
