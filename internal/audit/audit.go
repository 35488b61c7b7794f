// Package audit keeps a verbatim copy of every payload received.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"gitlab.com/tozd/go/errors"
)

// DefaultDir is where payloads are saved unless configured otherwise.
const DefaultDir = "llm2fs_changes"

const layout = "2006-01-02-15-04-05"

// Store writes raw payloads to timestamped files.
type Store struct {
	fs billy.Filesystem
}

// New returns a Store saving into dir, created on first save.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Errorf("resolving audit directory %q: %w", dir, err)
	}
	return &Store{fs: osfs.New(abs, osfs.WithBoundOS())}, nil
}

// NewFS returns a Store saving into the root of fs.
func NewFS(fs billy.Filesystem) *Store {
	return &Store{fs: fs}
}

// Save writes raw unchanged to <timestamp>.txt and returns the file name,
// adding a -N suffix when that name is taken.
func (s *Store) Save(raw string, now time.Time) (string, error) {
	stamp := now.Format(layout)
	for n := 0; ; n++ {
		name := stamp + ".txt"
		if n > 0 {
			name = fmt.Sprintf("%s-%d.txt", stamp, n)
		}

		f, err := s.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", errors.Errorf("creating audit file %s: %w", name, err)
		}

		if _, err := f.Write([]byte(raw)); err != nil {
			_ = f.Close()
			return "", errors.Errorf("writing audit file %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return "", errors.Errorf("closing audit file %s: %w", name, err)
		}
		return s.fs.Join(s.fs.Root(), name), nil
	}
}
