package fs

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/llm2fs/model"
)

// DefaultProtected lists paths payloads may never touch.
var DefaultProtected = []string{".git", ".git/**", ".llm2fs", ".llm2fs/**"}

// Guard rejects paths matching any of its doublestar patterns.
type Guard struct {
	patterns []string
}

// NewGuard validates the patterns and returns a Guard.
func NewGuard(patterns []string) (*Guard, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf("invalid protected pattern %q", p)
		}
	}
	return &Guard{patterns: patterns}, nil
}

// Check validates p with CheckPath and against the protected patterns.
func (g *Guard) Check(p string) (string, error) {
	clean, err := CheckPath(p)
	if err != nil {
		return "", err
	}
	if g == nil {
		return clean, nil
	}
	slashed := filepath.ToSlash(clean)
	for _, pattern := range g.patterns {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return "", errors.Errorf("%w: %s matches %q", model.ErrPathProtected, p, pattern)
		}
	}
	return clean, nil
}
