// Package source reads the raw payload from a file, stdin or the clipboard.
package source

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Provider determines and retrieves the source content.
type Provider struct {
	// Input is a file to read instead of stdin or the clipboard.
	Input string

	stdin     io.Reader
	piped     func() bool
	clipboard func() (string, error)
}

// New creates a Provider reading from the process stdin and system clipboard.
func New(input string) *Provider {
	return &Provider{
		Input: input,
		stdin: os.Stdin,
		piped: func() bool {
			fd := os.Stdin.Fd()
			return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
		},
		clipboard: clipboard.ReadAll,
	}
}

// Content returns the payload text: the input file if set, stdin when it is
// piped, the clipboard otherwise. Whitespace-only content comes back as "".
func (p *Provider) Content(ctx context.Context) (string, error) {
	log := zerolog.Ctx(ctx)

	var (
		content string
		from    string
	)
	switch {
	case p.Input == "-":
		data, err := io.ReadAll(p.stdin)
		if err != nil {
			return "", errors.Errorf("reading stdin: %w", err)
		}
		content, from = string(data), "stdin"
	case p.Input != "":
		data, err := os.ReadFile(p.Input)
		if err != nil {
			return "", errors.Errorf("reading input file: %w", err)
		}
		content, from = string(data), p.Input
	case p.piped != nil && p.piped():
		data, err := io.ReadAll(p.stdin)
		if err != nil {
			return "", errors.Errorf("reading stdin: %w", err)
		}
		content, from = string(data), "stdin"
	default:
		text, err := p.clipboard()
		if err != nil {
			return "", errors.Errorf("reading clipboard: %w", err)
		}
		content, from = text, "clipboard"
	}

	log.Debug().Str("source", from).Int("bytes", len(content)).Msg("payload read")
	if strings.TrimSpace(content) == "" {
		return "", nil
	}
	return content, nil
}
