// Package nvim asks a running Neovim to reload buffers of files changed on
// disk.
package nvim

import (
	"context"
	"os"

	"github.com/neovim/go-client/nvim"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Address returns the RPC address of the surrounding Neovim, if any.
func Address() string {
	if addr := os.Getenv("NVIM"); addr != "" {
		return addr
	}
	return os.Getenv("NVIM_LISTEN_ADDRESS")
}

// Notifier refreshes buffers in the Neovim listening on Addr.
type Notifier struct {
	Addr string
}

// New returns a Notifier for the surrounding Neovim, or nil when there is none.
func New() *Notifier {
	addr := Address()
	if addr == "" {
		return nil
	}
	return &Notifier{Addr: addr}
}

// Refresh runs checktime so buffers showing any of paths pick up the new
// content. A nil Notifier does nothing.
func (n *Notifier) Refresh(ctx context.Context, paths []string) error {
	if n == nil || n.Addr == "" || len(paths) == 0 {
		return nil
	}

	v, err := nvim.Dial(n.Addr, nvim.DialContext(ctx))
	if err != nil {
		return errors.Errorf("connecting to neovim at %s: %w", n.Addr, err)
	}
	defer v.Close()

	b := v.NewBatch()
	b.Command("silent! checktime")
	if err := b.Execute(); err != nil {
		return errors.Errorf("running checktime: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Str("addr", n.Addr).Int("files", len(paths)).Msg("neovim buffers refreshed")
	return nil
}
