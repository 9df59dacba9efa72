// Package cli implements the interactive console for a regvault store:
// a small REPL for registering, inspecting and syncing records.
package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dsall/regvault/internal/backup"
	"github.com/dsall/regvault/internal/bus"
	"github.com/dsall/regvault/internal/services"
)

// App binds the REPL to an assembled store.
type App struct {
	store   *services.Store
	backups *backup.Manager
	changes *bus.Bus

	reader *bufio.Reader
	out    io.Writer
}

// NewApp wraps an already-wired store stack for console use. Input is read
// from stdin and output goes to stdout.
func NewApp(store *services.Store, backups *backup.Manager, changes *bus.Bus) *App {
	return &App{
		store:   store,
		backups: backups,
		changes: changes,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}
}

// Run starts the REPL and blocks until the user exits or ctx is cancelled.
// Commands and the prompts inside them read from the same buffered reader.
func (a *App) Run(ctx context.Context) {
	runREPL(ctx, a, a.reader, a.out)
}
