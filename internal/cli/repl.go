package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a
// lightweight stub.
type execIface interface {
	Add(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context, id string) error
	Search(ctx context.Context, term string) error
	Pay(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Sync(ctx context.Context) error
	Backup(ctx context.Context) error
	Backups(ctx context.Context) error
	Restore(ctx context.Context, id string) error
	Export(ctx context.Context, path string) error
	Import(ctx context.Context, path string) error
	Diag(ctx context.Context) error
}

const helpText = `Available commands:
  add              register a new record (interactive)
  list | l         list all records
  show <id>        show a record with its payments
  search <term>    search by name, email or phone
  pay <id>         record a payment for a record
  delete <id>      delete a record
  sync             trigger an immediate sync sweep
  backup           create a dated snapshot now
  backups          list stored snapshots
  restore <id>     replay a snapshot into the store
  export <file>    write all records to a JSON file
  import <file>    merge records from a JSON file
  diag             show store diagnostics
  exit | quit      leave the program`

// runREPL reads commands line by line from reader and dispatches them to a.
// The loop exits on EOF, on ctx cancellation checked between commands, or
// when the user types "exit" or "quit".
//
// The same buffered reader serves the command loop and the interactive
// prompts inside commands, so piped input is consumed strictly in order
// and nothing is buffered past the line being handled.
//
// Errors returned by command handlers are printed and the loop continues;
// a failed command never terminates the session.
func runREPL(ctx context.Context, a execIface, reader *bufio.Reader, w io.Writer) {
	fmt.Fprintln(w, "regvault console (type 'help' for commands)")

	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprint(w, "regvault> ")
		line, rerr := reader.ReadString('\n')
		parts := strings.Fields(line)
		if len(parts) == 0 {
			if rerr != nil {
				return
			}
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			fmt.Fprintln(w, helpText)

		case "add":
			err = a.Add(ctx)

		case "l", "list":
			err = a.List(ctx)

		case "show":
			if len(args) == 0 {
				fmt.Fprintln(w, "Usage: show <id>")
				continue
			}
			err = a.Show(ctx, args[0])

		case "search":
			if len(args) == 0 {
				fmt.Fprintln(w, "Usage: search <term>")
				continue
			}
			err = a.Search(ctx, strings.Join(args, " "))

		case "pay":
			if len(args) == 0 {
				fmt.Fprintln(w, "Usage: pay <id>")
				continue
			}
			err = a.Pay(ctx, args[0])

		case "delete":
			if len(args) == 0 {
				fmt.Fprintln(w, "Usage: delete <id>")
				continue
			}
			err = a.Delete(ctx, args[0])

		case "sync":
			err = a.Sync(ctx)

		case "backup":
			err = a.Backup(ctx)

		case "backups":
			err = a.Backups(ctx)

		case "restore":
			if len(args) == 0 {
				fmt.Fprintln(w, "Usage: restore <id>")
				continue
			}
			err = a.Restore(ctx, args[0])

		case "export":
			if len(args) == 0 {
				fmt.Fprintln(w, "Usage: export <file>")
				continue
			}
			err = a.Export(ctx, args[0])

		case "import":
			if len(args) == 0 {
				fmt.Fprintln(w, "Usage: import <file>")
				continue
			}
			err = a.Import(ctx, args[0])

		case "diag":
			err = a.Diag(ctx)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if err != nil {
			fmt.Fprintln(w, "Error:", err)
		}
		if rerr != nil {
			return
		}
	}
}
