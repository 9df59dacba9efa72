package cli

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubExec records which commands the REPL dispatched.
type stubExec struct {
	calls []string
}

func (s *stubExec) note(name string, args ...string) error {
	s.calls = append(s.calls, strings.Join(append([]string{name}, args...), " "))
	return nil
}

func (s *stubExec) Add(ctx context.Context) error             { return s.note("add") }
func (s *stubExec) List(ctx context.Context) error            { return s.note("list") }
func (s *stubExec) Show(ctx context.Context, id string) error { return s.note("show", id) }
func (s *stubExec) Search(ctx context.Context, term string) error {
	return s.note("search", term)
}
func (s *stubExec) Pay(ctx context.Context, id string) error    { return s.note("pay", id) }
func (s *stubExec) Delete(ctx context.Context, id string) error { return s.note("delete", id) }
func (s *stubExec) Sync(ctx context.Context) error              { return s.note("sync") }
func (s *stubExec) Backup(ctx context.Context) error            { return s.note("backup") }
func (s *stubExec) Backups(ctx context.Context) error           { return s.note("backups") }
func (s *stubExec) Restore(ctx context.Context, id string) error {
	return s.note("restore", id)
}
func (s *stubExec) Export(ctx context.Context, path string) error {
	return s.note("export", path)
}
func (s *stubExec) Import(ctx context.Context, path string) error {
	return s.note("import", path)
}
func (s *stubExec) Diag(ctx context.Context) error { return s.note("diag") }

func runScript(t *testing.T, script string) (*stubExec, string) {
	t.Helper()
	stub := &stubExec{}
	var out bytes.Buffer
	runREPL(context.Background(), stub, bufio.NewReader(strings.NewReader(script)), &out)
	return stub, out.String()
}

func TestREPL_DispatchesCommands(t *testing.T) {
	stub, _ := runScript(t, "add\nlist\nshow UNI_1\nsearch jane doe\npay UNI_1\ndelete UNI_1\nsync\ndiag\nexit\n")

	assert.Equal(t, []string{
		"add", "list", "show UNI_1", "search jane doe",
		"pay UNI_1", "delete UNI_1", "sync", "diag",
	}, stub.calls)
}

func TestREPL_UsageForMissingArgs(t *testing.T) {
	stub, out := runScript(t, "show\nsearch\npay\ndelete\nrestore\nexport\nimport\nexit\n")

	assert.Empty(t, stub.calls)
	assert.Contains(t, out, "Usage: show <id>")
	assert.Contains(t, out, "Usage: export <file>")
}

func TestREPL_UnknownCommand(t *testing.T) {
	_, out := runScript(t, "bogus\nexit\n")
	assert.Contains(t, out, "Unknown command: bogus")
}

func TestREPL_ExitsOnEOF(t *testing.T) {
	stub, _ := runScript(t, "list\n")
	assert.Equal(t, []string{"list"}, stub.calls)
}

func TestREPL_BackupCommands(t *testing.T) {
	stub, _ := runScript(t, "backup\nbackups\nrestore latest\nquit\n")
	assert.Equal(t, []string{"backup", "backups", "restore latest"}, stub.calls)
}

// promptingExec answers its Add command by reading prompt lines from the
// same reader the command loop uses.
type promptingExec struct {
	stubExec
	reader *bufio.Reader
	out    *bytes.Buffer
	fields []string
}

func (p *promptingExec) Add(ctx context.Context) error {
	for _, prompt := range []string{"First name", "Email"} {
		v, err := GetSimpleText(p.reader, prompt, p.out)
		if err != nil {
			return err
		}
		p.fields = append(p.fields, v)
	}
	return p.note("add")
}

func TestREPL_PipedInputReachesPrompts(t *testing.T) {
	var out bytes.Buffer
	reader := bufio.NewReader(strings.NewReader("add\nJane\njane@example.com\nlist\nexit\n"))
	stub := &promptingExec{reader: reader, out: &out}

	runREPL(context.Background(), stub, reader, &out)

	assert.Equal(t, []string{"Jane", "jane@example.com"}, stub.fields)
	assert.Equal(t, []string{"add", "list"}, stub.calls)
}
