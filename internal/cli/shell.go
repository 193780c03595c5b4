package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
)

// lineReader is the part of a line editor the shell needs.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// ShellCmd returns the shell command.
func ShellCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell",
		Short: "Run commands interactively against one engine",
		Long: `Start an interactive shell. Every savectl command is available without the
"savectl" prefix and runs against the same loaded engine, so recovery and
clock warnings are reported once. Type "help" for commands and "exit" to quit.`,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return a.runShell(ctx, o)
		},
	}
}

func (a *app) runShell(ctx context.Context, o *IO) error {
	a.shell = true
	defer func() { a.shell = false }()

	lr := a.newLineReader()
	defer func() { _ = lr.Close() }()

	_, err := a.system()
	if err != nil {
		return err
	}

	o.Println(`savectl shell, type "help" for commands.`)

	for {
		line, err := lr.Prompt("savectl> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lr.AppendHistory(line)

		argv := strings.Fields(line)

		switch argv[0] {
		case "exit", "quit", "q":
			return nil
		case "help", "?":
			for _, cmd := range a.commands() {
				o.Println(cmd.HelpLine())
			}

			o.Println("  exit")

			continue
		}

		// Per-command exit codes only matter for warnings already printed.
		_ = a.dispatch(ctx, argv)
	}
}

// newLineReader returns a liner editor with history when attached to the
// process stdin, and a plain line scanner otherwise.
func (a *app) newLineReader() lineReader {
	if f, ok := a.in.(*os.File); ok && f == os.Stdin {
		return newLinerReader(a.commands())
	}

	return &scanReader{sc: bufio.NewScanner(a.in)}
}

type linerReader struct {
	*liner.State
	history string
}

func newLinerReader(cmds []*Command) *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)

	names := []string{"exit", "help"}
	for _, c := range cmds {
		names = append(names, c.Name())
	}

	state.SetCompleter(func(line string) []string {
		var out []string

		for _, n := range names {
			if strings.HasPrefix(n, line) {
				out = append(out, n)
			}
		}

		return out
	})

	lr := &linerReader{State: state}

	if home, err := os.UserHomeDir(); err == nil {
		lr.history = filepath.Join(home, ".savectl_history")

		if f, err := os.Open(lr.history); err == nil {
			_, _ = state.ReadHistory(f)
			_ = f.Close()
		}
	}

	return lr
}

func (l *linerReader) Close() error {
	if l.history != "" {
		if f, err := os.Create(l.history); err == nil {
			_, _ = l.WriteHistory(f)
			_ = f.Close()
		}
	}

	return l.State.Close()
}

// scanReader reads commands from a non-interactive stream.
type scanReader struct {
	sc *bufio.Scanner
}

func (s *scanReader) Prompt(string) (string, error) {
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}

	if err := s.sc.Err(); err != nil {
		return "", err
	}

	return "", io.EOF
}

func (*scanReader) AppendHistory(string) {}

func (*scanReader) Close() error { return nil }
