// Package cli implements savectl, a command-line front end for inspecting
// and editing save slots.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/savestore/internal/config"
	"github.com/calvinalkan/savestore/internal/logging"
	"github.com/calvinalkan/savestore/internal/prefs"
	"github.com/calvinalkan/savestore/internal/saves"
	sfs "github.com/calvinalkan/savestore/pkg/fs"
)

var errNoCommand = errors.New("no command provided")

// app holds what every command of one savectl invocation shares. The save
// engine is opened on first use so that print-config works without a
// writable save directory.
type app struct {
	cfg   config.Config
	in    io.Reader
	log   zerolog.Logger
	reg   *prometheus.Registry
	io    *IO
	sys   *saves.System
	shell bool
}

// Run is the main entry point. Returns exit code.
func Run(stdin io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string) int {
	if len(args) < 2 {
		printUsage(out)
		return 0
	}

	globals := flag.NewFlagSet("savectl", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(&strings.Builder{})

	flagHelp := globals.BoolP("help", "h", false, "Show help")
	flagCwd := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagConfig := globals.StringP("config", "c", "", "Use specified config `file`")
	flagSaveDir := globals.String("save-dir", "", "Override save directory")
	flagLogLevel := globals.String("log-level", "", "Override log level")

	err := globals.Parse(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printGlobalFlags(errOut, globals)

		return 1
	}

	if *flagHelp {
		printUsage(out)
		return 0
	}

	rest := globals.Args()
	if len(rest) == 0 {
		fprintln(errOut, "error:", errNoCommand)
		fprintln(errOut)
		printUsage(errOut)

		return 1
	}

	in := config.Input{WorkDir: *flagCwd, ConfigPath: *flagConfig, Env: env}
	if globals.Changed("save-dir") {
		in.SaveDir = flagSaveDir
	}

	if globals.Changed("log-level") {
		in.LogLevel = flagLogLevel
	}

	cfg, err := config.Load(in)
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printGlobalFlags(errOut, globals)

		return 1
	}

	a := &app{
		cfg: cfg,
		in:  stdin,
		log: logging.New(cfg.Logging(), errOut),
		reg: prometheus.NewRegistry(),
		io:  NewIO(out, errOut),
	}

	return a.dispatch(context.Background(), rest)
}

// dispatch runs one command line against a.
func (a *app) dispatch(ctx context.Context, argv []string) int {
	name := argv[0]

	cmd := a.lookup(name)
	if cmd == nil {
		a.io.ErrPrintln("error: unknown command:", name)

		if !a.shell {
			printUsage(a.io.errOut)
		}

		return 1
	}

	return cmd.Run(ctx, a.io, argv[1:])
}

func (a *app) commands() []*Command {
	cmds := []*Command{
		GetCmd(a),
		SetCmd(a),
		KeysCmd(a),
		RmCmd(a),
		SlotCmd(a),
		LsCmd(a),
		BackupsCmd(a),
		RestoreCmd(a),
		DeleteCmd(a),
		StatusCmd(a),
		PrintConfigCmd(&a.cfg),
	}

	if !a.shell {
		cmds = append(cmds, ShellCmd(a))
	}

	return cmds
}

func (a *app) lookup(name string) *Command {
	cmds := a.commands()

	i := slices.IndexFunc(cmds, func(c *Command) bool { return c.Name() == name })
	if i < 0 {
		return nil
	}

	return cmds[i]
}

// system opens the save engine on first use and reports engine events as
// warnings on the current command.
func (a *app) system() (*saves.System, error) {
	if a.sys != nil {
		return a.sys, nil
	}

	fsys := sfs.NewReal()

	p, err := prefs.Open(fsys, a.cfg.PrefsPath())
	if err != nil {
		return nil, err
	}

	sys, err := saves.Open(saves.Options{
		Dir:            a.cfg.SaveDirAbs,
		FS:             fsys,
		Prefs:          p,
		Logger:         a.log,
		Registerer:     a.reg,
		BackupInterval: a.cfg.Interval,
	})
	if err != nil {
		return nil, err
	}

	sys.OnRestoreFailureDetected(func(path string) {
		a.io.Warn("unrecoverable save data", path+" and all of its backups were unreadable; it was reset to empty")
	})
	sys.OnTimeTravel(func(key string, stored, now time.Time) {
		a.io.Warn("clock moved backwards", fmt.Sprintf("%s was %s, clamped to %s", key, stored.Format(time.RFC3339), now.Format(time.RFC3339)))
	})

	a.sys = sys

	return sys, nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printGlobalFlags(w io.Writer, fs *flag.FlagSet) {
	fprintln(w, "Global flags:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fs.SetOutput(&strings.Builder{})
}

func printUsage(w io.Writer) {
	fprintln(w, `savectl - inspect and edit save slots

Usage: savectl [flags] <command> [args]

Flags:
  -C, --cwd <dir>        Run as if started in <dir>
  -c, --config <file>    Use specified config file
      --save-dir <dir>   Override save directory
      --log-level <lvl>  Override log level
  -h, --help             Show help

Commands:`)

	a := &app{}
	for _, cmd := range a.commands() {
		fprintln(w, cmd.HelpLine())
	}
}
