package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/savestore/internal/saves"
)

var errIndexRequired = errors.New("--index is required")

// BackupsCmd returns the backups command.
func BackupsCmd(a *app) *Command {
	flags := flag.NewFlagSet("backups", flag.ContinueOnError)
	slot := flags.IntP("slot", "s", 0, "Slot to inspect (default: current)")

	return &Command{
		Flags: flags,
		Usage: "backups [--slot n]",
		Short: "List the indexed backups of a slot",
		Long: `List the ten indexed backups of a slot with the save time each one was
copied from. Numbers match the .bac.NN file suffix and the restore --index flag.`,
		Exec: func(_ context.Context, o *IO, _ []string) error {
			sys, err := a.system()
			if err != nil {
				return err
			}

			n := *slot
			if n == 0 {
				n = sys.Slot()
			}

			for _, b := range sys.Backups(n) {
				when := "-"
				if b.TimeValid() {
					when = b.Time().Format(time.RFC3339)
				}

				state := "missing"
				if b.Exists {
					state = "present"
				}

				o.Printf("%02d %-7s %s\n", b.Index+1, state, when)
			}

			return nil
		},
	}
}

// RestoreCmd returns the restore command.
func RestoreCmd(a *app) *Command {
	flags := flag.NewFlagSet("restore", flag.ContinueOnError)
	index := flags.IntP("index", "i", 0, fmt.Sprintf("Backup number, 1-%d", saves.MaxIndexedBackups))
	slot := flags.IntP("slot", "s", 0, "Slot to restore (default: current)")

	return &Command{
		Flags: flags,
		Usage: "restore --index i [--slot n]",
		Short: "Replace a slot with one of its indexed backups",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			if !flags.Changed("index") {
				return errIndexRequired
			}

			sys, err := a.system()
			if err != nil {
				return err
			}

			n := *slot
			if n == 0 {
				n = sys.Slot()
			}

			err = sys.RestoreIndexedBackup(n, *index-1)
			if err != nil {
				return err
			}

			o.Printf("restored slot %d from backup %02d\n", n, *index)

			return nil
		},
	}
}
