package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
)

var (
	errInvalidSlot = errors.New("slot must be a positive integer")
	errSlotMissing = errors.New("slot is required")
)

func parseSlot(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w (got: %q)", errInvalidSlot, s)
	}

	return n, nil
}

// SlotCmd returns the slot command.
func SlotCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("slot", flag.ContinueOnError),
		Usage: "slot [<n>]",
		Short: "Show or switch the current slot",
		Long: `Show the current slot, or switch to slot n.

Switching loads the slot (repairing it from backups if needed) and remembers
it as the current slot for later invocations.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			sys, err := a.system()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				o.Println(sys.Slot())
				return nil
			}

			n, err := parseSlot(args[0])
			if err != nil {
				return err
			}

			err = sys.SetFile(n)
			if err != nil {
				return err
			}

			o.Println(sys.Slot())

			return nil
		},
	}
}

// LsCmd returns the ls command.
func LsCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("ls", flag.ContinueOnError),
		Usage: "ls",
		Short: "List slots that have a save file",
				Exec: func(_ context.Context, o *IO, _ []string) error {
			sys, err := a.system()
			if err != nil {
				return err
			}

			slots, err := sys.Slots()
			if err != nil {
				return err
			}

			current := sys.Slot()

			for _, slot := range slots {
				if slot == current {
					o.Printf("slot %d (current)\n", slot)
				} else {
					o.Printf("slot %d\n", slot)
				}
			}

			return nil
		},
	}
}

// DeleteCmd returns the delete command.
func DeleteCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("delete", flag.ContinueOnError),
		Usage: "delete <slot>",
		Short: "Delete a slot and all of its backups",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 1 {
				return errSlotMissing
			}

			n, err := parseSlot(args[0])
			if err != nil {
				return err
			}

			sys, err := a.system()
			if err != nil {
				return err
			}

			err = sys.DeleteSave(n)
			if err != nil {
				return err
			}

			o.Println("deleted slot", n)

			return nil
		},
	}
}

// StatusCmd returns the status command.
func StatusCmd(a *app) *Command {
	return &Command{
		Flags: flag.NewFlagSet("status", flag.ContinueOnError),
		Usage: "status",
		Short: "Show the current slot and engine counters",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			sys, err := a.system()
			if err != nil {
				return err
			}

			pc := sys.Context()

			o.Println("slot=" + strconv.Itoa(pc.Slot))
			o.Println("path=" + pc.Path)
			o.Println("save_id=" + sys.SaveID())

			if t, ok := sys.LastSaveTime(); ok {
				o.Println("last_save=" + t.Format(time.RFC3339))
			} else {
				o.Println("last_save=never")
			}

			o.Println("restore_failed=" + strconv.FormatBool(sys.RestoreFailed()))

			return a.printCounters(o)
		},
	}
}

// printCounters prints every non-zero engine counter of this invocation.
func (a *app) printCounters(o *IO) error {
	families, err := a.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			c := m.GetCounter()
			if c == nil || c.GetValue() == 0 {
				continue
			}

			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}

			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}

			o.Printf("%s %g\n", name, c.GetValue())
		}
	}

	return nil
}
