package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/savestore/internal/saves"
)

var (
	errKeyRequired   = errors.New("key is required")
	errValueRequired = errors.New("value is required")
)

// GetCmd returns the get command.
func GetCmd(a *app) *Command {
	flags := flag.NewFlagSet("get", flag.ContinueOnError)
	global := flags.BoolP("global", "g", false, "Read from the global store")

	return &Command{
		Flags: flags,
		Usage: "get <key> [--global]",
		Short: "Print the JSON value stored under a key",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 1 {
				return errKeyRequired
			}

			sys, err := a.system()
			if err != nil {
				return err
			}

			raw, err := loadRaw(sys, args[0], *global)
			if err != nil {
				return err
			}

			o.Println(string(raw))

			return nil
		},
	}
}

func loadRaw(sys *saves.System, key string, global bool) (json.RawMessage, error) {
	if !global {
		return saves.Load[json.RawMessage](sys, key)
	}

	if !sys.GlobalKeyExists(key) {
		return nil, fmt.Errorf("%w: %s", saves.ErrKeyNotFound, key)
	}

	return saves.LoadGlobal[json.RawMessage](sys, key, nil), nil
}

// SetCmd returns the set command.
func SetCmd(a *app) *Command {
	flags := flag.NewFlagSet("set", flag.ContinueOnError)
	global := flags.BoolP("global", "g", false, "Write to the global store")

	return &Command{
		Flags: flags,
		Usage: "set <key> <value> [--global]",
		Short: "Store a value and commit it",
		Long: `Store a value under key and commit it to disk.

The value is parsed as JSON. Anything that is not valid JSON is stored as a
string, so "set Name farmer" and "set Name '\"farmer\"'" are equivalent.
Slot values are committed with a full save, which also rotates backups.`,
		Exec: func(_ context.Context, _ *IO, args []string) error {
			if len(args) < 1 {
				return errKeyRequired
			}

			if len(args) < 2 {
				return errValueRequired
			}

			sys, err := a.system()
			if err != nil {
				return err
			}

			value := parseValue(args[1])

			if *global {
				return saves.SaveGlobal(sys, args[0], value)
			}

			err = saves.Save(sys, args[0], value)
			if err != nil {
				return err
			}

			return sys.SaveFile()
		},
	}
}

func parseValue(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}

	quoted, _ := json.Marshal(s)

	return quoted
}

// KeysCmd returns the keys command.
func KeysCmd(a *app) *Command {
	flags := flag.NewFlagSet("keys", flag.ContinueOnError)
	global := flags.BoolP("global", "g", false, "List the global store")

	return &Command{
		Flags: flags,
		Usage: "keys [--global]",
		Short: "List stored keys",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			sys, err := a.system()
			if err != nil {
				return err
			}

			var keys []string
			if *global {
				keys = sys.GlobalKeys()
			} else {
				keys = sys.Keys()
			}

			for _, k := range keys {
				o.Println(k)
			}

			return nil
		},
	}
}

// RmCmd returns the rm command.
func RmCmd(a *app) *Command {
	flags := flag.NewFlagSet("rm", flag.ContinueOnError)
	global := flags.BoolP("global", "g", false, "Remove from the global store")

	return &Command{
		Flags: flags,
		Usage: "rm <key> [--global]",
		Short: "Remove a key and commit",
		Exec: func(_ context.Context, _ *IO, args []string) error {
			if len(args) < 1 {
				return errKeyRequired
			}

			sys, err := a.system()
			if err != nil {
				return err
			}

			if *global {
				return sys.DeleteGlobalKey(args[0])
			}

			err = sys.DeleteKey(args[0])
			if err != nil {
				return err
			}

			return sys.SaveFile()
		},
	}
}
