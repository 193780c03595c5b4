package cli_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calvinalkan/savestore/internal/cli"
)

func corrupt(t *testing.T, path string) {
	t.Helper()

	err := os.WriteFile(path, []byte("definitely not a save container"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
}

func Test_Set_Get_Round_Trips_Values_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("set", "HP", "100")
	c.MustRun("set", "Name", "farmer")
	c.MustRun("set", "Inventory", `{"gold":3,"items":["hoe"]}`)

	if got, want := c.MustRun("get", "HP"), "100"; got != want {
		t.Errorf("HP=%q, want=%q", got, want)
	}

	if got, want := c.MustRun("get", "Name"), `"farmer"`; got != want {
		t.Errorf("Name=%q, want=%q", got, want)
	}

	if got, want := c.MustRun("get", "Inventory"), `{"gold":3,"items":["hoe"]}`; got != want {
		t.Errorf("Inventory=%q, want=%q", got, want)
	}

	if got, want := c.MustRun("keys"), "Created\nHP\nInventory\nName\nSaveID\nSaveTime"; got != want {
		t.Errorf("keys=%q, want=%q", got, want)
	}
}

func Test_Get_Fails_When_Key_Missing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	cli.AssertContains(t, c.MustFail("get", "HP"), "key not found")
	cli.AssertContains(t, c.MustFail("get", "HP", "--global"), "key not found")
	cli.AssertContains(t, c.MustFail("get"), "key is required")
	cli.AssertContains(t, c.MustFail("set", "HP"), "value is required")
}

func Test_Global_Flag_Uses_Global_Store_When_Set(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("set", "--global", "Volume", "7")
	c.MustRun("slot", "4")

	if got, want := c.MustRun("get", "-g", "Volume"), "7"; got != want {
		t.Errorf("Volume=%q, want=%q", got, want)
	}

	c.MustFail("get", "Volume")

	c.MustRun("rm", "--global", "Volume")
	c.MustFail("get", "--global", "Volume")

	if _, err := os.Stat(filepath.Join(c.SaveDir(), "global.sav.bac")); err != nil {
		t.Fatalf("global backup: %v", err)
	}
}

func Test_Keys_Global_Leaves_Slot_Untouched_When_Dir_Clean(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("set", "--global", "Volume", "7")

	cli.AssertContains(t, c.MustRun("keys", "--global"), "Volume")

	_, err := os.Stat(filepath.Join(c.SaveDir(), "slot-1.sav"))
	if !os.IsNotExist(err) {
		t.Fatalf("slot-1.sav must not be created, stat err=%v", err)
	}
}

func Test_Rm_Removes_Key_When_Committed(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("set", "HP", "1")
	c.MustRun("rm", "HP")

	c.MustFail("get", "HP")
}

func Test_Slot_Persists_Selection_When_Switched(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	if got, want := c.MustRun("slot"), "1"; got != want {
		t.Errorf("slot=%q, want=%q", got, want)
	}

	if got, want := c.MustRun("slot", "3"), "3"; got != want {
		t.Errorf("slot=%q, want=%q", got, want)
	}

	c.MustRun("set", "HP", "30")

	if got, want := c.MustRun("slot"), "3"; got != want {
		t.Errorf("slot after restart=%q, want=%q", got, want)
	}

	if got, want := c.MustRun("ls"), "slot 3 (current)"; got != want {
		t.Errorf("ls=%q, want=%q", got, want)
	}

	cli.AssertContains(t, c.MustFail("slot", "0"), "slot must be a positive integer")
	cli.AssertContains(t, c.MustFail("slot", "x"), "slot must be a positive integer")
}

func Test_Get_Returns_Latest_Value_When_Main_File_Corrupt(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("slot", "3")
	c.MustRun("set", "HP", "100")
	c.MustRun("set", "HP", "80")

	corrupt(t, filepath.Join(c.SaveDir(), "slot-3.sav"))

	if got, want := c.MustRun("get", "HP"), "80"; got != want {
		t.Errorf("HP=%q, want=%q", got, want)
	}
}

func Test_Status_Reports_Recovery_When_Main_File_Corrupt(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("set", "HP", "5")
	corrupt(t, filepath.Join(c.SaveDir(), "slot-1.sav"))

	stdout := c.MustRun("status")
	cli.AssertContains(t, stdout, "slot=1")
	cli.AssertContains(t, stdout, "restore_failed=false")
	cli.AssertContains(t, stdout, "savestore_recoveries_total{outcome=default_backup} 1")
	cli.AssertNotContains(t, stdout, "last_save=never")
}

func Test_Status_Shows_Never_When_Slot_Not_Saved(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("status")

	cli.AssertContains(t, stdout, "last_save=never")
	cli.AssertContains(t, stdout, "save_id=")
}

func Test_Warns_And_Exits_Nonzero_When_Every_Backup_Unusable(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("set", "HP", "5")

	path := filepath.Join(c.SaveDir(), "slot-1.sav")
	corrupt(t, path)
	corrupt(t, path+".bac")
	corrupt(t, path+".bac.01")

	stdout, stderr, code := c.Run("status")

	if got, want := code, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	cli.AssertContains(t, stdout, "restore_failed=true")
	cli.AssertContains(t, stderr, "warning: unrecoverable save data")

	c.MustFail("get", "HP")
}

func Test_Backups_And_Restore_When_Indexed_Backup_Exists(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("set", "HP", "1")
	c.MustRun("set", "HP", "2")

	lines := strings.Split(c.MustRun("backups"), "\n")
	if got, want := len(lines), 10; got != want {
		t.Fatalf("lines=%d, want=%d\n%s", got, want, strings.Join(lines, "\n"))
	}

	cli.AssertContains(t, lines[0], "01 present")
	cli.AssertContains(t, lines[1], "02 missing")

	cli.AssertContains(t, c.MustFail("restore"), "--index is required")
	cli.AssertContains(t, c.MustFail("restore", "--index", "2"), "backup does not exist")
	cli.AssertContains(t, c.MustFail("restore", "--index", "11"), "invalid backup index")

	cli.AssertContains(t, c.MustRun("restore", "--index", "1"), "restored slot 1 from backup 01")

	if got, want := c.MustRun("get", "HP"), "1"; got != want {
		t.Errorf("HP=%q, want=%q", got, want)
	}
}

func Test_Delete_Removes_Slot_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("set", "HP", "1")
	c.MustRun("slot", "2")
	c.MustRun("set", "HP", "2")

	if got, want := c.MustRun("ls"), "slot 1\nslot 2 (current)"; got != want {
		t.Errorf("ls=%q, want=%q", got, want)
	}

	cli.AssertContains(t, c.MustRun("delete", "1"), "deleted slot 1")

	if got, want := c.MustRun("ls"), "slot 2 (current)"; got != want {
		t.Errorf("ls=%q, want=%q", got, want)
	}

	entries, err := os.ReadDir(c.SaveDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "slot-1.") {
			t.Errorf("leftover file %s", e.Name())
		}
	}
}

func Test_Shell_Runs_Commands_When_Input_Piped(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	input := strings.NewReader("set HP 7\nget HP\n\nslot 2\nshell\nhelp\nexit\nget HP\n")

	stdout, stderr, code := c.RunWithInput(input, "shell")

	if got, want := code, 0; got != want {
		t.Errorf("exitCode=%d, want=%d\nstderr: %s", got, want, stderr)
	}

	cli.AssertContains(t, stdout, "7\n")
	cli.AssertContains(t, stdout, "2\n")
	cli.AssertContains(t, stdout, "print-config")
	cli.AssertContains(t, stderr, "unknown command: shell")
	cli.AssertNotContains(t, stderr, "key not found")

	if got, want := c.MustRun("slot"), "2"; got != want {
		t.Errorf("slot=%q, want=%q", got, want)
	}
}
