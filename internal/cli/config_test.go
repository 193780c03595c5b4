package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/savestore/internal/cli"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		t.Fatal(err)
	}

	err = os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		t.Fatal(err)
	}
}

func Test_Print_Config_Defaults_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "save_dir="+c.SaveDir())
	cli.AssertContains(t, stdout, "backup_interval=5m0s")
	cli.AssertContains(t, stdout, "log_level=warn")
	cli.AssertContains(t, stdout, "(defaults only)")
}

func Test_Print_Config_From_Config_File_With_Comments_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".savectl.json"), `{
		// project saves
		"save_dir": "slots",
		"backup_interval": "30s",
	}`)

	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, "save_dir="+filepath.Join(c.Dir, "slots"))
	cli.AssertContains(t, stdout, "backup_interval=30s")
	cli.AssertContains(t, stdout, "project_config="+filepath.Join(c.Dir, ".savectl.json"))
}

func Test_Print_Config_Global_Config_When_XDG_Set(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	xdg := filepath.Join(c.Dir, "xdg")
	c.Env["XDG_CONFIG_HOME"] = xdg
	writeFile(t, filepath.Join(xdg, "savectl", "config.json"), `{"log_format": "json"}`)

	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, "log_format=json")
	cli.AssertContains(t, stdout, "global_config="+filepath.Join(xdg, "savectl", "config.json"))
}

func Test_Print_Config_Flags_Override_Files_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, "custom.json"), `{"save_dir": "custom", "log_level": "info"}`)

	stdout := c.MustRun("-c", "custom.json", "--save-dir=cli-saves", "--log-level", "debug", "print-config")
	cli.AssertContains(t, stdout, "save_dir="+filepath.Join(c.Dir, "cli-saves"))
	cli.AssertContains(t, stdout, "log_level=debug")
}

func Test_Config_Errors_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	cli.AssertContains(t, c.MustFail("-c", "nonexistent.json", "print-config"), "config file not found")

	writeFile(t, filepath.Join(c.Dir, ".savectl.json"), `{invalid json}`)
	cli.AssertContains(t, c.MustFail("print-config"), "invalid config file")
}
