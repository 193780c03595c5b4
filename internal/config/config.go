// Package config loads savectl configuration from layered JSONC files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/savestore/internal/logging"
)

var (
	ErrFileNotFound       = errors.New("config file not found")
	ErrFileRead           = errors.New("cannot read config file")
	ErrInvalid            = errors.New("invalid config file")
	ErrSaveDirEmpty       = errors.New("save-dir cannot be empty")
	ErrInvalidInterval    = errors.New("invalid backup_interval")
	ErrInvalidLogSettings = errors.New("invalid log settings")
)

// Config holds all configuration options.
type Config struct {
	SaveDir        string `json:"save_dir"`
	BackupInterval string `json:"backup_interval,omitempty"`
	LogLevel       string `json:"log_level,omitempty"`
	LogFormat      string `json:"log_format,omitempty"`

	// Resolved values, not serialized.
	EffectiveCwd string        `json:"-"`
	SaveDirAbs   string        `json:"-"`
	Interval     time.Duration `json:"-"`

	Sources Sources `json:"-"`
}

// Sources records which config files were loaded.
type Sources struct {
	Global  string
	Project string
}

// FileName is the project config file looked up in the working directory.
const FileName = ".savectl.json"

// PrefsFileName is the preference file kept inside the save directory.
const PrefsFileName = "prefs.json"

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SaveDir:        ".saves",
		BackupInterval: "5m",
		LogLevel:       "warn",
		LogFormat:      logging.FormatConsole,
	}
}

// Logging returns the logger settings derived from c.
func (c Config) Logging() logging.Config {
	return logging.Config{Level: c.LogLevel, Format: c.LogFormat}
}

// PrefsPath returns the absolute path of the preference file.
func (c Config) PrefsPath() string {
	return filepath.Join(c.SaveDirAbs, PrefsFileName)
}

// globalPath returns $XDG_CONFIG_HOME/savectl/config.json, falling back to
// ~/.config/savectl/config.json. Empty if neither variable is set.
func globalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "savectl", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "savectl", "config.json")
	}

	return ""
}

// Input holds the inputs for [Load].
type Input struct {
	WorkDir    string            // -C/--cwd; os.Getwd() when empty
	ConfigPath string            // -c/--config
	Env        map[string]string // environment variables

	// CLI overrides. Nil means not given.
	SaveDir  *string
	LogLevel *string
}

// Load resolves configuration with the following precedence (highest wins):
// defaults, global user config, project .savectl.json, explicit -c file,
// CLI overrides. Paths in the result are absolute.
func Load(in Input) (Config, error) {
	workDir := in.WorkDir
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	if path := globalPath(in.Env); path != "" {
		fileCfg, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = merge(cfg, fileCfg)
			cfg.Sources.Global = path
		}
	}

	projectPath := filepath.Join(workDir, FileName)
	mustExist := false

	if in.ConfigPath != "" {
		projectPath = in.ConfigPath
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}

		mustExist = true
	}

	fileCfg, loaded, err := loadFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = merge(cfg, fileCfg)
		cfg.Sources.Project = projectPath
	}

	if in.SaveDir != nil {
		if *in.SaveDir == "" {
			return Config{}, ErrSaveDirEmpty
		}

		cfg.SaveDir = *in.SaveDir
	}

	if in.LogLevel != nil && *in.LogLevel != "" {
		cfg.LogLevel = *in.LogLevel
	}

	err = cfg.resolve(workDir)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) resolve(workDir string) error {
	interval, err := time.ParseDuration(c.BackupInterval)
	if err != nil || interval <= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidInterval, c.BackupInterval)
	}

	logCfg := c.Logging()

	err = logCfg.Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLogSettings, err)
	}

	c.Interval = interval
	c.EffectiveCwd = workDir

	if filepath.IsAbs(c.SaveDir) {
		c.SaveDirAbs = c.SaveDir
	} else {
		c.SaveDirAbs = filepath.Join(workDir, c.SaveDir)
	}

	return nil
}

// loadFile reads one config file. A missing file is only an error when
// mustExist is set.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !mustExist {
			return Config{}, false, nil
		}

		if os.IsNotExist(err) {
			return Config{}, false, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}

		return Config{}, false, fmt.Errorf("%w: %s", ErrFileRead, path)
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	return cfg, true, nil
}

func parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	if v, ok := raw["save_dir"].(string); ok && v == "" {
		return Config{}, ErrSaveDirEmpty
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.SaveDir != "" {
		base.SaveDir = overlay.SaveDir
	}

	if overlay.BackupInterval != "" {
		base.BackupInterval = overlay.BackupInterval
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.LogFormat != "" {
		base.LogFormat = overlay.LogFormat
	}

	return base
}
