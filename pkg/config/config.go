package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// ConfigFileName is the project-local config file name, discovered by
// walking up from the current directory when no explicit path is given.
const ConfigFileName = ".ringdb.json"

// Source identifies which layer supplied a Config field's current value.
type Source string

const (
	SourceDefault Source = "default"
	SourceGlobal  Source = "global"
	SourceProject Source = "project"
	SourceFlag    Source = "flag"
)

// Sources records provenance per field, for diagnostics.
type Sources struct {
	BaseDir          Source
	ListenAddr       Source
	AuthKey          Source
	DefaultThreshold Source
}

// Config is the merged, effective configuration.
type Config struct {
	BaseDir          string
	ListenAddr       string
	AuthKey          string
	DefaultThreshold float32

	Sources Sources
}

// fileConfig is the subset of Config fields that may appear in a config
// file; zero values mean "not set" so the merge can distinguish omission
// from an explicit zero.
type fileConfig struct {
	BaseDir          *string  `json:"baseDir,omitempty"`
	ListenAddr       *string  `json:"listenAddr,omitempty"`
	AuthKey          *string  `json:"authKey,omitempty"`
	DefaultThreshold *float32 `json:"defaultThreshold,omitempty"`
}

// Default returns the built-in defaults, used as the base of every merge.
func Default() Config {
	baseDir := filepath.Join(defaultConfigDir(), "ringdb", "data")

	return Config{
		BaseDir:          baseDir,
		ListenAddr:       "127.0.0.1:7857",
		AuthKey:          "",
		DefaultThreshold: 0.5,
		Sources: Sources{
			BaseDir:          SourceDefault,
			ListenAddr:       SourceDefault,
			AuthKey:          SourceDefault,
			DefaultThreshold: SourceDefault,
		},
	}
}

// Overrides carries command-line flag values; a nil field means "flag not
// set", so it does not override a file-sourced value.
type Overrides struct {
	BaseDir          *string
	ListenAddr       *string
	AuthKey          *string
	DefaultThreshold *float32
}

// Load merges defaults, the global config file, a project/explicit config
// file, and CLI overrides, in that precedence order. explicitPath, if
// non-empty, is used instead of discovering ConfigFileName by walking up
// from cwd.
func Load(env map[string]string, cwd string, explicitPath string, overrides Overrides) (Config, error) {
	cfg := Default()

	globalPath := globalConfigPath(env)
	if globalPath != "" {
		if err := mergeFile(&cfg, globalPath, SourceGlobal); err != nil {
			return Config{}, err
		}
	}

	projectPath := explicitPath
	if projectPath == "" {
		projectPath = discoverProjectConfig(cwd)
	}

	if projectPath != "" {
		if err := mergeFile(&cfg, projectPath, SourceProject); err != nil {
			return Config{}, err
		}
	}

	applyOverrides(&cfg, overrides)

	return cfg, nil
}

func mergeFile(cfg *Config, path string, source Source) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("config: reading %q: %w", path, err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("config: parsing %q: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(standardized, &fc); err != nil {
		return fmt.Errorf("config: decoding %q: %w", path, err)
	}

	if fc.BaseDir != nil {
		cfg.BaseDir = *fc.BaseDir
		cfg.Sources.BaseDir = source
	}

	if fc.ListenAddr != nil {
		cfg.ListenAddr = *fc.ListenAddr
		cfg.Sources.ListenAddr = source
	}

	if fc.AuthKey != nil {
		cfg.AuthKey = *fc.AuthKey
		cfg.Sources.AuthKey = source
	}

	if fc.DefaultThreshold != nil {
		cfg.DefaultThreshold = *fc.DefaultThreshold
		cfg.Sources.DefaultThreshold = source
	}

	return nil
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.BaseDir != nil {
		cfg.BaseDir = *o.BaseDir
		cfg.Sources.BaseDir = SourceFlag
	}

	if o.ListenAddr != nil {
		cfg.ListenAddr = *o.ListenAddr
		cfg.Sources.ListenAddr = SourceFlag
	}

	if o.AuthKey != nil {
		cfg.AuthKey = *o.AuthKey
		cfg.Sources.AuthKey = SourceFlag
	}

	if o.DefaultThreshold != nil {
		cfg.DefaultThreshold = *o.DefaultThreshold
		cfg.Sources.DefaultThreshold = SourceFlag
	}
}

func defaultConfigDir() string {
	if dir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && dir != "" {
		return dir
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config")
}

func globalConfigPath(env map[string]string) string {
	if dir := env["XDG_CONFIG_HOME"]; dir != "" {
		return filepath.Join(dir, "ringdb", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "ringdb", "config.json")
	}

	return ""
}

// discoverProjectConfig walks up from dir looking for ConfigFileName,
// stopping at the filesystem root. Returns "" if none is found.
func discoverProjectConfig(dir string) string {
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}

		dir = parent
	}
}
