// Package config loads engine tuning knobs (dictionary initial size,
// event-loop fd capacity, allocator memory limit and OOM policy) from
// defaults, a global user config, a project config, and CLI overrides,
// in that order of increasing precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// OOMPolicy selects what the allocator does when a charge would exceed
// its memory limit.
type OOMPolicy string

const (
	// OOMAbort prints and terminates the process, matching
	// pkg/alloc.DefaultOOMHandler.
	OOMAbort OOMPolicy = "abort"
	// OOMTolerant returns ErrOutOfMemory to the caller instead of
	// aborting.
	OOMTolerant OOMPolicy = "tolerant"
)

// Config holds all engine tuning options.
type Config struct {
	DictInitialSize  int       `json:"dict_initial_size,omitempty"`
	EvloopSetSize    int       `json:"evloop_set_size,omitempty"`
	MemoryLimitBytes uint64    `json:"memory_limit_bytes,omitempty"`
	OOMPolicy        OOMPolicy `json:"oom_policy,omitempty"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DictInitialSize:  4,
		EvloopSetSize:    1024,
		MemoryLimitBytes: 0, // 0 means unlimited
		OOMPolicy:        OOMAbort,
	}
}

// FileName is the default config file name.
const FileName = ".kvengine.json"

// globalConfigPath returns the path to the global config file, using
// $XDG_CONFIG_HOME/kvengine/config.json if set, otherwise
// ~/.config/kvengine/config.json. Returns "" if no home can be found.
func globalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "kvengine", "config.json")
		}
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "kvengine", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "kvengine", "config.json")
	}

	return ""
}

// Load loads configuration with the following precedence (highest
// wins): 1. defaults, 2. global user config, 3. project config file
// (workDir/.kvengine.json, or configPath if non-empty), 4. cliOverrides
// (applied field-by-field per the fields of overrideFlags).
func Load(workDir, configPath string, cliOverrides Config, overrideFlags OverrideFlags, env []string) (Config, Sources, error) {
	cfg := DefaultConfig()

	var sources Sources

	globalCfg, globalPath, err := loadGlobalConfig(env)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Global = globalPath
	cfg = mergeConfig(cfg, globalCfg)

	projectCfg, projectPath, err := loadProjectConfig(workDir, configPath)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Project = projectPath
	cfg = mergeConfig(cfg, projectCfg)

	if overrideFlags.DictInitialSize {
		cfg.DictInitialSize = cliOverrides.DictInitialSize
	}

	if overrideFlags.EvloopSetSize {
		cfg.EvloopSetSize = cliOverrides.EvloopSetSize
	}

	if overrideFlags.MemoryLimitBytes {
		cfg.MemoryLimitBytes = cliOverrides.MemoryLimitBytes
	}

	if overrideFlags.OOMPolicy {
		cfg.OOMPolicy = cliOverrides.OOMPolicy
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, Sources{}, err
	}

	return cfg, sources, nil
}

// OverrideFlags marks which Config fields a caller explicitly set on
// the command line, so Load can distinguish "unset" from "set to the
// zero value".
type OverrideFlags struct {
	DictInitialSize  bool
	EvloopSetSize    bool
	MemoryLimitBytes bool
	OOMPolicy        bool
}

func loadGlobalConfig(env []string) (Config, string, error) {
	path := globalConfigPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, loaded, err := loadConfigFile(path, false)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, path, nil
}

func loadProjectConfig(workDir, configPath string) (Config, string, error) {
	var cfgFile string

	var mustExist bool

	if configPath != "" {
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}

		mustExist = true

		if _, err := os.Stat(cfgFile); err != nil {
			return Config{}, "", fmt.Errorf("%w: %s", errConfigFileNotFound, configPath)
		}
	} else {
		cfgFile = filepath.Join(workDir, FileName)
		mustExist = false
	}

	cfg, loaded, err := loadConfigFile(cfgFile, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, cfgFile, nil
}

// loadConfigFile loads a config file. If mustExist is false, a missing
// file returns a zero Config with loaded=false rather than an error.
func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		if mustExist {
			return Config{}, false, fmt.Errorf("%w: %s", errConfigFileRead, path)
		}

		return Config{}, false, nil
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.DictInitialSize != 0 {
		base.DictInitialSize = overlay.DictInitialSize
	}

	if overlay.EvloopSetSize != 0 {
		base.EvloopSetSize = overlay.EvloopSetSize
	}

	if overlay.MemoryLimitBytes != 0 {
		base.MemoryLimitBytes = overlay.MemoryLimitBytes
	}

	if overlay.OOMPolicy != "" {
		base.OOMPolicy = overlay.OOMPolicy
	}

	return base
}

func validateConfig(cfg Config) error {
	if cfg.DictInitialSize <= 0 || cfg.DictInitialSize&(cfg.DictInitialSize-1) != 0 {
		return errDictInitialSize
	}

	if cfg.EvloopSetSize <= 0 {
		return errEvloopSetSize
	}

	switch cfg.OOMPolicy {
	case OOMAbort, OOMTolerant:
	default:
		return errOOMPolicy
	}

	return nil
}

// Format returns cfg as formatted JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}

	return string(data), nil
}
