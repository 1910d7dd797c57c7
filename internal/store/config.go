package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// Config holds the options that govern where a store lives and how it
// behaves, loaded from layered JSONC files.
type Config struct {
	// From config files (serialized).
	TicketDir string `json:"ticket_dir"`
	Editor    string `json:"editor,omitempty"`

	// Resolved paths (computed, not serialized).
	EffectiveCwd string `json:"-"` // absolute working directory (from -C or os.Getwd)
	TicketDirAbs string `json:"-"` // absolute path to the ticket directory

	// Sources tracks which config files were loaded, for diagnostics.
	Sources ConfigSources `json:"-"`
}

// ConfigSources records which config files contributed to a loaded Config.
type ConfigSources struct {
	Global  string
	Project string
}

// DefaultConfig returns the configuration used when no config file is
// present anywhere in the lookup chain.
func DefaultConfig() Config {
	return Config{TicketDir: ".tickets"}
}

const globalConfigDirName = "tkstore"

// getGlobalConfigPath returns $XDG_CONFIG_HOME/tkstore/config.jsonc, or
// ~/.config/tkstore/config.jsonc if unset. Returns "" if neither can be
// determined.
func getGlobalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, globalConfigDirName, "config.jsonc")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", globalConfigDirName, "config.jsonc")
	}

	return ""
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDirOverride   string // -C/--cwd; empty means os.Getwd()
	ConfigPath        string // -c/--config
	TicketDirOverride string // --ticket-dir; empty means no override
	Env               map[string]string
}

// LoadConfig resolves configuration with the following precedence, highest
// wins: defaults, global user config, project config (.tkstore.jsonc or an
// explicit --config path), then CLI flag overrides. All returned paths are
// absolute.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("%w: cannot get working directory: %v", ErrIO, err)
		}
	}

	cfg := DefaultConfig()

	globalCfg, globalPath, err := loadGlobalConfig(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Global = globalPath
	cfg = mergeConfig(cfg, globalCfg)

	projectCfg, projectPath, err := loadProjectConfig(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	cfg = mergeConfig(cfg, projectCfg)

	if input.TicketDirOverride != "" {
		cfg.TicketDir = input.TicketDirOverride
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir

	if filepath.IsAbs(cfg.TicketDir) {
		cfg.TicketDirAbs = cfg.TicketDir
	} else {
		cfg.TicketDirAbs = filepath.Join(workDir, cfg.TicketDir)
	}

	return cfg, nil
}

func loadGlobalConfig(env map[string]string) (Config, string, error) {
	path := getGlobalConfigPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, explicitEmpty, loaded, err := loadConfigFile(path, false)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	if explicitEmpty["ticket_dir"] {
		return Config{}, "", fmt.Errorf("%w: %s: ticket_dir must not be empty", ErrMalformedInput, path)
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
			return Config{}, "", fmt.Errorf("%w: config file not found: %s", ErrNotFound, configPath)
		}
	} else {
		cfgFile = filepath.Join(workDir, configFileName)
		mustExist = false
	}

	cfg, explicitEmpty, loaded, err := loadConfigFile(cfgFile, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	if explicitEmpty["ticket_dir"] {
		return Config{}, "", fmt.Errorf("%w: %s: ticket_dir must not be empty", ErrMalformedInput, cfgFile)
	}

	return cfg, cfgFile, nil
}

func loadConfigFile(path string, mustExist bool) (Config, map[string]bool, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, nil, false, nil
		}

		if mustExist {
			return Config{}, nil, false, fmt.Errorf("%w: reading %s: %v", ErrIO, path, err)
		}

		return Config{}, nil, false, nil
	}

	cfg, explicitEmpty, err := parseConfig(data)
	if err != nil {
		return Config{}, nil, false, fmt.Errorf("%w: %s: %v", ErrMalformedInput, path, err)
	}

	return cfg, explicitEmpty, true, nil
}

// parseConfig standardizes JSONC (comments, trailing commas) to strict JSON
// via hujson before unmarshaling.
func parseConfig(data []byte) (Config, map[string]bool, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, nil, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	explicitEmpty := make(map[string]bool)

	if val, exists := raw["ticket_dir"]; exists {
		if str, ok := val.(string); ok && str == "" {
			explicitEmpty["ticket_dir"] = true
		}
	}

	return cfg, explicitEmpty, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.TicketDir != "" {
		base.TicketDir = overlay.TicketDir
	}

	if overlay.Editor != "" {
		base.Editor = overlay.Editor
	}

	return base
}

func validateConfig(cfg Config) error {
	if cfg.TicketDir == "" {
		return fmt.Errorf("%w: ticket_dir must not be empty", ErrMalformedInput)
	}

	return nil
}

// SaveProjectConfig writes the project-local .tkstore.jsonc at workDir,
// updating only the fields present in overrides (empty string leaves the
// existing value). It is ambient CLI plumbing, not part of the core
// repository's crash-recovery surface: unlike ticket and state artifacts,
// a torn config write is merely inconvenient, so a plain rename-based
// atomic write (github.com/natefinch/atomic) is enough, without the
// fsync-before-rename discipline pkg/fs.AtomicWriter gives ticket/state
// artifacts.
func SaveProjectConfig(workDir string, overrides Config) (Config, error) {
	path := filepath.Join(workDir, configFileName)

	cfg, _, loaded, err := loadConfigFile(path, false)
	if err != nil {
		return Config{}, err
	}

	if !loaded {
		cfg = DefaultConfig()
	}

	if overrides.TicketDir != "" {
		cfg.TicketDir = overrides.TicketDir
	}

	if overrides.Editor != "" {
		cfg.Editor = overrides.Editor
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	data, err := json.MarshalIndent(struct {
		TicketDir string `json:"ticket_dir"`
		Editor    string `json:"editor,omitempty"`
	}{TicketDir: cfg.TicketDir, Editor: cfg.Editor}, "", "  ")
	if err != nil {
		return Config{}, fmt.Errorf("%w: encoding config: %v", ErrIO, err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(append(data, '\n'))); err != nil {
		return Config{}, fmt.Errorf("%w: writing %s: %v", ErrIO, path, err)
	}

	return cfg, nil
}
