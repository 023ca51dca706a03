package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ryanlack616/howell-brain/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetDir  string
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfger.targetDir = target
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the sorted list of all supported configuration key names.
func ValidConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}

	// Return in a stable, logical order matching the TOML section layout.
	ordered := []string{
		"storage.root",
		"machine.id",
		"memory.hot_capacity",
		"heartbeat.interval",
		"urgency.due",
		"urgency.urgent",
		"sync.clock_skew",
		"sync.watch",
		"api.listen",
		"client.api_target",
		"search.provider",
		"event_stream.provider",
		"event_stream.brokers",
		"event_stream.topic",
	}

	result := make([]string, 0, len(ordered))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
		}
	}

	seen := make(map[string]bool, len(result))
	for _, k := range result {
		seen[k] = true
	}
	for _, k := range keys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// DefaultConfigValue returns the default value of key, or "" for an unknown key.
func DefaultConfigValue(key string) string {
	info, ok := configKeys[key]
	if !ok {
		return ""
	}
	return info.get(NewDefaultConfig())
}

// GetTarget returns the path of the config.toml file.
func (c *Configer) GetTarget() string {
	return c.targetPath
}

// GetDir returns the resolved .howell/ directory.
func (c *Configer) GetDir() string {
	return c.targetDir
}

// LoadConfig loads the configuration from config.toml in the target .howell/ directory.
// If the file does not exist, returns NewDefaultConfig() so callers always receive
// a fully-populated Config. Fields explicitly set in the file override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
// sync.watch is a bool and cannot be distinguished from an explicit false, so
// it is left as loaded.
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Memory.HotCapacity == 0 {
		cfg.Memory.HotCapacity = defaults.Memory.HotCapacity
	}

	if cfg.Heartbeat.Interval == "" {
		cfg.Heartbeat.Interval = defaults.Heartbeat.Interval
	}

	if cfg.Urgency.Due == 0 {
		cfg.Urgency.Due = defaults.Urgency.Due
	}
	if cfg.Urgency.Urgent == 0 {
		cfg.Urgency.Urgent = defaults.Urgency.Urgent
	}

	if cfg.Sync.ClockSkew == "" {
		cfg.Sync.ClockSkew = defaults.Sync.ClockSkew
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}

	if cfg.Client.APITarget == "" {
		cfg.Client.APITarget = defaults.Client.APITarget
	}

	if cfg.Search.Provider == "" {
		cfg.Search.Provider = defaults.Search.Provider
	}

	if cfg.EventStream.Topic == "" {
		cfg.EventStream.Topic = defaults.EventStream.Topic
	}
}

// SaveConfig persists the configuration to config.toml in the target .howell/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config for the named deployment preset.
// Supported presets: "standalone", "synced", "streaming".
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "standalone":
		cfg.Sync.Watch = false
		cfg.Search.Provider = "scan"

	case "synced":
		cfg.Sync.Watch = true

	case "streaming":
		cfg.Sync.Watch = true
		cfg.EventStream.Provider = "kafka"
		cfg.EventStream.Brokers = "localhost:9092"

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: standalone, synced, streaming)", name)
	}

	return cfg, nil
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"standalone", "synced", "streaming"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
