package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent howell configuration stored as config.toml
// in the .howell/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Machine     MachineConfig     `toml:"machine"`
	Memory      MemoryConfig      `toml:"memory"`
	Heartbeat   HeartbeatConfig   `toml:"heartbeat"`
	Urgency     UrgencyConfig     `toml:"urgency"`
	Sync        SyncConfig        `toml:"sync"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	Search      SearchConfig      `toml:"search"`
	EventStream EventStreamConfig `toml:"event_stream"`
}

// StorageConfig holds the base storage directory. An empty Root means the
// resolved .howell/ directory itself.
type StorageConfig struct {
	Root string `toml:"root,omitempty"`
}

// MachineConfig pins the machine identity. When empty the identity is read
// from (or created in) <root>/.machine_id.
type MachineConfig struct {
	ID string `toml:"id,omitempty"`
}

// MemoryConfig holds memory tier settings.
type MemoryConfig struct {
	HotCapacity uint `toml:"hot_capacity,omitempty"`
}

// HeartbeatConfig holds the background heartbeat settings.
type HeartbeatConfig struct {
	Interval string `toml:"interval,omitempty"`
}

// UrgencyConfig holds consolidation urgency thresholds.
type UrgencyConfig struct {
	Due    uint `toml:"due,omitempty"`
	Urgent uint `toml:"urgent,omitempty"`
}

// SyncConfig holds settings for merging files delivered by the file-sync tool.
type SyncConfig struct {
	// ClockSkew is the window within which a removal beats a concurrent
	// addition of the same relation.
	ClockSkew string `toml:"clock_skew,omitempty"`

	// Watch enables rebuilding when synced files change on disk.
	Watch bool `toml:"watch,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running daemon.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// SearchConfig selects the search backend: "sqlite" or "scan".
type SearchConfig struct {
	Provider string `toml:"provider,omitempty"`
}

// EventStreamConfig configures the optional journal event publisher.
type EventStreamConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// IntervalDuration parses the heartbeat interval.
func (h HeartbeatConfig) IntervalDuration() (time.Duration, error) {
	return parsePositiveDuration("heartbeat.interval", h.Interval)
}

// ClockSkewDuration parses the clock-skew window.
func (s SyncConfig) ClockSkewDuration() (time.Duration, error) {
	if s.ClockSkew == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.ClockSkew)
	if err != nil {
		return 0, fmt.Errorf("invalid value for sync.clock_skew: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid value for sync.clock_skew: must not be negative")
	}
	return d, nil
}

func parsePositiveDuration(key, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid value for %s: must be positive", key)
	}
	return d, nil
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.root": {
		get: func(c *Config) string { return c.Storage.Root },
		set: func(c *Config, v string) error { c.Storage.Root = v; return nil },
	},
	"machine.id": {
		get: func(c *Config) string { return c.Machine.ID },
		set: func(c *Config, v string) error { c.Machine.ID = v; return nil },
	},
	"memory.hot_capacity": uintKey("memory.hot_capacity", func(c *Config) *uint { return &c.Memory.HotCapacity }),
	"heartbeat.interval": {
		get: func(c *Config) string { return c.Heartbeat.Interval },
		set: func(c *Config, v string) error {
			if _, err := parsePositiveDuration("heartbeat.interval", v); err != nil {
				return err
			}
			c.Heartbeat.Interval = v
			return nil
		},
	},
	"urgency.due":    uintKey("urgency.due", func(c *Config) *uint { return &c.Urgency.Due }),
	"urgency.urgent": uintKey("urgency.urgent", func(c *Config) *uint { return &c.Urgency.Urgent }),
	"sync.clock_skew": {
		get: func(c *Config) string { return c.Sync.ClockSkew },
		set: func(c *Config, v string) error {
			if _, err := (SyncConfig{ClockSkew: v}).ClockSkewDuration(); err != nil {
				return err
			}
			c.Sync.ClockSkew = v
			return nil
		},
	},
	"sync.watch": {
		get: func(c *Config) string { return strconv.FormatBool(c.Sync.Watch) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for sync.watch: %w", err)
			}
			c.Sync.Watch = b
			return nil
		},
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"search.provider": {
		get: func(c *Config) string { return c.Search.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case "sqlite", "scan":
				c.Search.Provider = v
				return nil
			default:
				return fmt.Errorf("invalid value for search.provider: %q (available: sqlite, scan)", v)
			}
		},
	},
	"event_stream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case "", "none", "kafka":
				c.EventStream.Provider = v
				return nil
			default:
				return fmt.Errorf("invalid value for event_stream.provider: %q (available: none, kafka)", v)
			}
		},
	},
	"event_stream.brokers": {
		get: func(c *Config) string { return c.EventStream.Brokers },
		set: func(c *Config, v string) error { c.EventStream.Brokers = v; return nil },
	},
	"event_stream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
}
