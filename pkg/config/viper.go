package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ryanlack616/howell-brain/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the HOWELL_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (HOWELL_API_LISTEN, HOWELL_MACHINE_ID, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	v.AddConfigPath(target)

	// storage.root defaults to the resolved directory so every caller agrees
	// on where the base directory lives.
	v.SetDefault("storage.root", target)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("HOWELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("storage.root", d.Storage.Root)
	v.SetDefault("machine.id", d.Machine.ID)

	v.SetDefault("memory.hot_capacity", d.Memory.HotCapacity)
	v.SetDefault("heartbeat.interval", d.Heartbeat.Interval)

	v.SetDefault("urgency.due", d.Urgency.Due)
	v.SetDefault("urgency.urgent", d.Urgency.Urgent)

	v.SetDefault("sync.clock_skew", d.Sync.ClockSkew)
	v.SetDefault("sync.watch", d.Sync.Watch)

	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("client.api_target", d.Client.APITarget)

	v.SetDefault("search.provider", d.Search.Provider)

	v.SetDefault("event_stream.provider", d.EventStream.Provider)
	v.SetDefault("event_stream.brokers", d.EventStream.Brokers)
	v.SetDefault("event_stream.topic", d.EventStream.Topic)
}

// FromViper builds a Config from the resolved viper values, honoring the
// full precedence chain.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version:     v.GetInt("version"),
		Storage:     StorageConfig{Root: v.GetString("storage.root")},
		Machine:     MachineConfig{ID: v.GetString("machine.id")},
		Memory:      MemoryConfig{HotCapacity: v.GetUint("memory.hot_capacity")},
		Heartbeat:   HeartbeatConfig{Interval: v.GetString("heartbeat.interval")},
		Urgency:     UrgencyConfig{Due: v.GetUint("urgency.due"), Urgent: v.GetUint("urgency.urgent")},
		Sync:        SyncConfig{ClockSkew: v.GetString("sync.clock_skew"), Watch: v.GetBool("sync.watch")},
		API:         APIConfig{Listen: v.GetString("api.listen")},
		Client:      ClientConfig{APITarget: v.GetString("client.api_target")},
		Search:      SearchConfig{Provider: v.GetString("search.provider")},
		EventStream: EventStreamConfig{
			Provider: v.GetString("event_stream.provider"),
			Brokers:  v.GetString("event_stream.brokers"),
			Topic:    v.GetString("event_stream.topic"),
		},
	}
}
