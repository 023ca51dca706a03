package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --machine
// on both "howell serve" and "howell observe").
type Flag struct {
	// Name is the long flag name (e.g. "machine").
	Name string

	// Shorthand is the one-letter short flag (e.g. "m"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "machine.id").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagRoot           = "root"
	FlagMachine        = "machine"
	FlagHotCapacity    = "hot-capacity"
	FlagHeartbeat      = "heartbeat"
	FlagClockSkew      = "clock-skew"
	FlagAPIListen      = "listen"
	FlagAPITarget      = "api-target"
	FlagSearchProvider = "search-provider"
	FlagEventProvider  = "event-provider"
	FlagEventBrokers   = "event-brokers"
	FlagEventTopic     = "event-topic"
)

// Flags is the shared registry used by every howell command.
var Flags = FlagSet{
	FlagRoot:           {Name: "root", ViperKey: "storage.root", Description: "Base storage directory"},
	FlagMachine:        {Name: "machine", Shorthand: "m", ViperKey: "machine.id", Description: "Machine identity that owns the local journal"},
	FlagHotCapacity:    {Name: "hot-capacity", ViperKey: "memory.hot_capacity", Description: "Number of recent sessions kept in the HOT tier"},
	FlagHeartbeat:      {Name: "heartbeat", ViperKey: "heartbeat.interval", Description: "Interval between background integrity checks"},
	FlagClockSkew:      {Name: "clock-skew", ViperKey: "sync.clock_skew", Description: "Window within which a relation removal beats a concurrent add"},
	FlagAPIListen:      {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagAPITarget:      {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "Howell API server URL"},
	FlagSearchProvider: {Name: "search-provider", ViperKey: "search.provider", Description: "Search backend (sqlite, scan)"},
	FlagEventProvider:  {Name: "event-provider", ViperKey: "event_stream.provider", Description: "Journal event publisher (none, kafka)"},
	FlagEventBrokers:   {Name: "event-brokers", ViperKey: "event_stream.brokers", Description: "Comma separated kafka broker addresses"},
	FlagEventTopic:     {Name: "event-topic", ViperKey: "event_stream.topic", Description: "Kafka topic for journal events"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
