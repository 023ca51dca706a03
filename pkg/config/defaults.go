package config

const (
	defaultHotCapacity       = 5
	defaultHeartbeatInterval = "6h"
	defaultUrgencyDue        = 5
	defaultUrgencyUrgent     = 10
	defaultClockSkew         = "1s"
	defaultAPIListen         = ":7777"
	defaultClientAPITarget   = "http://localhost:7777"
	defaultSearchProvider    = "sqlite"
	defaultEventTopic        = "howell.journal"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Memory: MemoryConfig{
			HotCapacity: defaultHotCapacity,
		},
		Heartbeat: HeartbeatConfig{
			Interval: defaultHeartbeatInterval,
		},
		Urgency: UrgencyConfig{
			Due:    defaultUrgencyDue,
			Urgent: defaultUrgencyUrgent,
		},
		Sync: SyncConfig{
			ClockSkew: defaultClockSkew,
			Watch:     true,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Search: SearchConfig{
			Provider: defaultSearchProvider,
		},
		EventStream: EventStreamConfig{
			Topic: defaultEventTopic,
		},
	}
}
