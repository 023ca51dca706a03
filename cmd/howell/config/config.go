// Package configcmder provides the config command for managing persistent
// howell configuration stored in the .howell/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent howell configuration.

Configuration is stored as config.toml in the .howell/ directory and provides
default values for command flags. CLI flags and HOWELL_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.root, machine.id, memory.hot_capacity, heartbeat.interval,
  urgency.due, urgency.urgent, sync.clock_skew, sync.watch,
  api.listen, client.api_target, search.provider,
  event_stream.provider, event_stream.brokers, event_stream.topic

Use subcommands to get, set, or list configuration values:
  howell config set <key> <value>    Set a configuration value
  howell config get <key>            Get a configuration value
  howell config list                 List all configuration values

Examples:
  howell config set memory.hot_capacity 8
  howell config set heartbeat.interval 1h
  howell config get machine.id
  howell config list`

const configShortDesc string = "Manage persistent howell configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
