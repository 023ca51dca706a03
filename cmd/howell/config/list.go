package configcmder

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ryanlack616/howell-brain/pkg/cliui"
	"github.com/ryanlack616/howell-brain/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays all configuration keys and their current values from the
config.toml file stored in the .howell/ directory.

Examples:
  howell config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(configDir)
		},
	}

	return cmd
}

func runList(configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if _, err := os.Stat(cfger.GetTarget()); err == nil {
		fmt.Printf("\n  %s %s\n\n", cliui.KeyStyle.Render("Config file:"), cliui.DimStyle.Render(cfger.GetTarget()))
	} else {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}

	keys := config.ValidConfigKeys()

	// Find the longest key name for alignment.
	maxLen := 0
	for _, k := range keys {
		maxLen = max(maxLen, len(k))
	}

	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}

		name := cliui.KeyStyle.Render(fmt.Sprintf("%-*s", maxLen, key))
		switch {
		case value == "":
			fmt.Printf("  %s  %s\n", name, cliui.DimStyle.Render("<not set>"))
		case value == config.DefaultConfigValue(key):
			fmt.Printf("  %s  %s %s\n", name, cliui.ValueStyle.Render(value), cliui.DimStyle.Render("(default)"))
		default:
			fmt.Printf("  %s  %s\n", name, cliui.ValueStyle.Render(value))
		}
	}
	fmt.Println()

	return nil
}
