// Package howellcmder
package howellcmder

import (
	"github.com/spf13/cobra"

	bootstrapcmder "github.com/ryanlack616/howell-brain/cmd/howell/bootstrap"
	configcmder "github.com/ryanlack616/howell-brain/cmd/howell/config"
	initcmder "github.com/ryanlack616/howell-brain/cmd/howell/init"
	recordcmder "github.com/ryanlack616/howell-brain/cmd/howell/record"
	searchcmder "github.com/ryanlack616/howell-brain/cmd/howell/search"
	servecmder "github.com/ryanlack616/howell-brain/cmd/howell/serve"
	statuscmder "github.com/ryanlack616/howell-brain/cmd/howell/status"
	tiercmder "github.com/ryanlack616/howell-brain/cmd/howell/tier"
	versioncmder "github.com/ryanlack616/howell-brain/cmd/howell/version"
)

const howellLongDesc string = `Howell is persistent memory for a personal agent.

Memory lives in plain files under a base directory that a file-sync tool can
share between machines: a knowledge graph of entities and relations, tiered
session memory (hot, warm, cold, core), and one append-only journal per
machine.

Run the daemon, which serves the HTTP API and MCP tools:
  howell serve

Or work with memory directly:
  howell bootstrap                     Load memory and print the session context
  howell observe <entity> <text>       Record an observation
  howell session <narrative>           Record a finished session
  howell search <query>                Search memory`

const howellShortDesc string = "Howell - personal agent memory"

func NewHowellCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "howell",
		Short:         howellShortDesc,
		Long:          howellLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .howell/ directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(bootstrapcmder.NewBootstrapCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(recordcmder.NewObserveCmd())
	cmd.AddCommand(recordcmder.NewRelateCmd())
	cmd.AddCommand(recordcmder.NewUnrelateCmd())
	cmd.AddCommand(recordcmder.NewSessionCmd())
	cmd.AddCommand(recordcmder.NewPinCmd())
	cmd.AddCommand(recordcmder.NewSnapshotCmd())
	cmd.AddCommand(tiercmder.NewTierCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
