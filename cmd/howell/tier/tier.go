// Package tiercmder provides the tier command for reading one memory tier.
package tiercmder

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	localcmd "github.com/ryanlack616/howell-brain/cmd/howell/local"
	"github.com/ryanlack616/howell-brain/pkg/cliui"
	"github.com/ryanlack616/howell-brain/pkg/tier"
)

type tierCommander struct {
	storage localcmd.StorageFlags
	asJSON  bool
	raw     bool
}

const tierLongDesc string = `Read one memory tier.

Tiers:
  hot    the most recent sessions, in full
  warm   one-line summaries of older sessions
  cold   archived sessions, bucketed by month
  core   pinned memories (also accepted as "pinned")

The tier is rendered as markdown for the terminal. Use --raw for plain
markdown or --json for the records.

Examples:
  howell tier hot
  howell tier core --raw > pinned.md`

const tierShortDesc string = "Read one memory tier"

func NewTierCmd() *cobra.Command {
	cmder := &tierCommander{}

	cmd := &cobra.Command{
		Use:       "tier <hot|warm|cold|core>",
		Short:     tierShortDesc,
		Long:      tierLongDesc,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"hot", "warm", "cold", "core"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	localcmd.AddStorageFlags(cmd, &cmder.storage)
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the tier records as JSON")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print markdown without terminal rendering")

	return cmd
}

func (c *tierCommander) run(cmd *cobra.Command, name string) error {
	t, err := tier.Parse(name)
	if err != nil {
		return err
	}

	cfg, err := localcmd.LoadConfig(cmd, localcmd.StorageKeys...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	r, err := localcmd.OpenReader(cmd.Context(), cfg, localcmd.Logger(cmd))
	if err != nil {
		return err
	}
	defer r.Close()

	res, err := r.Tier(cmd.Context(), t)
	if err != nil {
		return err
	}

	switch {
	case c.asJSON:
		return localcmd.PrintJSON(os.Stdout, res)
	case c.raw:
		fmt.Print(res.Markdown)
		return nil
	}

	rendered, err := cliui.RenderMarkdown(res.Markdown)
	if err != nil {
		localcmd.Logger(cmd).Debug("markdown rendering failed", "error", err)
	}
	fmt.Print(rendered)
	return nil
}
