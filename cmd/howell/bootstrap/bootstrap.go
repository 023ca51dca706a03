// Package bootstrapcmder provides the bootstrap command, which loads memory
// and prints the context an agent starts a session with.
package bootstrapcmder

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	localcmd "github.com/ryanlack616/howell-brain/cmd/howell/local"
	"github.com/ryanlack616/howell-brain/pkg/brain"
	"github.com/ryanlack616/howell-brain/pkg/cliui"
	"github.com/ryanlack616/howell-brain/pkg/utils"
)

type bootstrapCommander struct {
	storage localcmd.StorageFlags
	asJSON  bool
	refresh bool
}

const bootstrapLongDesc string = `Load memory and print the starting context of a session.

Bootstrap loads the knowledge graph, replays every machine's journal,
materializes relations, evicts HOT memory down to capacity, scores
consolidation urgency, and runs the integrity checks. Problems found along
the way are reported as warnings; only an unreadable entity store fails.

When a howell daemon holds the base directory, the daemon's context is shown.

Examples:
  howell bootstrap
  howell bootstrap --json
  howell bootstrap --refresh`

const bootstrapShortDesc string = "Load memory and print the session context"

func NewBootstrapCmd() *cobra.Command {
	cmder := &bootstrapCommander{}

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: bootstrapShortDesc,
		Long:  bootstrapLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	localcmd.AddStorageFlags(cmd, &cmder.storage)
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the context as JSON")
	cmd.Flags().BoolVar(&cmder.refresh, "refresh", false, "Ask a running daemon to reload from disk")

	return cmd
}

func (c *bootstrapCommander) run(cmd *cobra.Command) error {
	cfg, err := localcmd.LoadConfig(cmd, localcmd.StorageKeys...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	ctx := cmd.Context()

	var bc *brain.Context
	load := func() error {
		r, err := localcmd.OpenReader(ctx, cfg, localcmd.Logger(cmd))
		if err != nil {
			return err
		}
		defer r.Close()

		bc, err = r.Bootstrap(ctx, c.refresh)
		return err
	}

	if c.asJSON || !term.IsTerminal(int(os.Stdout.Fd())) {
		err = load()
	} else {
		err = cliui.Step(os.Stdout, "Loading memory", load)
	}
	if err != nil {
		return err
	}

	if c.asJSON {
		return localcmd.PrintJSON(os.Stdout, bc)
	}
	PrintContext(os.Stdout, bc)
	return nil
}

// PrintContext writes a human-readable summary of a bootstrap context.
func PrintContext(w io.Writer, bc *brain.Context) {
	fmt.Fprintf(w, "\n  %s  %s\n", cliui.KeyStyle.Render("Machine:  "), cliui.NameStyle.Render(bc.Machine))
	fmt.Fprintf(w, "  %s  %s entities, %s relations\n",
		cliui.KeyStyle.Render("Graph:    "),
		cliui.ValueStyle.Render(strconv.Itoa(len(bc.Entities))),
		cliui.ValueStyle.Render(strconv.Itoa(len(bc.Relations))),
	)
	fmt.Fprintf(w, "  %s  %s hot sessions, %s pinned\n",
		cliui.KeyStyle.Render("Memory:   "),
		cliui.ValueStyle.Render(strconv.Itoa(len(bc.Hot))),
		cliui.ValueStyle.Render(strconv.Itoa(len(bc.Pinned))),
	)
	if bc.Evicted > 0 {
		fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render("Evicted:  "), cliui.ValueStyle.Render(strconv.Itoa(bc.Evicted)))
	}
	fmt.Fprintf(w, "  %s  %d %s\n",
		cliui.KeyStyle.Render("Urgency:  "),
		bc.Urgency.Score,
		cliui.Level(string(bc.Urgency.Level)),
	)
	for _, r := range bc.Urgency.Reasons {
		fmt.Fprintf(w, "    %s\n", cliui.DimStyle.Render(fmt.Sprintf("%s +%d (%d new)", r.Signal, r.Points, r.Delta)))
	}
	if bc.Degraded {
		fmt.Fprintf(w, "  %s %s\n", cliui.WarnMark, "relations are served from the cache")
	}

	if len(bc.Hot) > 0 {
		fmt.Fprintf(w, "\n  %s\n", cliui.HeaderStyle.Render("Recent sessions"))
		for _, s := range bc.Hot {
			fmt.Fprintf(w, "  %s %s\n",
				cliui.DimStyle.Render(s.Date.Format("2006-01-02")),
				cliui.ValueStyle.Render(utils.Truncate(s.Title, 72)),
			)
		}
	}

	if len(bc.Warnings) > 0 {
		fmt.Fprintf(w, "\n  %s\n", cliui.HeaderStyle.Render("Warnings"))
		for _, warn := range bc.Warnings {
			fmt.Fprintf(w, "  %s %s %s\n", cliui.WarnMark, cliui.DimStyle.Render("["+string(warn.Stage)+"]"), warn.Message)
		}
	}
	fmt.Fprintln(w)
}
