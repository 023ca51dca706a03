// Package statuscmder provides the status command for displaying tier counts,
// consolidation urgency, and integrity issues.
package statuscmder

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	localcmd "github.com/ryanlack616/howell-brain/cmd/howell/local"
	"github.com/ryanlack616/howell-brain/pkg/brain"
	"github.com/ryanlack616/howell-brain/pkg/cliui"
)

type statusCommander struct {
	storage localcmd.StorageFlags
	asJSON  bool
}

const statusLongDesc string = `Show memory status.

Displays the record count of each memory tier, the knowledge graph size,
the machines that have written to the journal, the current consolidation
urgency, and any integrity issues.

Examples:
  howell status
  howell status --json`

const statusShortDesc string = "Show memory status"

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	localcmd.AddStorageFlags(cmd, &cmder.storage)
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the status as JSON")

	return cmd
}

func (c *statusCommander) run(cmd *cobra.Command) error {
	cfg, err := localcmd.LoadConfig(cmd, localcmd.StorageKeys...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	ctx := cmd.Context()

	r, err := localcmd.OpenReader(ctx, cfg, localcmd.Logger(cmd))
	if err != nil {
		return err
	}
	defer r.Close()

	st, err := r.Status(ctx)
	if err != nil {
		return err
	}

	if c.asJSON {
		return localcmd.PrintJSON(os.Stdout, st)
	}
	printStatus(st)
	return nil
}

func printStatus(st *brain.Status) {
	row := func(key, value string) {
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-12s", key)), value)
	}

	fmt.Println()
	row("Machine:", cliui.NameStyle.Render(st.Machine))
	row("Root:", cliui.DimStyle.Render(st.Root))
	if len(st.Machines) > 0 {
		row("Journals:", cliui.ValueStyle.Render(strings.Join(st.Machines, ", ")))
	}
	row("Graph:", fmt.Sprintf("%d entities, %d relations, %d observations",
		st.Counts.Entities, st.Counts.Relations, st.Counts.Observations))
	row("Hot:", fmt.Sprintf("%d of %d", st.Tiers.Hot, st.HotCapacity))
	row("Warm:", strconv.Itoa(st.Tiers.Warm))
	row("Cold:", fmt.Sprintf("%d in %d buckets", st.Tiers.Cold, st.Tiers.ColdBuckets))
	row("Core:", strconv.Itoa(st.Tiers.Core))
	row("Urgency:", fmt.Sprintf("%d %s", st.Urgency.Score, cliui.Level(string(st.Urgency.Level))))

	if st.Snapshot != nil {
		row("Consolidated:", cliui.DimStyle.Render(st.Snapshot.Timestamp.Format("2006-01-02 15:04")))
	}
	if st.Degraded {
		fmt.Printf("  %s relations are served from the cache\n", cliui.WarnMark)
	}

	if len(st.Issues) > 0 {
		fmt.Printf("\n  %s\n", cliui.HeaderStyle.Render("Issues"))
		for _, issue := range st.Issues {
			fmt.Printf("  %s %s\n", cliui.WarnMark, issue.Message)
		}
	} else {
		fmt.Printf("\n  %s no integrity issues\n", cliui.SuccessMark)
	}
	fmt.Println()
}
