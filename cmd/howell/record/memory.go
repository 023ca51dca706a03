package recordcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	localcmd "github.com/ryanlack616/howell-brain/cmd/howell/local"
	"github.com/ryanlack616/howell-brain/pkg/cliui"
	"github.com/ryanlack616/howell-brain/pkg/tier"
)

const sessionLongDesc string = `Record the narrative of a finished session.

The session goes to the head of HOT memory. When HOT is over capacity the
oldest sessions are summarized into WARM and archived in COLD.

Examples:
  howell session "Fired the test tiles. Cone 6 crazed on the north shelf." \
    --learned "load the north shelf last"
  howell session "Rewrote the journal." --pin --pin-reason "format change"`

// NewSessionCmd creates the session command.
func NewSessionCmd() *cobra.Command {
	cmder := &writeCommander{}
	in := tier.SessionInput{}

	cmd := &cobra.Command{
		Use:   "session <narrative>",
		Short: "Record the narrative of a finished session",
		Long:  sessionLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Narrative = args[0]
			return cmder.withLocal(cmd, func(l *localcmd.Local) (any, string, error) {
				res, err := l.Brain.RecordSessionEnd(cmd.Context(), in)
				if err != nil {
					return nil, "", err
				}

				var b strings.Builder
				fmt.Fprintf(&b, "Recorded %s", cliui.NameStyle.Render(res.Session.Title))
				if res.Pin != nil && !res.Pin.AlreadyPinned {
					b.WriteString(" and pinned it")
				}
				for _, ev := range res.Evicted {
					fmt.Fprintf(&b, "\n  %s %s", cliui.DimStyle.Render("→ warm"), ev.WarmLine)
				}
				for _, warn := range res.Warnings {
					fmt.Fprintf(&b, "\n  %s %s", cliui.WarnMark, warn.Message)
				}
				return res, b.String(), nil
			})
		},
	}

	cmder.addFlags(cmd)
	cmd.Flags().StringArrayVar(&in.Learned, "learned", nil, "A lesson learned (repeatable)")
	cmd.Flags().BoolVar(&in.Pin, "pin", false, "Also keep the session in CORE memory")
	cmd.Flags().StringVar(&in.PinTitle, "pin-title", "", "Title of the pinned memory (default: session title)")
	cmd.Flags().StringVar(&in.PinReason, "pin-reason", "", "Why the session is pinned")

	return cmd
}

const pinLongDesc string = `Keep a memory in CORE indefinitely.

Pinning a title that is already pinned changes nothing.

Examples:
  howell pin "Kiln ceiling" "Never fire past cone 10." --reason "element damage"`

// NewPinCmd creates the pin command.
func NewPinCmd() *cobra.Command {
	cmder := &writeCommander{}
	var reason string

	cmd := &cobra.Command{
		Use:   "pin <title> <text>",
		Short: "Keep a memory indefinitely",
		Long:  pinLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.withLocal(cmd, func(l *localcmd.Local) (any, string, error) {
				res, err := l.Brain.PinMemory(args[0], args[1], reason)
				if err != nil {
					return nil, "", err
				}
				if res.AlreadyPinned {
					return res, fmt.Sprintf("%s is already pinned", cliui.NameStyle.Render(res.Pin.Title)), nil
				}
				return res, fmt.Sprintf("Pinned %s", cliui.NameStyle.Render(res.Pin.Title)), nil
			})
		},
	}

	cmder.addFlags(cmd)
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the memory is worth keeping")

	return cmd
}

const snapshotLongDesc string = `Record that memory was consolidated now.

Consolidation urgency is measured against the counts saved by the most
recent snapshot.

Examples:
  howell snapshot "merged duplicate kiln entities"`

// NewSnapshotCmd creates the snapshot command.
func NewSnapshotCmd() *cobra.Command {
	cmder := &writeCommander{}

	cmd := &cobra.Command{
		Use:   "snapshot [note]",
		Short: "Record a consolidation snapshot",
		Long:  snapshotLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			note := ""
			if len(args) == 1 {
				note = args[0]
			}
			return cmder.withLocal(cmd, func(l *localcmd.Local) (any, string, error) {
				snap, err := l.Brain.SaveConsolidationSnapshot(note)
				if err != nil {
					return nil, "", err
				}
				return snap, fmt.Sprintf("Snapshot saved: %d entities, %d relations, %d sessions",
					snap.Counts.Entities, snap.Counts.Relations, snap.Counts.Sessions), nil
			})
		},
	}

	cmder.addFlags(cmd)

	return cmd
}
