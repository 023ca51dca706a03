package recordcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	localcmd "github.com/ryanlack616/howell-brain/cmd/howell/local"
	"github.com/ryanlack616/howell-brain/pkg/cliui"
)

const observeLongDesc string = `Record an observation about an entity.

The entity is created when it does not exist. Repeating an observation the
entity already has changes nothing.

Examples:
  howell observe Ryan "prefers cone 6 glazes" --kind person
  howell observe howell "stores memory as plain files"`

// NewObserveCmd creates the observe command.
func NewObserveCmd() *cobra.Command {
	cmder := &writeCommander{}
	var kind string

	cmd := &cobra.Command{
		Use:   "observe <entity> <text>",
		Short: "Record an observation about an entity",
		Long:  observeLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.withLocal(cmd, func(l *localcmd.Local) (any, string, error) {
				res, err := l.Brain.AddObservation(args[0], kind, args[1])
				if err != nil {
					return nil, "", err
				}
				if !res.Added {
					return res, fmt.Sprintf("%s already has that observation", cliui.NameStyle.Render(res.Entity.Name)), nil
				}
				return res, fmt.Sprintf("Observed %s", cliui.NameStyle.Render(res.Entity.Name)), nil
			})
		},
	}

	cmder.addFlags(cmd)
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Entity kind, used when the entity is created")

	return cmd
}

const relateLongDesc string = `Record a directed relation between two entities.

Entities that do not exist are created with an unknown kind.

Examples:
  howell relate Ryan works_on howell`

// NewRelateCmd creates the relate command.
func NewRelateCmd() *cobra.Command {
	cmder := &writeCommander{}

	cmd := &cobra.Command{
		Use:   "relate <from> <type> <to>",
		Short: "Record a relation between two entities",
		Long:  relateLongDesc,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.withLocal(cmd, func(l *localcmd.Local) (any, string, error) {
				res, err := l.Brain.AddRelation(args[0], args[1], args[2])
				if err != nil {
					return nil, "", err
				}
				return res, relationSummary("Related", "already related", res.Changed, args), nil
			})
		},
	}

	cmder.addFlags(cmd)

	return cmd
}

const unrelateLongDesc string = `Remove a directed relation between two entities.

The removal wins over additions of the same relation made at about the
same time on other machines. Removing a relation that does not exist
changes nothing.

Examples:
  howell unrelate Ryan works_on pottery`

// NewUnrelateCmd creates the unrelate command.
func NewUnrelateCmd() *cobra.Command {
	cmder := &writeCommander{}

	cmd := &cobra.Command{
		Use:   "unrelate <from> <type> <to>",
		Short: "Remove a relation between two entities",
		Long:  unrelateLongDesc,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.withLocal(cmd, func(l *localcmd.Local) (any, string, error) {
				res, err := l.Brain.RemoveRelation(args[0], args[1], args[2])
				if err != nil {
					return nil, "", err
				}
				return res, relationSummary("Removed", "not related", res.Changed, args), nil
			})
		},
	}

	cmder.addFlags(cmd)

	return cmd
}

func relationSummary(changed, unchanged string, ok bool, args []string) string {
	triple := fmt.Sprintf("%s %s %s",
		cliui.NameStyle.Render(args[0]),
		cliui.DimStyle.Render(args[1]),
		cliui.NameStyle.Render(args[2]),
	)
	if ok {
		return changed + " " + triple
	}
	return triple + " " + unchanged
}
