// Package searchcmder provides the search command for full-text search over
// memory.
package searchcmder

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	localcmd "github.com/ryanlack616/howell-brain/cmd/howell/local"
	"github.com/ryanlack616/howell-brain/pkg/search"
)

var (
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type searchCommander struct {
	storage localcmd.StorageFlags
	asJSON  bool
	quiet   bool
}

const searchLongDesc string = `Search memory for a phrase.

Every term of the query must match. Results are grouped into knowledge graph
entities, sessions (hot and cold), pinned memories, and procedures.

Use --quiet to print only the matching document ids, one per line.

Examples:
  howell search kiln
  howell search "cone 6 glaze" --json`

const searchShortDesc string = "Search memory"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, strings.Join(args, " "))
		},
	}

	localcmd.AddStorageFlags(cmd, &cmder.storage)
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the results as JSON")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Print only document ids, one per line")

	return cmd
}

func (c *searchCommander) run(cmd *cobra.Command, query string) error {
	cfg, err := localcmd.LoadConfig(cmd, localcmd.StorageKeys...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	r, err := localcmd.OpenReader(cmd.Context(), cfg, localcmd.Logger(cmd))
	if err != nil {
		return err
	}
	defer r.Close()

	res, err := r.Search(cmd.Context(), query)
	if err != nil {
		return err
	}

	if c.asJSON {
		return localcmd.PrintJSON(os.Stdout, res)
	}

	groups := []struct {
		name string
		hits []search.Hit
	}{
		{"Knowledge graph", res.KnowledgeGraph},
		{"Sessions", res.Sessions},
		{"Pinned", res.Pinned},
		{"Procedures", res.Procedures},
	}

	if c.quiet {
		for _, g := range groups {
			for _, h := range g.hits {
				fmt.Println(h.ID)
			}
		}
		return nil
	}

	if res.Total() == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("\n%s %s\n", headerStyle.Render("Search results for:"), titleStyle.Render(fmt.Sprintf("%q", res.Query)))
	for _, g := range groups {
		if len(g.hits) == 0 {
			continue
		}
		fmt.Printf("\n  %s %s\n", headerStyle.Render(g.name), dimStyle.Render(fmt.Sprintf("(%d)", len(g.hits))))
		for _, h := range g.hits {
			printHit(h)
		}
	}
	fmt.Println()
	return nil
}

func printHit(h search.Hit) {
	label := titleStyle.Render(h.Title)
	if h.Tier != "" {
		label += " " + dimStyle.Render("["+h.Tier+"]")
	}
	fmt.Printf("  %s  %s\n", label, scoreStyle.Render(fmt.Sprintf("score: %.2f", h.Score)))
	for _, s := range h.Snippets {
		fmt.Printf("    %s\n", previewStyle.Render(strings.ReplaceAll(s, "\n", " ")))
	}
}
