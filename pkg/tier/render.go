package tier

import (
	"fmt"
	"strings"
)

// Render formats the records of one tier as markdown.
func Render(t Tier, c Contents) string {
	var b strings.Builder

	switch t {
	case Hot:
		fmt.Fprintf(&b, "## Hot: %d recent sessions\n\n", len(c.Hot))
		for _, s := range c.Hot {
			renderSession(&b, s)
		}

	case Warm:
		fmt.Fprintf(&b, "## Warm: %d summaries\n\n", len(c.Warm))
		if len(c.Warm) > 0 {
			b.WriteString("| Date | Summary |\n|---|---|\n")
		}
		for _, line := range c.Warm {
			date, summary, ok := strings.Cut(line, " | ")
			if !ok {
				date, summary = "", line
			}
			fmt.Fprintf(&b, "| %s | %s |\n", date, summary)
		}

	case Cold:
		fmt.Fprintf(&b, "## Cold: %d archived sessions\n\n", len(c.Cold))
		bucket := ""
		for _, s := range c.Cold {
			if bk := Bucket(s.Date); bk != bucket {
				bucket = bk
				fmt.Fprintf(&b, "### %s\n\n", bucket)
			}
			fmt.Fprintf(&b, "- %s\n", WarmLine(s))
		}

	case Core:
		fmt.Fprintf(&b, "## Core: %d pinned memories\n\n", len(c.Core))
		for _, p := range c.Core {
			fmt.Fprintf(&b, "### %s\n\n%s\n\n", p.Title, p.Text)
			if p.Reason != "" {
				fmt.Fprintf(&b, "_Pinned because: %s_\n\n", p.Reason)
			}
		}
	}

	return b.String()
}

func renderSession(b *strings.Builder, s Session) {
	date := undatedBucket
	if !s.Date.IsZero() {
		date = s.Date.Format(dateLayout)
	}
	fmt.Fprintf(b, "### %s: %s\n\n%s\n\n", date, s.Title, s.Narrative)
	if len(s.Learned) > 0 {
		b.WriteString("Learned:\n\n")
		for _, l := range s.Learned {
			fmt.Fprintf(b, "- %s\n", l)
		}
		b.WriteString("\n")
	}
}
