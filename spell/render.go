package spell

import (
	"fmt"
	"io"
	"strings"
)

const ruler = "=================================================="

// Render writes the spell book listing shown by the "list spells" spell.
func (c *Catalog) Render(w io.Writer) error {
	var b strings.Builder
	b.WriteString("\n🪄 Available Spells in Command Orchestra 📚\n\n")
	b.WriteString(ruler + "\n")
	for _, s := range c.spells {
		fmt.Fprintf(&b, "\n%s\n", s.Name)
		b.WriteString(strings.Repeat("-", len([]rune(s.Name))) + "\n")
		fmt.Fprintf(&b, "Triggers: %s\n", quoteJoin(s.Triggers, " | "))
		fmt.Fprintf(&b, "Description: %s\n", s.Description)
	}
	b.WriteString("\n" + ruler + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// Markdown renders the catalog as a Markdown table.
func (c *Catalog) Markdown() string {
	var b strings.Builder
	b.WriteString("| Spell | Triggers | Description |\n")
	b.WriteString("|---|---|---|\n")
	for _, s := range c.spells {
		fmt.Fprintf(&b, "| %s | %s | %s |\n",
			escapeCell(s.Name), escapeCell(quoteJoin(s.Triggers, ", ")), escapeCell(s.Description))
	}
	return b.String()
}

// Prompt renders the trigger table for the agent's system instructions.
func (c *Catalog) Prompt() string {
	var b strings.Builder
	for _, s := range c.spells {
		fmt.Fprintf(&b, "- %s → %s (tool: %s)\n", quoteJoin(s.Triggers, ", "), s.Description, s.Action)
	}
	return b.String()
}

func quoteJoin(items []string, sep string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = `"` + it + `"`
	}
	return strings.Join(quoted, sep)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
