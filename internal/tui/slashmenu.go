package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SlashMenuItem is a single entry in the slash command autocomplete menu.
type SlashMenuItem struct {
	Name string // e.g. "/provider"
	Desc string // e.g. "List saved chats"
}

// BuiltinSlashCommands returns the hardcoded list of built-in slash commands.
func BuiltinSlashCommands() []SlashMenuItem {
	return []SlashMenuItem{
		{Name: "/new", Desc: "Start a new chat"},
		{Name: "/provider", Desc: "Show, switch or configure the provider"},
		{Name: "/providers", Desc: "List available providers"},
		{Name: "/models", Desc: "List models of the current provider"},
		{Name: "/sessions", Desc: "List saved chats"},
		{Name: "/load", Desc: "Open a saved chat"},
		{Name: "/delete", Desc: "Delete a chat"},
		{Name: "/history", Desc: "Show the current transcript"},
		{Name: "/help", Desc: "Show help message"},
		{Name: "/quit", Desc: "Exit"},
	}
}

// filterSlashItems returns items whose Name starts with the given prefix (case-insensitive).
func filterSlashItems(items []SlashMenuItem, prefix string) []SlashMenuItem {
	if prefix == "" || prefix == "/" {
		return items
	}
	lower := strings.ToLower(prefix)
	var out []SlashMenuItem
	for _, it := range items {
		if strings.HasPrefix(strings.ToLower(it.Name), lower) {
			out = append(out, it)
		}
	}
	return out
}

// ── styles for the slash menu ────────────────────────────────────────────────

var (
	slashMenuBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	slashMenuItemNormal = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	slashMenuItemSelected = lipgloss.NewStyle().
				Foreground(lipgloss.Color("220")).
				Bold(true)

	slashMenuDesc = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	slashMenuDescSelected = lipgloss.NewStyle().
				Foreground(lipgloss.Color("178"))
)

// renderSlashMenu renders the slash command dropdown menu.
// sel is the currently highlighted index. width is the available terminal width.
func renderSlashMenu(items []SlashMenuItem, sel int, width int) string {
	if len(items) == 0 {
		return ""
	}

	// Compute the max command name width for alignment.
	maxName := 0
	for _, it := range items {
		if len(it.Name) > maxName {
			maxName = len(it.Name)
		}
	}

	var lines []string
	for i, it := range items {
		name := it.Name
		// Pad name for alignment.
		padded := name + strings.Repeat(" ", maxName-len(name))

		var line string
		if i == sel {
			line = slashMenuItemSelected.Render(padded) + "   " + slashMenuDescSelected.Render(it.Desc)
		} else {
			line = slashMenuItemNormal.Render(padded) + "   " + slashMenuDesc.Render(it.Desc)
		}
		lines = append(lines, line)
	}

	inner := strings.Join(lines, "\n")

	// Constrain the box width.
	maxWidth := width - 6
	if maxWidth < 30 {
		maxWidth = 30
	}
	return slashMenuBorder.MaxWidth(maxWidth).Render(inner)
}
