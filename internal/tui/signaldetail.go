package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Width(14)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#6B7280")).
			Padding(0, 1)
)

// renderSignal formats one signal for the detail pane.
func renderSignal(s models.Signal, width int) string {
	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	row("ID", s.ID)
	row("Type", s.SignalType)
	row("Tier", formatTier(s.PriorityTier))
	row("Score", fmt.Sprintf("%.3f", s.PriorityScore))
	row("Status", string(s.Status))
	row("Source", s.SourceProviderID)
	row("Received", s.Timestamp.Local().Format("2006-01-02 15:04:05"))
	row("Providers", strings.Join(s.RecommendedProviders, ", "))
	if len(s.AffectedEntities) > 0 {
		row("Affects", strings.Join(s.AffectedEntities, ", "))
	}

	if len(s.Payload) > 0 {
		b.WriteString("\nPayload\n")
		keys := make([]string, 0, len(s.Payload))
		for k := range s.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			row("  "+k, fmt.Sprint(s.Payload[k]))
		}
	}

	style := panelStyle
	if width > 4 {
		style = style.Width(width - 4)
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}
