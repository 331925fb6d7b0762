package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

var (
	listTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	tierCritical = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true) // Red
	tierHigh     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))          // Orange
	tierMedium   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))            // Yellow
	tierLow      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))            // Green
	ackedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// SignalItem implements list.Item for the signal list.
type SignalItem struct {
	Signal models.Signal
}

func (i SignalItem) FilterValue() string {
	return i.Signal.SignalType + " " + i.Signal.SourceProviderID
}

func (i SignalItem) Title() string {
	return fmt.Sprintf("%s  %s", formatTier(i.Signal.PriorityTier), i.Signal.SignalType)
}

func (i SignalItem) Description() string {
	parts := []string{
		fmt.Sprintf("score %.2f", i.Signal.PriorityScore),
		i.Signal.Timestamp.Local().Format("Jan 02 15:04"),
	}
	if i.Signal.SourceProviderID != "" {
		parts = append(parts, "from "+i.Signal.SourceProviderID)
	}
	if i.Signal.Status == models.SignalStatusAcknowledged {
		parts = append(parts, ackedStyle.Render("acknowledged"))
	}
	return strings.Join(parts, " • ")
}

func formatTier(t models.Tier) string {
	label := fmt.Sprintf("%-8s", strings.ToUpper(string(t)))
	switch t {
	case models.TierCritical:
		return tierCritical.Render(label)
	case models.TierHigh:
		return tierHigh.Render(label)
	case models.TierMedium:
		return tierMedium.Render(label)
	case models.TierLow:
		return tierLow.Render(label)
	default:
		return label
	}
}

var (
	filters      = []string{"pending", "acknowledged", ""}
	filterLabels = []string{"pending", "acknowledged", "all"}
)

func newSignalList() list.Model {
	delegate := list.NewDefaultDelegate()
	l := list.New([]list.Item{}, delegate, 80, 20)
	l.Title = "Signals [pending]"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = listTitleStyle
	return l
}

func signalItems(signals []models.Signal) []list.Item {
	items := make([]list.Item, len(signals))
	for i, s := range signals {
		items[i] = SignalItem{Signal: s}
	}
	return items
}
