// Package tui provides the terminal signal dashboard for SignalDesk.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

const refreshInterval = 5 * time.Second

var (
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	onlineStyle  = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	offlineStyle = lipgloss.NewStyle().Foreground(errorColor)
	helpStyle    = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
)

type viewMode int

const (
	modeList viewMode = iota
	modeDetail
)

// API is what the dashboard needs from the daemon.
type API interface {
	ListSignals(status string, limit int) ([]models.Signal, error)
	Acknowledge(id string) error
	CheckHealth() (*Health, error)
}

// App is the dashboard model.
type App struct {
	api       API
	list      list.Model
	signals   []models.Signal
	filterIdx int
	mode      viewMode
	current   *models.Signal
	health    *Health
	message   string
	width     int
	height    int
}

// New creates the dashboard for the daemon at apiAddr.
func New(apiAddr string) *App {
	return NewWithAPI(NewClient(apiAddr))
}

// NewWithAPI creates the dashboard over any API implementation.
func NewWithAPI(api API) *App {
	return &App{api: api, list: newSignalList()}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type (
	signalsLoadedMsg struct{ signals []models.Signal }
	healthMsg        struct{ health *Health }
	ackedMsg         struct{ id string }
	tickMsg          time.Time
	errMsg           struct{ err error }
)

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.fetchSignals(), a.checkHealth(), a.tick())
}

func (a *App) filter() string { return filters[a.filterIdx] }

func (a *App) fetchSignals() tea.Cmd {
	status := a.filter()
	return func() tea.Msg {
		signals, err := a.api.ListSignals(status, 200)
		if err != nil {
			return errMsg{err}
		}
		return signalsLoadedMsg{signals}
	}
}

func (a *App) checkHealth() tea.Cmd {
	return func() tea.Msg {
		h, err := a.api.CheckHealth()
		if err != nil {
			return healthMsg{nil}
		}
		return healthMsg{h}
	}
}

func (a *App) acknowledge(id string) tea.Cmd {
	return func() tea.Msg {
		if err := a.api.Acknowledge(id); err != nil {
			return errMsg{err}
		}
		return ackedMsg{id}
	}
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) selected() *models.Signal {
	item, ok := a.list.SelectedItem().(SignalItem)
	if !ok {
		return nil
	}
	s := item.Signal
	return &s
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.list.SetSize(msg.Width, max(msg.Height-4, 1))
		return a, nil

	case signalsLoadedMsg:
		a.signals = msg.signals
		cmd := a.list.SetItems(signalItems(msg.signals))
		return a, cmd

	case healthMsg:
		a.health = msg.health
		return a, nil

	case ackedMsg:
		a.message = "acknowledged " + msg.id
		if a.mode == modeDetail {
			a.mode = modeList
			a.current = nil
		}
		return a, a.fetchSignals()

	case tickMsg:
		return a, tea.Batch(a.fetchSignals(), a.checkHealth(), a.tick())

	case errMsg:
		a.message = "Error: " + msg.err.Error()
		return a, nil

	case tea.KeyMsg:
		if cmd, handled := a.handleKey(msg); handled {
			return a, cmd
		}
	}

	if a.mode == modeDetail {
		return a, nil
	}
	var cmd tea.Cmd
	a.list, cmd = a.list.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return tea.Quit, true
	}
	// While typing a list filter every key belongs to the list.
	if a.mode == modeList && a.list.FilterState() == list.Filtering {
		return nil, false
	}

	switch msg.String() {
	case "q":
		return tea.Quit, true
	case "esc":
		if a.mode == modeDetail {
			a.mode = modeList
			a.current = nil
			return nil, true
		}
	case "enter":
		if a.mode == modeList {
			if s := a.selected(); s != nil {
				a.current = s
				a.mode = modeDetail
			}
			return nil, true
		}
	case "r":
		a.message = ""
		return tea.Batch(a.fetchSignals(), a.checkHealth()), true
	case "f":
		if a.mode == modeList {
			a.filterIdx = (a.filterIdx + 1) % len(filters)
			a.list.Title = fmt.Sprintf("Signals [%s]", filterLabels[a.filterIdx])
			return a.fetchSignals(), true
		}
	case "a":
		target := a.current
		if a.mode == modeList {
			target = a.selected()
		}
		if target != nil && target.Status == models.SignalStatusPending {
			return a.acknowledge(target.ID), true
		}
		return nil, true
	}
	return nil, false
}

// View implements tea.Model.
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("SignalDesk"))
	b.WriteString("  ")
	b.WriteString(a.statusLine())
	b.WriteString("\n")

	switch a.mode {
	case modeDetail:
		if a.current != nil {
			b.WriteString(renderSignal(*a.current, a.width))
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("a: acknowledge • esc: back • q: quit"))
	default:
		b.WriteString(a.list.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: details • a: acknowledge • f: filter • r: refresh • q: quit"))
	}

	if a.message != "" {
		b.WriteString("\n")
		b.WriteString(a.message)
	}
	return b.String()
}

func (a *App) statusLine() string {
	if a.health == nil {
		return offlineStyle.Render("○ daemon offline")
	}
	parts := []string{}
	if a.health.OK {
		parts = append(parts, onlineStyle.Render("● daemon "+a.health.Version))
	} else {
		parts = append(parts, offlineStyle.Render("● daemon degraded: db "+a.health.DB))
	}
	if d := a.health.Dispatcher; d != nil {
		parts = append(parts, fmt.Sprintf("dispatch %d/%d", d.Active, d.GlobalMax))
	}
	parts = append(parts, fmt.Sprintf("%d shown", len(a.signals)))
	return strings.Join(parts, "  ")
}
