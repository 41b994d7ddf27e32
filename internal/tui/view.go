package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/user/proxy-relay-go/internal/models"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	title := titleStyle.Render("proxy-relay")
	if m.opts.Version != "" {
		title += " " + labelStyle.Render(m.opts.Version)
	}

	search := labelStyle.Render("Search is available while the proxy is running.")
	if m.running() {
		search = m.searchInput.View()
	}

	box := logBoxStyle.
		Width(max(m.width-2, 0)).
		Render(m.logView())

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.controlsView(),
		search,
		box,
		m.footerView(),
	)
}

func (m Model) controlsView() string {
	host := m.hostInput.View()
	port := m.portInput.View()
	if m.running() {
		host = labelStyle.Render(m.proxyStatus.Host)
		port = labelStyle.Render(fmt.Sprint(m.proxyStatus.Port))
	}

	button := startButtonStyle.Render("Start")
	if m.running() {
		button = stopButtonStyle.Render("Stop")
	}
	if m.busy {
		button = labelStyle.Render("...")
	}

	return lipgloss.JoinHorizontal(lipgloss.Center,
		labelStyle.Render("Host: "), host,
		labelStyle.Render("  Port: "), port,
		"  ", button,
	)
}

func (m Model) logView() string {
	if len(m.records) == 0 {
		return labelStyle.Render("Waiting for intercepted requests...")
	}
	if len(m.visibleRecords()) == 0 {
		return labelStyle.Render("No records match the search.")
	}
	return m.viewport.View()
}

func (m Model) footerView() string {
	status := m.proxyStatus.Text()
	if m.running() {
		status = okStyle.Render(status)
	}

	lines := []string{
		status + "  " + relayText(m.relayStatus),
	}

	switch {
	case m.statusMsg != "":
		lines = append(lines, errorStyle.Render(m.statusMsg))
	case m.notice != "":
		lines = append(lines, noticeStyle.Render(m.notice))
	default:
		lines = append(lines, m.helpText())
	}

	return footerStyle.Width(max(m.width, 0)).Render(strings.Join(lines, "\n"))
}

func (m Model) helpText() string {
	switch m.focus {
	case focusSearch:
		return "Mode: Searching (Enter to keep, Esc to clear)"
	case focusHost, focusPort:
		return "Mode: Editing (Tab next field, Enter start, Esc done)"
	}
	if m.running() {
		return "ctrl+s stop · / search · ↑/↓ scroll · G follow · q quit"
	}
	return "ctrl+s start · tab edit address · ↑/↓ scroll · q quit"
}

func relayText(st models.RelayStatus) string {
	switch {
	case st.Error != "":
		return errorStyle.Render("Relay unavailable: " + st.Error)
	case !st.Available:
		return errorStyle.Render("Relay unavailable.")
	default:
		return fmt.Sprintf("Relay on %s (%s, %d records)", st.Address, st.State, st.RecordsEmitted)
	}
}
