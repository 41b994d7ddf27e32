package tui

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/user/proxy-relay-go/internal/models"
	"github.com/user/proxy-relay-go/internal/sink"
)

// RecordsMsg delivers newly received records, oldest first.
type RecordsMsg []models.LogRecord

// proxyResultMsg reports the outcome of a start or stop.
type proxyResultMsg struct {
	status models.ProxyStatus
	err    error
}

// noticeMsg carries a warning from the log core.
type noticeMsg string

type tickMsg time.Time

func waitTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.render()
		return m, nil

	case RecordsMsg:
		m.records = append(m.records, msg...)
		m.render()
		return m, nil

	case tickMsg:
		m.refreshStatus()
		return m, waitTick()

	case noticeMsg:
		m.notice = string(msg)
		return m, nil

	case proxyResultMsg:
		m.busy = false
		m.proxyStatus = msg.status
		if msg.err != nil {
			m.statusMsg = msg.err.Error()
		} else {
			m.statusMsg = ""
		}
		if !m.running() {
			m.searchInput.SetValue("")
			m.searchInput.Blur()
			if m.focus == focusSearch {
				m.focus = focusLog
			}
			m.render()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "ctrl+s":
		return m.toggleProxy()
	}

	switch m.focus {
	case focusSearch:
		switch msg.String() {
		case "esc":
			m.searchInput.SetValue("")
			m.searchInput.Blur()
			m.focus = focusLog
			m.render()
			return m, nil
		case "enter":
			m.searchInput.Blur()
			m.focus = focusLog
			return m, nil
		}
		var cmd tea.Cmd
		before := m.searchInput.Value()
		m.searchInput, cmd = m.searchInput.Update(msg)
		if m.searchInput.Value() != before {
			m.render()
		}
		return m, cmd

	case focusHost, focusPort:
		switch msg.String() {
		case "esc":
			return m.setFocus(focusLog), nil
		case "tab":
			return m.setFocus(m.nextFocus()), nil
		case "enter":
			m = m.setFocus(focusLog)
			return m.toggleProxy()
		}
		var cmd tea.Cmd
		if m.focus == focusHost {
			m.hostInput, cmd = m.hostInput.Update(msg)
		} else {
			m.portInput, cmd = m.portInput.Update(msg)
		}
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "/":
		if !m.running() {
			m.statusMsg = "Search is available while the proxy is running."
			return m, nil
		}
		m.statusMsg = ""
		m = m.setFocus(focusSearch)
		return m, textinput.Blink
	case "tab":
		if m.running() {
			return m, nil
		}
		return m.setFocus(focusHost), textinput.Blink
	case "G", "end":
		m.follow = true
		m.viewport.GotoBottom()
		return m, nil
	case "g", "home":
		m.follow = false
		m.viewport.GotoTop()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.follow = m.viewport.AtBottom()
	return m, cmd
}

func (m Model) nextFocus() focusState {
	if m.focus == focusHost {
		return focusPort
	}
	return focusLog
}

func (m Model) setFocus(f focusState) Model {
	m.focus = f
	m.hostInput.Blur()
	m.portInput.Blur()
	m.searchInput.Blur()
	switch f {
	case focusHost:
		m.hostInput.Focus()
	case focusPort:
		m.portInput.Focus()
	case focusSearch:
		m.searchInput.Focus()
	}
	return m
}

// toggleProxy starts or stops the proxy off the UI goroutine.
func (m Model) toggleProxy() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}

	proxy := m.proxy
	timeout := m.opts.ControlTimeout

	if m.running() {
		m.busy = true
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			err := proxy.Stop(ctx)
			return proxyResultMsg{status: proxy.Status(), err: err}
		}
	}

	host := strings.TrimSpace(m.hostInput.Value())
	if host == "" {
		host = m.hostInput.Placeholder
	}
	port, err := strconv.Atoi(strings.TrimSpace(m.portInput.Value()))
	if err != nil || port < 1 || port > 65535 {
		m.statusMsg = "Port must be a number between 1 and 65535."
		return m, nil
	}

	m.busy = true
	m.statusMsg = ""
	m = m.setFocus(focusLog)
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := proxy.Start(ctx, host, port)
		return proxyResultMsg{status: proxy.Status(), err: err}
	}
}

func (m *Model) resize() {
	// title, controls, search, box borders, footer (border + 2 lines)
	const chrome = 1 + 1 + 1 + 2 + 3
	m.viewport.Width = max(m.width-2, 0)
	m.viewport.Height = max(m.height-chrome, 1)
	m.searchInput.Width = max(m.width-6, 10)
}

// render rebuilds the viewport content from the records that match the
// current search.
func (m *Model) render() {
	records := m.visibleRecords()
	var sb strings.Builder
	for i, r := range records {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(separatorStyle.Render(sink.Separator(r)))
		sb.WriteByte('\n')
		sb.WriteString(r.Text)
	}
	m.viewport.SetContent(sb.String())
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) visibleRecords() []models.LogRecord {
	term := m.searchInput.Value()
	if term == "" || !m.running() {
		return m.records
	}
	return sink.Filter(m.records, term)
}
