// Package tui is the terminal Log Sink viewer: proxy controls on top, the
// relay's records in a scrolling view below, status at the bottom.
package tui

import (
	"context"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/user/proxy-relay-go/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")). // White
			Background(lipgloss.Color("#7D56F4")). // Purple
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bcbcbc")) // Light Gray

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5f5fd7")). // Purple/Blue
			Bold(true)

	logBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#585858")) // Dark Gray

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5f5fd7")) // Purple/Blue

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676")). // Dimmed Gray
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(lipgloss.Color("#585858")). // Dark Gray
			Padding(0, 1)

	startButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#ffffff")). // White
				Background(lipgloss.Color("#22aa22")). // Green
				Padding(0, 1).
				Bold(true)

	stopButtonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")). // White
			Background(lipgloss.Color("#d75f5f")). // Red
			Padding(0, 1).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#5fd75f")) // Green

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff5f5f")). // Soft red
			Bold(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffdf87")) // Amber
)

type focusState int

const (
	focusLog focusState = iota
	focusHost
	focusPort
	focusSearch
)

// Controller starts and stops the intercepting proxy.
type Controller interface {
	Start(ctx context.Context, host string, port int) error
	Stop(ctx context.Context) error
	Status() models.ProxyStatus
}

// RelayStatusProvider reports relay availability.
type RelayStatusProvider interface {
	Status() models.RelayStatus
}

// Options configures the viewer model.
type Options struct {
	Version string
	Host    string
	Port    int
	// ControlTimeout bounds proxy start/stop.
	ControlTimeout time.Duration
}

// Model is the bubbletea model for the viewer.
type Model struct {
	proxy Controller
	relay RelayStatusProvider
	opts  Options

	hostInput   textinput.Model
	portInput   textinput.Model
	searchInput textinput.Model
	viewport    viewport.Model
	focus       focusState

	records     []models.LogRecord
	proxyStatus models.ProxyStatus
	relayStatus models.RelayStatus
	busy        bool
	follow      bool

	statusMsg string // transient error shown in the footer
	notice    string // last warning from the log core
	width     int
	height    int
	quitting  bool
}

// NewModel creates the viewer model.
func NewModel(proxy Controller, relay RelayStatusProvider, opts Options) Model {
	if opts.ControlTimeout <= 0 {
		opts.ControlTimeout = 10 * time.Second
	}

	host := textinput.New()
	host.Placeholder = "127.0.0.1"
	host.CharLimit = 253
	host.Width = 24
	host.Prompt = ""
	host.SetValue(opts.Host)

	port := textinput.New()
	port.Placeholder = "8080"
	port.CharLimit = 5
	port.Width = 6
	port.Prompt = ""
	if opts.Port > 0 {
		port.SetValue(strconv.Itoa(opts.Port))
	}

	search := textinput.New()
	search.Placeholder = "Search records..."
	search.CharLimit = 156
	search.Width = 50
	search.Prompt = "/ "
	search.PromptStyle = promptStyle

	vp := viewport.New(0, 0)

	m := Model{
		proxy:       proxy,
		relay:       relay,
		opts:        opts,
		hostInput:   host,
		portInput:   port,
		searchInput: search,
		viewport:    vp,
		focus:       focusLog,
		follow:      true,
	}
	m.refreshStatus()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitTick())
}

// Records returns the records received so far.
func (m Model) Records() []models.LogRecord {
	return m.records
}

func (m *Model) refreshStatus() {
	m.proxyStatus = m.proxy.Status()
	if m.relay != nil {
		m.relayStatus = m.relay.Status()
	}
}

func (m Model) running() bool {
	return m.proxyStatus.Running
}
