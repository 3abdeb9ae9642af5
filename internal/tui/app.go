// Package tui is a terminal inspector for a running flowtabs server.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/flowtabs/internal/server"
	"github.com/lotas/flowtabs/internal/types"
)

// --- Messages ---

type connectedMsg struct{ client *Client }
type connectErrMsg struct{ err error }
type wsDisconnectedMsg struct{}
type wsMsg struct{ msg server.OutgoingMsg }

// --- Command helpers ---

func connect(url string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c, err := Dial(ctx, url)
		if err != nil {
			return connectErrMsg{err}
		}
		return connectedMsg{c}
	}
}

func listen(c *Client) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-c.Messages()
		if !ok {
			return wsDisconnectedMsg{}
		}
		return wsMsg{msg}
	}
}

// sender is the part of Client the model uses.
type sender interface {
	Send(msg server.IncomingMsg) (string, error)
}

func sendCmd(c sender, msg server.IncomingMsg) tea.Cmd {
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		if _, err := c.Send(msg); err != nil {
			return connectErrMsg{err}
		}
		return nil
	}
}

// --- Model ---

type Model struct {
	url    string
	client *Client
	conn   sender

	state  *types.Session
	rows   []Row
	cursor int
	offset int

	status string
	err    error
	width  int
	height int
}

func NewModel(url string) Model {
	return Model{url: url}
}

func (m Model) Init() tea.Cmd {
	return connect(m.url)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.clampScroll()
		return m, nil

	case connectedMsg:
		m.client, m.conn, m.err = msg.client, msg.client, nil
		return m, tea.Batch(listen(msg.client), m.refresh())

	case connectErrMsg:
		m.err = msg.err
		return m, nil

	case wsDisconnectedMsg:
		m.client, m.conn = nil, nil
		m.err = fmt.Errorf("disconnected from %s", m.url)
		return m, nil

	case wsMsg:
		next := m.handleServerMsg(msg.msg)
		if m.client != nil {
			return m, tea.Batch(next, listen(m.client))
		}
		return m, next

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleServerMsg(msg server.OutgoingMsg) tea.Cmd {
	switch msg.Type {
	case server.TypeWindowTabsChanged:
		return m.refresh()
	case server.TypeReply:
		if msg.OK != nil && !*msg.OK {
			m.status = "error: " + msg.Error
		}
		if msg.State != nil {
			m.setState(msg.State)
		}
	}
	return nil
}

func (m *Model) setState(s *types.Session) {
	var selected Row
	if m.cursor < len(m.rows) {
		selected = m.rows[m.cursor]
	}
	m.state = s
	m.rows = BuildRows(s)
	// keep the cursor on the same tab or group
	for i, r := range m.rows {
		if r.Kind == selected.Kind && r.TabID == selected.TabID && r.GroupID == selected.GroupID {
			m.cursor = i
			break
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
	m.clampScroll()
}

func (m Model) refresh() tea.Cmd {
	return sendCmd(m.conn, server.IncomingMsg{Type: server.CmdGetState})
}

func (m Model) selected() (Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return Row{}, false
	}
	return m.rows[m.cursor], true
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.client != nil {
			m.client.Close()
		}
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		m.clampScroll()
		return m, nil
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		m.clampScroll()
		return m, nil
	case "r":
		m.status = ""
		return m, m.refresh()
	}

	row, ok := m.selected()
	if !ok || !row.Selectable() {
		return m, nil
	}
	var cmd server.IncomingMsg
	switch msg.String() {
	case "enter":
		if row.Kind == rowGroup {
			cmd = server.IncomingMsg{Type: server.CmdSetActive, GroupID: row.GroupID}
		} else {
			cmd = server.IncomingMsg{Type: server.CmdSetActive, TabID: row.TabID}
		}
	case "x":
		if row.Kind == rowGroup {
			cmd = server.IncomingMsg{Type: server.CmdDestroyGroup, GroupID: row.GroupID}
		} else {
			cmd = server.IncomingMsg{Type: server.CmdCloseTab, TabID: row.TabID}
		}
	case "s":
		cmd = server.IncomingMsg{Type: server.CmdSleep, TabID: row.TabID}
	case "w":
		cmd = server.IncomingMsg{Type: server.CmdWake, TabID: row.TabID}
	default:
		return m, nil
	}
	if (cmd.Type == server.CmdSleep || cmd.Type == server.CmdWake) && row.Kind != rowTab {
		return m, nil
	}
	m.status = ""
	return m, sendCmd(m.conn, cmd)
}

func (m Model) listHeight() int {
	return max(m.height-4, 1)
}

func (m *Model) clampScroll() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
}

var (
	topBarStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	bottomBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	folderStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	activeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	asleepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	cursorStyle    = lipgloss.NewStyle().Reverse(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func renderRow(r Row) string {
	indent := strings.Repeat("  ", r.Depth)
	marker := "  "
	switch {
	case r.Active:
		marker = "▶ "
	case r.Focused:
		marker = "● "
	}
	label := r.Label
	if r.Asleep {
		label += " z"
	}
	line := indent + marker + label
	switch {
	case r.Kind == rowWindow || r.Kind == rowSpace:
		return headerStyle.Render(line)
	case r.Kind == rowFolder:
		return folderStyle.Render(line)
	case r.Active:
		return activeStyle.Render(line)
	case r.Asleep:
		return asleepStyle.Render(line)
	}
	return line
}

func (m Model) View() string {
	if m.err != nil && m.state == nil {
		return fmt.Sprintf("\n  Error: %v\n\n  Press 'q' to quit.\n", m.err)
	}
	if m.state == nil {
		return fmt.Sprintf("\n  Connecting to %s...\n", m.url)
	}

	tabs, groups := len(m.state.Tabs), len(m.state.Groups)
	conn := "● connected"
	if m.client == nil {
		conn = "○ disconnected"
	}
	topBar := topBarStyle.Render(fmt.Sprintf("flowtabs %s  %d tabs · %d groups · %d folders", conn, tabs, groups, len(m.state.Folders)))

	var lines []string
	end := min(m.offset+m.listHeight(), len(m.rows))
	for i := m.offset; i < end; i++ {
		line := renderRow(m.rows[i])
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = append(lines, "  no tabs")
	}
	list := strings.Join(lines, "\n")

	bottom := "↑↓/jk navigate · enter activate · x close/ungroup · s sleep · w wake · r refresh · q quit"
	if m.status != "" {
		bottom = errorStyle.Render(m.status) + "  " + bottom
	} else if m.err != nil {
		bottom = errorStyle.Render(m.err.Error()) + "  " + bottom
	}
	return lipgloss.JoinVertical(lipgloss.Left, topBar, list, bottomBarStyle.Render(bottom))
}
