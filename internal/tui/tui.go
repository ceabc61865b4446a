package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"codeberg.org/algopatterns/collab/internal/config"
)

const headerHeight = 3
const footerHeight = 4

func NewApp(flags config.WatchFlags) *Model {
	ti := textinput.New()
	ti.Placeholder = "type an update and press enter..."
	ti.Focus()
	ti.CharLimit = 0
	ti.Width = 80
	ti.Prompt = "> "
	ti.PromptStyle = promptStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorWhite)

	return &Model{
		client:     NewWSClient(flags),
		input:      ti,
		documentID: flags.DocumentID,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.client.ConnectCmd())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.client.Close()
			return m, tea.Quit

		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" || !m.connected {
				return m, nil
			}

			m.input.SetValue("")
			return m, m.client.SendUpdateCmd(text)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, msg.Width-6)

		vh := max(1, msg.Height-headerHeight-footerHeight)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vh)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vh
		}

		m.refresh()

	case WSConnectedMsg:
		m.connected = true
		m.appendLine(presenceStyle.Render("connected to " + m.documentID))
		return m, m.client.NextFrameCmd()

	case WSConnectErrorMsg:
		m.err = msg.err
		return m, nil

	case FrameMsg:
		m.applyFrame(msg.frame)
		return m, m.client.NextFrameCmd()

	case WSDisconnectedMsg:
		m.connected = false
		reason := "connection closed"
		if msg.err != nil {
			reason = fmt.Sprintf("connection closed: %v", msg.err)
		}
		m.appendLine(warnStyle.Render(reason))
		return m, nil

	case SendErrorMsg:
		m.appendLine(errorStyle.Render(fmt.Sprintf("send failed: %v", msg.err)))
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// folds a server frame into the model
func (m *Model) applyFrame(f Frame) {
	switch f.Type {
	case typeInit:
		var d initData
		if err := json.Unmarshal(f.Data, &d); err == nil {
			m.documentID = d.DocumentID
			m.participants = d.Participants
		}

	case typeSync:
		var d syncData
		if err := json.Unmarshal(f.Data, &d); err == nil {
			if len(d.Updates) > 0 {
				m.appendLine(signalStyle.Render(fmt.Sprintf("replaying %d buffered updates", len(d.Updates))))
			}

			for _, u := range d.Updates {
				m.appendLine(describe(u))
			}
		}

	case typePresence:
		var d presenceData
		if err := json.Unmarshal(f.Data, &d); err == nil {
			m.participants = d.Participants
		}

		m.appendLine(describe(f))

	case typePong:

	default:
		m.appendLine(describe(f))
	}
}

func (m *Model) appendLine(line string) {
	if line == "" {
		return
	}

	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}

	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}

	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m *Model) View() string {
	if m.err != nil {
		return errorView(m.err)
	}

	if !m.ready {
		return "\n  connecting..."
	}

	var b strings.Builder

	status := errorStyle.Render("offline")
	if m.connected {
		status = presenceStyle.Render("live")
	}

	b.WriteString(titleStyle.Render("ROOM "+m.documentID) + "  " + status + "\n")
	b.WriteString(helpStyle.Render("present: "+names(m.participants)) + "\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(borderStyle.Width(max(10, m.width-2)).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("[Enter: send update] [Esc/Ctrl+C: quit]"))

	return b.String()
}

func errorView(err error) string {
	return fmt.Sprintf("\n  Error: %v\n\n  Press Ctrl+C to exit\n", err)
}
