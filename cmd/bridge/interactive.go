package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/wasm-bridge/runtime"
)

const commandHelp = "tick [n] • enable <node> • disable <node> • save <node> • keys • reload • q quit"

type interactiveModel struct {
	cfg       runtime.Config
	module    string
	scenePath string

	session *session
	err     error
	status  string

	input    textinput.Model
	view     viewport.Model
	ready    bool
	quitting bool
}

type loadedMsg struct {
	session *session
	err     error
}

func newInteractiveModel(cfg runtime.Config, modulePath, scenePath string) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "tick"
	ti.Prompt = "> "
	ti.Width = 40
	ti.Focus()
	return &interactiveModel{
		cfg:       cfg,
		module:    modulePath,
		scenePath: scenePath,
		input:     ti,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.load)
}

func (m *interactiveModel) load() tea.Msg {
	s, err := openSession(context.Background(), m.cfg, quiet(), m.module, m.scenePath)
	return loadedMsg{session: s, err: err}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - 6
		if height < 3 {
			height = 3
		}
		if !m.ready {
			m.view = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = height
		}
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, m.quit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "q" || line == "quit" {
				return m, m.quit()
			}
			m.exec(line)
			m.refresh()
			return m, nil
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.status = "scene loaded"
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) quit() tea.Cmd {
	m.quitting = true
	if m.session != nil {
		_ = m.session.close(context.Background())
	}
	return tea.Quit
}

// exec runs one command line against the session.
func (m *interactiveModel) exec(line string) {
	if m.session == nil {
		return
	}
	ctx := context.Background()
	m.err = nil

	fields := strings.Fields(line)
	if len(fields) == 0 {
		fields = []string{"tick"}
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "tick", "t":
		n := 1
		if arg != "" {
			v, err := strconv.Atoi(arg)
			if err != nil || v < 1 {
				m.err = fmt.Errorf("tick count must be a positive integer")
				return
			}
			n = v
		}
		m.session.tick(ctx, n)
		m.status = fmt.Sprintf("ran %d tick(s)", n)
	case "enable", "disable":
		if err := m.session.setEnabled(ctx, arg, fields[0] == "enable"); err != nil {
			m.err = err
			return
		}
		m.status = fields[0] + "d " + arg
	case "save":
		typeName, err := m.session.save(ctx, arg)
		if err != nil {
			m.err = err
			return
		}
		m.status = "saved " + typeName + " as " + arg
	case "keys":
		keys, err := m.session.keys(ctx)
		if err != nil {
			m.err = err
			return
		}
		m.status = "saves: " + strings.Join(keys, ", ")
	case "reload":
		if err := m.session.reload(ctx); err != nil {
			m.err = err
			return
		}
		m.status = "module reloaded"
	default:
		m.err = fmt.Errorf("unknown command %q", fields[0])
	}
}

func (m *interactiveModel) refresh() {
	if m.ready && m.session != nil {
		m.view.SetContent(m.session.snapshot())
	}
}

func (m *interactiveModel) View() string {
	if m.quitting {
		return ""
	}
	if m.session == nil {
		if m.err != nil {
			return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress esc to quit.", m.err))
		}
		return "Loading module..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Bridge"))
	if d := m.session.rt.Domain(); d != nil {
		b.WriteString(" ")
		b.WriteString(d.Name())
	}
	b.WriteString("\n")
	if m.ready {
		b.WriteString(m.view.View())
	}
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
	} else {
		b.WriteString(resultStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(commandHelp))
	return b.String()
}

func runInteractive(cfg runtime.Config, modulePath, scenePath string) error {
	p := tea.NewProgram(newInteractiveModel(cfg, modulePath, scenePath), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
