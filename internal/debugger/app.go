// Package debugger is an interactive stepper over the interpreter: one
// instruction per keypress, with live views of the operand stack, locals,
// frames, static fields, and a stack-depth chart.
package debugger

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/mabhi256/jrun/internal/vm"
	"github.com/mabhi256/jrun/utils"
)

// maxRunSteps bounds the run-to-end command so a non-terminating program
// cannot wedge the TUI.
const maxRunSteps = 1_000_000

type TabType int

const (
	CodeTab TabType = iota
	StaticsTab
	ChartTab
)

var tabNames = []string{"Code", "Statics", "Depth"}

type depthSample struct {
	at    time.Time
	depth int
}

type Model struct {
	thread    *vm.Thread
	className string

	activeTab TabType
	width     int
	height    int
	scroll    map[TabType]int

	steps    int
	finished bool
	runErr   error

	history  []depthSample
	warnings *[]string

	keys KeyMap
	help help.Model
}

func initialModel(thread *vm.Thread, className string, warnings *[]string) *Model {
	return &Model{
		thread:    thread,
		className: className,
		scroll:    make(map[TabType]int),
		history:   []depthSample{{at: time.Now(), depth: 0}},
		warnings:  warnings,
		keys:      keys,
		help:      help.New(),
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Step):
			m.step()

		case key.Matches(msg, m.keys.Run):
			for i := 0; i < maxRunSteps && !m.finished && m.runErr == nil; i++ {
				m.step()
			}

		case key.Matches(msg, m.keys.Tab):
			utils.CycleEnumPtr(&m.activeTab, 1, ChartTab)

		case key.Matches(msg, m.keys.BackTab):
			utils.CycleEnumPtr(&m.activeTab, -1, ChartTab)

		case key.Matches(msg, m.keys.Up):
			if m.scroll[m.activeTab] > 0 {
				m.scroll[m.activeTab]--
			}

		case key.Matches(msg, m.keys.Down):
			m.scroll[m.activeTab]++
		}
	}

	return m, nil
}

func (m *Model) step() {
	if m.finished || m.runErr != nil {
		return
	}
	if err := m.thread.Step(); err != nil {
		m.runErr = err
		return
	}
	m.steps++
	m.finished = m.thread.Done()
	m.history = append(m.history, depthSample{at: time.Now(), depth: len(m.thread.Stack())})
}

func (m *Model) status() string {
	switch {
	case m.runErr != nil:
		return utils.CriticalStyle.Render(fmt.Sprintf("fault: %v", m.runErr))
	case m.finished:
		result := "program finished"
		if v, ok := m.thread.Result(); ok {
			result = fmt.Sprintf("program finished, result %s", v)
		}
		return utils.GoodStyle.Render(result)
	default:
		return utils.TextStyle.Render(fmt.Sprintf("pc=%d  steps=%d  stack depth=%d",
			m.thread.PC(), m.steps, len(m.thread.Stack())))
	}
}

// StartDebugger runs the debugger TUI over a freshly started thread.
// Warnings emitted by the interpreter are redirected into the warnings
// pane for the duration of the session.
func StartDebugger(thread *vm.Thread, className string) error {
	warnings := &[]string{}
	previous := vm.Warnf
	vm.Warnf = func(format string, args ...any) {
		*warnings = append(*warnings, fmt.Sprintf(format, args...))
	}
	defer func() { vm.Warnf = previous }()

	program := tea.NewProgram(initialModel(thread, className, warnings), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
