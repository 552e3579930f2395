package debugger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mabhi256/jrun/internal/disasm"
	"github.com/mabhi256/jrun/internal/vm"
	"github.com/mabhi256/jrun/utils"
)

// codeContext is how many instructions are shown either side of the PC.
const codeContext = 10

func (m *Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	var sections []string
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top,
		utils.TitleStyle.Render("jrun debug: "+m.className), m.renderTabs()))
	sections = append(sections, m.status())

	switch m.activeTab {
	case CodeTab:
		sections = append(sections, m.renderCodeTab())
	case StaticsTab:
		sections = append(sections, m.renderStaticsTab())
	case ChartTab:
		sections = append(sections, m.renderChartTab())
	}

	if warnings := m.renderWarnings(); warnings != "" {
		sections = append(sections, warnings)
	}
	sections = append(sections, m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderTabs() string {
	var tabs []string
	for i, name := range tabNames {
		if TabType(i) == m.activeTab {
			tabs = append(tabs, utils.TabActiveStyle.Render(name))
		} else {
			tabs = append(tabs, utils.TabInactiveStyle.Render(name))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) renderCodeTab() string {
	left := utils.BoxStyle.Render(m.renderListing())
	right := lipgloss.JoinVertical(lipgloss.Left,
		utils.BoxStyle.Render(m.renderStack()),
		utils.BoxStyle.Render(m.renderLocals()),
		utils.BoxStyle.Render(m.renderFrames()),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m *Model) renderListing() string {
	code := m.thread.Runtime().Instructions()
	if len(code) == 0 {
		return "no code linked"
	}

	lines := disasm.Decode(code, 0)
	pc := m.thread.PC()

	current := 0
	for i, line := range lines {
		if line.PC <= pc {
			current = i
		}
	}

	start := max(current-codeContext, 0)
	end := min(current+codeContext+1, len(lines))

	var sb strings.Builder
	sb.WriteString(utils.TitleStyle.Render("Code") + "\n")
	for i := start; i < end; i++ {
		sb.WriteString(disasm.RenderLine(lines[i], lines[i].PC == pc && !m.finished))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (m *Model) renderStack() string {
	stack := m.thread.Stack()

	var sb strings.Builder
	sb.WriteString(utils.TitleStyle.Render(fmt.Sprintf("Operand stack (%d)", len(stack))) + "\n")
	if len(stack) == 0 {
		sb.WriteString(utils.MutedStyle.Render("  empty"))
		return sb.String()
	}
	for i := len(stack) - 1; i >= 0; i-- {
		v := stack[i]
		sb.WriteString(fmt.Sprintf("  %s %s\n",
			utils.MutedStyle.Render(fmt.Sprintf("%-9s", v.Kind())),
			utils.TextStyle.Render(v.String())))
	}
	return sb.String()
}

func (m *Model) renderLocals() string {
	frames := m.thread.Frames()

	var sb strings.Builder
	sb.WriteString(utils.TitleStyle.Render("Locals") + "\n")
	if len(frames) == 0 {
		sb.WriteString(utils.MutedStyle.Render("  no frame"))
		return sb.String()
	}
	locals := frames[len(frames)-1].Locals
	if len(locals) == 0 {
		sb.WriteString(utils.MutedStyle.Render("  none"))
		return sb.String()
	}
	for i, v := range locals {
		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			utils.MutedStyle.Render(fmt.Sprintf("%2d", i)),
			utils.MutedStyle.Render(fmt.Sprintf("%-9s", v.Kind())),
			utils.TextStyle.Render(v.String())))
	}
	return sb.String()
}

func (m *Model) renderFrames() string {
	frames := m.thread.Frames()

	var sb strings.Builder
	sb.WriteString(utils.TitleStyle.Render(fmt.Sprintf("Frames (%d)", len(frames))) + "\n")
	if len(frames) == 0 {
		sb.WriteString(utils.MutedStyle.Render("  none"))
		return sb.String()
	}
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		marker := "  "
		if i == len(frames)-1 {
			marker = utils.GoodStyle.Render("➤ ")
		}
		name := f.ClassName
		if f.IsClinit() {
			name += " <clinit>"
		}
		sb.WriteString(fmt.Sprintf("%s%s %s\n", marker,
			utils.TextStyle.Render(name),
			utils.MutedStyle.Render(fmt.Sprintf("base=%d ret=%d", f.BasePointer, f.ReturnPC))))
	}
	return sb.String()
}

func (m *Model) renderStaticsTab() string {
	rt := m.thread.Runtime()

	var sb strings.Builder
	any := false
	for _, className := range linkedClassNames(rt) {
		class, _ := rt.Class(className)
		if len(class.Fields) == 0 {
			continue
		}
		any = true

		status := utils.WarningStyle.Render("uninitialized")
		if rt.IsInitialized(className) {
			status = utils.GoodStyle.Render("initialized")
		}
		sb.WriteString(utils.TitleStyle.Render(className) + " " + status + "\n")

		names := make([]string, 0, len(class.Fields))
		for name := range class.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			field := class.Fields[name]
			sb.WriteString(fmt.Sprintf("  %s %s = %s\n",
				utils.MutedStyle.Render(field.Type.String()),
				utils.TextStyle.Render(name),
				utils.InfoStyle.Render(field.Value.String())))
		}
	}
	if !any {
		return utils.BoxStyle.Render(utils.MutedStyle.Render("no static fields"))
	}
	return utils.BoxStyle.Render(sb.String())
}

func (m *Model) renderChartTab() string {
	if len(m.history) < 2 {
		return utils.BoxStyle.Render(utils.MutedStyle.Render("step to collect stack-depth samples"))
	}

	graphWidth := max(m.width-10, 40)
	chart := utils.NewChart(graphWidth, 10)
	for _, sample := range m.history {
		chart.Push(utils.SamplePoint(sample.at, float64(sample.depth)))
	}
	chart.SetStyle(lipgloss.NewStyle().Foreground(utils.GoodColor))
	chart.DrawBrailleAll()

	legend := lipgloss.NewStyle().Foreground(utils.GoodColor).Render("■ operand-stack depth")
	return utils.BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, legend, "", chart.View()))
}

func (m *Model) renderWarnings() string {
	if m.warnings == nil || len(*m.warnings) == 0 {
		return ""
	}
	recent := *m.warnings
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	var sb strings.Builder
	for _, w := range recent {
		sb.WriteString(utils.WarningStyle.Render("⚠ "+w) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func linkedClassNames(rt *vm.Runtime) []string {
	names := rt.LinkedClasses()
	sort.Strings(names)
	return names
}
