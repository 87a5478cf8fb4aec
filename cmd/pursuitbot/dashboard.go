package main

import (
	"context"
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/pursuitbot/pkg/pilot"
	"github.com/gwillem/pursuitbot/pkg/robot"
)

const (
	headerHeight = 3 // title + status + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

var wheelColors = map[robot.Wheel]string{
	robot.LeftWheel:  "208", // orange
	robot.RightWheel: "51",  // cyan
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	modeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	searchStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	faultStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

type dashboardModel struct {
	ctrl     *pilot.Controller
	mode     string
	cancel   context.CancelFunc
	chart    *streamlinechart.Model
	width    int
	height   int
	logs     []string
	last     pilot.State
	quitting bool
}

func (m *dashboardModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg pilot.State
type logMsg string

func waitForState(ctrl *pilot.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *pilot.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

func (m *dashboardModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func (m *dashboardModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

// chartRange covers the largest wheel command the tuning can produce.
func chartRange(ctrl *pilot.Controller) float64 {
	t := ctrl.Tuning()
	r := t.Gains.SpeedMax + t.Gains.TurnMax
	for _, v := range []float64{t.BaseSpeed, t.Search.ScanSpeedRight, t.Search.ScanSpeedLeft} {
		r = math.Max(r, v)
	}
	return math.Ceil(r * 1.1)
}

func newDashboard(ctrl *pilot.Controller, mode string, cancel context.CancelFunc) dashboardModel {
	yr := chartRange(ctrl)
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-yr, yr),
	)
	for _, w := range robot.AllWheels() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(wheelColors[w]))
		chart.SetDataSetStyles(string(w), runes.ThinLineStyle, style)
	}

	return dashboardModel{
		ctrl:   ctrl,
		mode:   mode,
		cancel: cancel,
		chart:  &chart,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			// canceling the loop context is what stops the motors
			m.cancel()
			m.quitting = true
			return m, tea.Quit
		}

	case stateMsg:
		state := pilot.State(msg)
		m.last = state
		if state.Mode == pilot.ModeStopped {
			m.quitting = true
			return m, tea.Quit
		}
		m.chart.PushDataSet(string(robot.LeftWheel), state.Command.Left)
		m.chart.PushDataSet(string(robot.RightWheel), state.Command.Right)
		m.chart.DrawAll()
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.quitting {
		if m.last.Error != nil {
			return faultStyle.Render("Stopped: "+m.last.Error.Error()) + "\n"
		}
		return "Motors stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("pursuitbot " + m.mode))
	sb.WriteString(statusStyle.Render(fmt.Sprintf(" - tick %v", m.ctrl.Tuning().TickInterval)))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20)).
		Foreground(lipgloss.Color("9"))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to stop")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m dashboardModel) renderStatus() string {
	s := m.last
	mode := modeStyle
	if strings.HasPrefix(s.Mode, "SCAN") || s.Mode == pilot.ModeLost {
		mode = searchStyle
	}
	parts := []string{
		mode.Render(fmt.Sprintf("%-10s", s.Mode)),
		fmt.Sprintf("tick %d", s.Tick),
		s.Command.String(),
		fmt.Sprintf("duty L=%+d R=%+d", s.Output.Left.Signed(), s.Output.Right.Signed()),
	}
	if m.mode == robot.ModeFollow {
		parts = append(parts,
			fmt.Sprintf("e=(%+.3f, %+.1f)", s.Reading.Error.DistanceError, s.Reading.Error.PositionError),
			fmt.Sprintf("∫=(%+.3f, %+.3f)", s.Integrators.IntegralDistance, s.Integrators.IntegralPosition),
		)
	} else {
		parts = append(parts, fmt.Sprintf("clear=%.0f", s.Reading.Sample))
		if s.SearchDwell > 0 {
			parts = append(parts, fmt.Sprintf("sweep %.1fs/%.0fs", s.SearchElapsed.Seconds(), s.SearchDwell.Seconds()))
		}
	}
	return strings.Join(parts, statusStyle.Render("  │  "))
}

func renderLegend() string {
	var items []string
	for _, w := range robot.AllWheels() {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(wheelColors[w])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+string(w))
	}
	return strings.Join(items, "  ")
}
