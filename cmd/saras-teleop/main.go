// saras-teleop drives a Saras robot from the terminal and charts its
// distance sensor live.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/Preet3627/Saras-AI/internal/config"
	"github.com/Preet3627/Saras-AI/pkg/drive"
	"github.com/Preet3627/Saras-AI/pkg/state"
)

const (
	headerHeight = 3 // title, status line, blank
	legendHeight = 2
	footerHeight = 7 // log box
	maxLogs      = 5
	borderSize   = 2

	distanceSeries = "distance"
	maxDistance    = 200.0
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	modeStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	distanceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// keyCommands maps keys to drive commands.
var keyCommands = map[string]drive.Maneuver{
	"up":    drive.Forward,
	"down":  drive.Backward,
	"left":  drive.RotateLeft,
	"right": drive.RotateRight,
	"a":     drive.StrafeLeft,
	"d":     drive.StrafeRight,
	" ":     drive.Stop,
}

type eventMsg event
type logMsg string
type errMsg struct{ err error }

type teleopModel struct {
	client *client
	events chan event
	errs   chan error
	speed  float64

	chart    *streamlinechart.Model
	width    int
	height   int
	logs     []string
	mode     string
	distance *float64
	motor    string
	quitting bool
}

func newTeleopModel(c *client, speed float64) teleopModel {
	chart := streamlinechart.New(80, 12, streamlinechart.WithYRange(0, maxDistance))
	chart.SetDataSetStyles(distanceSeries, runes.ThinLineStyle, distanceStyle)
	return teleopModel{
		client: c,
		events: make(chan event, 16),
		errs:   make(chan error, 4),
		speed:  speed,
		chart:  &chart,
		mode:   "?",
	}
}

func waitForEvent(ch <-chan event) tea.Cmd {
	return func() tea.Msg { return eventMsg(<-ch) }
}

func waitForErr(ch <-chan error) tea.Cmd {
	return func() tea.Msg { return errMsg{<-ch} }
}

func (m *teleopModel) addLog(msg string) {
	m.logs = append(m.logs, time.Now().Format("15:04:05")+" "+msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

func (m *teleopModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 12
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 6)
	return width, height
}

func (m teleopModel) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), waitForErr(m.errs))
}

// send posts a drive command without blocking the UI.
func (m teleopModel) send(man drive.Maneuver) tea.Cmd {
	c, speed := m.client, m.speed
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		res, err := c.command(ctx, man.String(), speed)
		if err != nil {
			return errMsg{fmt.Errorf("%s: %w", man, err)}
		}
		return logMsg(res.Message)
	}
}

func (m teleopModel) measure() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		res, err := c.command(ctx, "measure_distance", 0)
		if err != nil {
			return errMsg{err}
		}
		return logMsg(res.Message)
	}
}

func (m teleopModel) setMode(mode state.Mode) tea.Cmd {
	c := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		res, err := c.setMode(ctx, mode.String())
		if err != nil {
			return errMsg{err}
		}
		return logMsg("mode " + res.Mode)
	}
}

func (m teleopModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Sequence(m.send(drive.Stop), tea.Quit)
		case "m":
			return m, m.measure()
		}
		if man, ok := keyCommands[key]; ok {
			return m, m.send(man)
		}
		if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
			modes := state.Modes()
			if i := int(key[0] - '0'); i < len(modes) {
				return m, m.setMode(modes[i])
			}
		}
		return m, nil

	case eventMsg:
		m.apply(event(msg))
		return m, waitForEvent(m.events)

	case errMsg:
		if msg.err != nil {
			m.addLog(errorStyle.Render(msg.err.Error()))
		}
		return m, waitForErr(m.errs)

	case logMsg:
		if msg != "" {
			m.addLog(string(msg))
		}
		return m, nil
	}
	return m, nil
}

// apply folds a status feed event into the model.
func (m *teleopModel) apply(ev event) {
	if ev.Transition != nil {
		t := ev.Transition
		line := fmt.Sprintf("%s -> %s (%s)", t.From, t.To, t.Source)
		if t.Reason != "" {
			line += ": " + t.Reason
		}
		m.addLog(line)
		m.mode = t.To
	}
	if ev.Status == nil {
		return
	}
	m.mode = ev.Status.Mode
	m.motor = ev.Status.Motor.Maneuver
	m.distance = ev.Status.Distance
	if d := ev.Status.Distance; d != nil {
		m.chart.PushDataSet(distanceSeries, min(*d, maxDistance))
	} else {
		m.chart.PushDataSet(distanceSeries, 0)
	}
	m.chart.DrawAll()
}

func (m teleopModel) View() string {
	if m.quitting {
		return "Teleoperation stopped.\n"
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Saras Teleop"))
	sb.WriteString(statusStyle.Render("  " + m.client.base))
	sb.WriteString("\n")

	dist := "no echo"
	if m.distance != nil {
		dist = fmt.Sprintf("%.1f cm", *m.distance)
	}
	motor := m.motor
	if motor == "" {
		motor = drive.Stop.String()
	}
	sb.WriteString("mode " + modeStyle.Render(m.mode))
	sb.WriteString("  motor " + motor)
	sb.WriteString("  distance " + distanceStyle.Render(dist))
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))
	logLines := statusStyle.Render("Press 'q' to quit")
	if len(m.logs) > 0 {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")
	return sb.String()
}

func renderLegend() string {
	var modes []string
	for i, md := range state.Modes() {
		modes = append(modes, fmt.Sprintf("%d %s", i, md))
	}
	items := []string{
		distanceStyle.Bold(true).Render("━━") + " distance (cm)",
		"arrows drive",
		"a/d strafe",
		"space stop",
		"m measure",
		strings.Join(modes, " "),
	}
	return statusStyle.Render(strings.Join(items, "  "))
}

func main() {
	addr := flag.String("url", config.ServiceURL("http://localhost:"+config.DefaultPort), "Saras service URL (SARAS_URL)")
	speed := flag.Float64("speed", drive.DefaultSpeed, "Drive speed 1-100")
	flag.Parse()

	c := newClient(*addr)
	model := newTeleopModel(c, *speed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.watch(ctx, model.events, model.errs)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "teleop: %v\n", err)
		os.Exit(1)
	}
}
