package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/pursuitbot/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// minSensorSpan is the smallest dark/bright gap that still separates line from floor.
const minSensorSpan = 50

type SetupCommand struct {
	SkipWheels bool `long:"skip-wheels" description:"Do not spin the wheels to check their direction"`
	SkipSensor bool `long:"skip-sensor" description:"Do not calibrate the line sensor"`
}

func (c *SetupCommand) Execute(args []string) error {
	path := configPath()

	// an interrupt must still reach the deferred stop-all below
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println(headerStyle.Render("pursuitbot setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg := robot.DefaultConfig()
	if robot.ConfigExists(path) {
		loaded, err := robot.LoadConfigFrom(path)
		if err != nil {
			return err
		}
		cfg = loaded
		fmt.Println(dimStyle.Render("Starting from " + path))
	}

	// Step 1: port and mode
	if err := choosePort(ctx, cfg); err != nil {
		return err
	}
	if err := chooseMode(ctx, cfg); err != nil {
		return err
	}
	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	bridge, err := robot.OpenBridge(cfg.Port, cfg.Serial, cfg.Calibration)
	if err != nil {
		return err
	}
	defer bridge.Close()
	defer bridge.StopAll(context.Background())

	// Step 2: wheel directions
	if !c.SkipWheels {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render("━━━ Checking wheels ━━━"))
		fmt.Println("Lift the robot so the wheels spin freely.")
		fmt.Println()
		for _, w := range robot.AllWheels() {
			if err := checkWheel(ctx, bridge, cfg, w); err != nil {
				return err
			}
		}
		if err := cfg.SaveTo(path); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}

	// Step 3: line sensor
	if !c.SkipSensor {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render("━━━ Calibrating line sensor ━━━"))
		fmt.Println("Slide the sensor back and forth across the line and the floor.")
		fmt.Println()
		sc, err := calibrateSensor(ctx, bridge, cfg.Sensor)
		if err != nil {
			return err
		}
		if !sc.Valid(minSensorSpan) {
			fmt.Printf("Range %d..%d is too narrow (need %d); keeping previous threshold.\n", sc.Dark, sc.Bright, minSensorSpan)
		} else {
			cfg.Sensor = sc
			fmt.Printf("Threshold set to %d (dark %d, bright %d).\n", sc.Threshold(), sc.Dark, sc.Bright)
		}
	}

	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", path)
	fmt.Println()
	fmt.Println("Start driving with: " + headerStyle.Render("pursuitbot "+cfg.Mode))
	return nil
}

func choosePort(ctx context.Context, cfg *robot.Config) error {
	ports, err := robot.ListPorts()
	if err != nil {
		return fmt.Errorf("list serial ports: %w", err)
	}
	if len(ports) == 0 {
		return fmt.Errorf("no serial ports found; is the motor bridge plugged in?")
	}
	if cfg.Port != "" && !slices.Contains(ports, cfg.Port) {
		ports = append(ports, cfg.Port)
	}

	options := make([]huh.Option[string], 0, len(ports))
	for _, p := range ports {
		options = append(options, huh.NewOption(p, p))
	}
	port := cfg.Port
	if port == "" {
		port = ports[0]
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which serial port is the motor bridge on?").
				Options(options...).
				Value(&port),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return err
	}
	cfg.Port = port
	return nil
}

func chooseMode(ctx context.Context, cfg *robot.Config) error {
	mode := cfg.Mode
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("What should the robot chase?").
				Options(
					huh.NewOption("A dark line (color sensor)", robot.ModeLine),
					huh.NewOption("A target seen by a remote camera (telemetry)", robot.ModeFollow),
				).
				Value(&mode),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return err
	}
	cfg.Mode = mode
	if mode != robot.ModeFollow {
		return nil
	}

	tc := &cfg.Telemetry
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("MQTT broker").
				Description("e.g. tcp://broker.local:1883, leave empty to use UDP").
				Value(&tc.Broker),
			huh.NewInput().
				Title("MQTT topic").
				Value(&tc.Topic),
			huh.NewInput().
				Title("UDP listen address").
				Description("only used without a broker, e.g. :9999").
				Value(&tc.UDPAddr),
		),
	)
	return form.RunWithContext(ctx)
}

// checkWheel spins one wheel briefly and asks which way it turned,
// flipping the wheel's inversion when it ran backwards.
func checkWheel(ctx context.Context, bridge *robot.Bridge, cfg *robot.Config, w robot.Wheel) error {
	if cfg.Calibration == nil {
		cfg.Calibration = robot.DefaultCalibration()
	}
	wc := cfg.Calibration[w]

	fmt.Printf("  Spinning %s wheel (channel %d)...\n", w, wc.Channel)
	duty := max(cfg.MaxDuty/4, 1)
	out := robot.WheelOutput{Duty: duty, Dir: robot.Forward}
	if err := spinWheel(ctx, bridge, w, out, 800*time.Millisecond); err != nil {
		return err
	}

	var answer string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Which way did the %s wheel turn?", w)).
				Options(
					huh.NewOption("Forward", "forward"),
					huh.NewOption("Backward", "backward"),
					huh.NewOption("It did not move", "none"),
				).
				Value(&answer),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return err
	}

	switch answer {
	case "backward":
		wc.Inverted = !wc.Inverted
		cfg.Calibration[w] = wc
		fmt.Printf("  Marked the %s wheel as inverted.\n", w)
	case "none":
		fmt.Printf("  Check the wiring of channel %d.\n", wc.Channel)
	}
	return nil
}

// spinWheel drives one wheel for d and then stops all motors, also when ctx
// ends early.
func spinWheel(ctx context.Context, act robot.Actuator, w robot.Wheel, out robot.WheelOutput, d time.Duration) error {
	defer act.StopAll(context.Background())

	if err := act.Drive(ctx, w, out); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return act.StopAll(ctx)
}

func calibrateSensor(ctx context.Context, bridge *robot.Bridge, prev robot.SensorCalibration) (robot.SensorCalibration, error) {
	readCtx, cancel := context.WithTimeout(ctx, time.Second)
	first, err := bridge.ReadClear(readCtx)
	cancel()
	if err != nil {
		return robot.SensorCalibration{}, fmt.Errorf("read sensor: %w", err)
	}

	p := tea.NewProgram(sensorModel{bridge: bridge, prev: prev, cur: first, dark: first, bright: first}, tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return robot.SensorCalibration{}, fmt.Errorf("running calibration: %w", err)
	}
	m := final.(sensorModel)
	return robot.SensorCalibration{Dark: m.dark, Bright: m.bright}, nil
}

// Sensor calibration TUI model
type sensorModel struct {
	bridge   *robot.Bridge
	prev     robot.SensorCalibration
	cur      int
	dark     int
	bright   int
	samples  int
	failures int
	quitting bool
}

type tickMsg time.Time

func sensorTick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m sensorModel) Init() tea.Cmd {
	return sensorTick()
}

func (m sensorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		v, err := m.bridge.ReadClear(ctx)
		cancel()
		if err != nil {
			m.failures++
			return m, sensorTick()
		}
		m.samples++
		m.cur = v
		m.dark = min(m.dark, v)
		m.bright = max(m.bright, v)
		return m, sensorTick()
	}

	return m, nil
}

// level shows where the current reading sits in the range seen so far, and
// in the previously saved range when there is one.
func (m sensorModel) level(sc robot.SensorCalibration) string {
	lvl := fmt.Sprintf("%.0f%%", sc.Normalize(m.cur))
	if m.prev.Bright > m.prev.Dark {
		lvl += fmt.Sprintf(" (saved %.0f%%)", m.prev.Normalize(m.cur))
	}
	return lvl
}

func (m sensorModel) View() string {
	if m.quitting {
		return ""
	}

	sc := robot.SensorCalibration{Dark: m.dark, Bright: m.bright}
	span := m.bright - m.dark

	headerCell := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	current := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	good := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	low := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Current", "Level", "Dark", "Bright", "Span", "Threshold").
		Rows([]string{
			fmt.Sprintf("%d", m.cur),
			m.level(sc),
			fmt.Sprintf("%d", m.dark),
			fmt.Sprintf("%d", m.bright),
			fmt.Sprintf("%d", span),
			fmt.Sprintf("%d", sc.Threshold()),
		}).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			switch col {
			case 0:
				return current
			case 4:
				if sc.Valid(minSensorSpan) {
					return good
				}
				return low
			default:
				return cell
			}
		})

	var sb strings.Builder
	sb.WriteString(t.Render())
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(fmt.Sprintf("%d samples, %d failed reads", m.samples, m.failures)))
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Press Enter when done"))
	return sb.String()
}
