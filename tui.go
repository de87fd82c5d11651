package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"github.com/wufe/catears-dashboard/internal/client"
	"github.com/wufe/catears-dashboard/internal/schema"
	"github.com/wufe/catears-dashboard/internal/store"
	"github.com/wufe/catears-dashboard/internal/syncer"
)

var (
	redTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnTextStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	greenTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	blueTextStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const servoStep = 5

type TUI struct {
	done         *atomic.Bool
	logUpdated   chan string
	modelUpdated chan struct{}
}

func NewTUI() *TUI {
	return &TUI{
		done:         atomic.NewBool(false),
		logUpdated:   make(chan string, 100),
		modelUpdated: make(chan struct{}, 1),
	}
}

// Write implements io.Writer so zerolog output lands above the dashboard.
// Lines are dropped rather than blocking the logger when the TUI lags.
func (t *TUI) Write(p []byte) (n int, err error) {
	if t == nil {
		return len(p), nil
	}
	if t.done.Load() {
		fmt.Print(string(p))
		return len(p), nil
	}
	select {
	case t.logUpdated <- string(p):
	default:
	}
	return len(p), nil
}

// UpdateTUI asks the model to re-read the sync status. Repeated calls
// before the model catches up collapse into one.
func (t *TUI) UpdateTUI() {
	if t == nil {
		return
	}
	select {
	case t.modelUpdated <- struct{}{}:
	default:
	}
}

// consoleDeps are the collaborators the dashboard drives.
type consoleDeps struct {
	store    *store.Store
	ctrl     *syncer.Controller
	conn     *client.Connection
	status   *syncStatus
	username string
}

func (t *TUI) RunNewProgram(ctx context.Context, deps consoleDeps) error {
	_, err := tea.NewProgram(
		newModel(ctx, t, deps),
		tea.WithContext(ctx),
	).Run()
	t.done.Store(true)
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type loginStep int

const (
	loginClosed loginStep = iota
	loginUsername
	loginPassword
)

type model struct {
	ctx  context.Context
	tui  *TUI
	deps consoleDeps

	preview *PreviewModel
	spinner spinner.Model
	input   textinput.Model
	login   loginStep
	user    string
	flash   string

	lightPreset int
	tunePreset  int

	width  int
	height int
}

func newModel(ctx context.Context, tui *TUI, deps consoleDeps) model {
	input := textinput.New()
	input.CharLimit = 128

	return model{
		ctx:         ctx,
		tui:         tui,
		deps:        deps,
		preview:     NewPreviewModel(deps.store.Snapshot()),
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(blueTextStyle)),
		input:       input,
		lightPreset: -1,
		tunePreset:  -1,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate, m.waitForLog, m.spinner.Tick)
}

func (m model) waitForUpdate() tea.Msg {
	<-m.tui.modelUpdated
	return tuiUpdateModel{}
}

func (m model) waitForLog() tea.Msg {
	line := <-m.tui.logUpdated
	return tuiUpdateLog{
		log: strings.TrimSpace(line),
	}
}

// tuiUpdateModel is dispatched when the sync status changed.
type tuiUpdateModel struct{}

// tuiUpdateLog carries one log line to print above the view.
type tuiUpdateLog struct {
	log string
}

// actionDone reports the outcome of a blocking action run off the UI loop.
type actionDone struct {
	what string
	err  error
}

type quit struct{}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case quit:
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.preview.SetSize(msg.Width/2, msg.Height-2)
	case tea.KeyMsg:
		if m.login != loginClosed {
			return m.updateLogin(msg)
		}
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		m.preview, _ = m.preview.Update(previewUpdated{cfg: m.deps.store.Snapshot()})
		return m, cmd
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)
		return m, cmd
	case tuiUpdateModel:
		cmds = append(cmds, m.waitForUpdate)
	case tuiUpdateLog:
		cmds = append(cmds, tea.Sequence(tea.Printf("%s", msg.log), m.waitForLog))
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case actionDone:
		if msg.err != nil {
			log.Warn().Err(msg.err).Msgf("%s failed", msg.what)
			m.flash = redTextStyle.Render(msg.what + " failed")
		} else {
			m.flash = greenTextStyle.Render(msg.what + " done")
		}
	}

	return m, tea.Batch(cmds...)
}

// handleKey applies dashboard shortcuts. Blocking actions come back as
// commands so the HTTP round trip runs off the UI loop.
func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	s := m.deps.store
	m.flash = ""

	switch msg.String() {
	case "ctrl+c", "q":
		return m, func() tea.Msg { return quit{} }
	case "e":
		next := map[store.EarSelection]store.EarSelection{
			store.SelectBoth:  store.SelectLeft,
			store.SelectLeft:  store.SelectRight,
			store.SelectRight: store.SelectBoth,
		}
		s.SetEarSelection(next[s.EarSelection()])
	case "b":
		s.SyncToBothEars()
	case "s":
		s.SetServoMode(nextServoMode(m.selectedServo()))
	case "left", "right":
		delta := servoStep
		if msg.String() == "left" {
			delta = -servoStep
		}
		s.SetServoMode(nudgeServo(m.selectedServo(), delta))
	case "l":
		m.lightPreset = (m.lightPreset + 1) % len(schema.LightPresetNames)
		name := schema.LightPresetNames[m.lightPreset]
		mode, _ := schema.LightPreset(name)
		s.SetLightMode(mode)
		m.flash = "Light preset: " + name
	case "o":
		s.SetLightMode(schema.Off{})
	case "a":
		m.tunePreset = (m.tunePreset + 1) % len(schema.ChiptunePresetNames)
		name := schema.ChiptunePresetNames[m.tunePreset]
		tune, _ := schema.ChiptunePreset(name)
		s.SetAudioMode(tune)
		m.flash = "Chiptune: " + name
	case "m":
		s.SetAudioMode(schema.Silent{})
	case "+", "=":
		s.SetBrightness(saturate(int(s.Snapshot().Lights.Brightness) + 15))
	case "-":
		s.SetBrightness(saturate(int(s.Snapshot().Lights.Brightness) - 15))
	case "]":
		s.SetVolume(saturate(int(s.Snapshot().Speakers.Volume) + 16))
	case "[":
		s.SetVolume(saturate(int(s.Snapshot().Speakers.Volume) - 16))
	case "r":
		s.ResetState()
		m.lightPreset, m.tunePreset = -1, -1
	case "ctrl+s":
		ctrl, ctx := m.deps.ctrl, m.ctx
		return m, func() tea.Msg {
			return actionDone{what: "Sync", err: ctrl.SyncNow(ctx)}
		}
	case "L":
		m.login = loginUsername
		m.input.Reset()
		m.input.EchoMode = textinput.EchoNormal
		m.input.Placeholder = "username"
		if m.deps.username != "" {
			m.input.SetValue(m.deps.username)
		}
		return m, m.input.Focus()
	case "O":
		conn, ctrl, ctx := m.deps.conn, m.deps.ctrl, m.ctx
		return m, func() tea.Msg {
			err := conn.Logout(ctx)
			ctrl.LoggedOut()
			return actionDone{what: "Logout", err: err}
		}
	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.login = loginClosed
		m.input.Blur()
		return m, nil
	case "enter":
		value := m.input.Value()
		if m.login == loginUsername {
			if value == "" {
				return m, nil
			}
			m.user = value
			m.login = loginPassword
			m.input.Reset()
			m.input.Placeholder = "password"
			m.input.EchoMode = textinput.EchoPassword
			m.input.EchoCharacter = '•'
			return m, nil
		}

		m.login = loginClosed
		m.input.Blur()
		m.input.Reset()
		conn, ctrl, ctx, user := m.deps.conn, m.deps.ctrl, m.ctx, m.user
		return m, func() tea.Msg {
			if err := conn.Login(ctx, user, value); err != nil {
				return actionDone{what: "Login", err: err}
			}
			return actionDone{what: "Login", err: ctrl.LoggedIn(ctx)}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) selectedServo() schema.ServoMode {
	cfg := m.deps.store.Snapshot()
	if m.deps.store.EarSelection() == store.SelectRight {
		return cfg.Servos.Right
	}
	return cfg.Servos.Left
}

func nextServoMode(current schema.ServoMode) schema.ServoMode {
	switch current.(type) {
	case schema.Static:
		return schema.Sweep{Min: 80, Max: 170, SpeedMs: 1000}
	case schema.Sweep:
		return schema.Twitch{Center: schema.ServoCenter, Amplitude: 20, IntervalMs: 300}
	default:
		return schema.Static{Position: schema.ServoCenter}
	}
}

// nudgeServo moves the mode's main position: Static position, Sweep upper
// bound or Twitch center.
func nudgeServo(current schema.ServoMode, delta int) schema.ServoMode {
	switch v := current.(type) {
	case schema.Static:
		v.Position = saturate(int(v.Position) + delta)
		return v
	case schema.Sweep:
		v.Max = saturate(int(v.Max) + delta)
		return v
	case schema.Twitch:
		v.Center = saturate(int(v.Center) + delta)
		return v
	default:
		return schema.Static{Position: saturate(int(schema.ServoCenter) + delta)}
	}
}

func saturate(v int) uint8 {
	return uint8(max(0, min(255, v)))
}

func describeServo(m schema.ServoMode) string {
	switch v := m.(type) {
	case schema.Static:
		return fmt.Sprintf("Static %d", v.Position)
	case schema.Sweep:
		return fmt.Sprintf("Sweep %d-%d every %dms", v.Min, v.Max, v.SpeedMs)
	case schema.Twitch:
		return fmt.Sprintf("Twitch %d±%d every %dms", v.Center, v.Amplitude, v.IntervalMs)
	default:
		return "?"
	}
}

func swatch(c schema.RGB8) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))).
		Render("●")
}

func describeLight(m schema.LightMode) string {
	switch v := m.(type) {
	case schema.Off:
		return "Off"
	case schema.Solid:
		return "Solid " + swatch(v.Color)
	case schema.Gradient:
		return "Gradient " + swatch(v.From) + swatch(v.To)
	case schema.Chase:
		return fmt.Sprintf("Chase %s x%d", swatch(v.Color), v.Length)
	case schema.Pulse:
		return fmt.Sprintf("Pulse %s %d-%d/%dms", swatch(v.Color), v.MinBrightness, v.MaxBrightness, v.PeriodMs)
	case schema.Rainbow:
		return fmt.Sprintf("Rainbow %dms", v.SpeedMs)
	case schema.Custom:
		var b strings.Builder
		for _, c := range v.LEDs {
			b.WriteString(swatch(c))
		}
		return "Custom " + b.String()
	default:
		return "?"
	}
}

func describeAudio(m schema.AudioMode) string {
	switch v := m.(type) {
	case schema.Silent:
		return "Silent"
	case schema.Tone:
		return fmt.Sprintf("Tone %.0fHz %dms", v.Note.Frequency, v.Note.DurationMs)
	case schema.Chiptune:
		loop := ""
		if v.Looping {
			loop = ", looping"
		}
		return fmt.Sprintf("Chiptune %d notes%s", len(v.Notes), loop)
	default:
		return "?"
	}
}

func (m model) View() string {
	cfg := m.deps.store.Snapshot()
	selection := m.deps.store.EarSelection()
	state, mirror := m.deps.status.Get()

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Cat ears"))
	b.WriteString("  ")
	b.WriteString(dimTextStyle.Render("editing: " + string(selection)))
	b.WriteString("\n\n")

	ear := func(name string, servo schema.ServoMode, light schema.LightMode, selected bool) {
		marker := "  "
		if selected {
			marker = greenTextStyle.Render("▶ ")
		}
		fmt.Fprintf(&b, "%s%s\n    servo: %s\n    light: %s\n", marker, name, describeServo(servo), describeLight(light))
	}
	ear("Left", cfg.Servos.Left, cfg.Lights.Left, selection != store.SelectRight)
	ear("Right", cfg.Servos.Right, cfg.Lights.Right, selection != store.SelectLeft)

	fmt.Fprintf(&b, "\nBrightness %d  Volume %d\n", cfg.Lights.Brightness, cfg.Speakers.Volume)
	fmt.Fprintf(&b, "Audio: %s\n\n", describeAudio(cfg.Speakers.Mode))

	if state.Status == syncer.StatusSyncing {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
	}
	b.WriteString(statusLine(state))
	b.WriteString("\n")
	b.WriteString(dimTextStyle.Render(lastSyncLine(state, time.Now())))
	b.WriteString("\n")
	if user := m.deps.conn.Username(); user != "" {
		b.WriteString(dimTextStyle.Render("Logged in as " + user))
		b.WriteString("\n")
	}
	if mirror != "" {
		b.WriteString(dimTextStyle.Render("Hue: " + mirror))
		b.WriteString("\n")
	}
	if m.flash != "" {
		b.WriteString(m.flash)
		b.WriteString("\n")
	}

	if m.login != loginClosed {
		b.WriteString("\n")
		b.WriteString(warnTextStyle.Render("Login "))
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimTextStyle.Render(strings.Join([]string{
		"e ear  s servo  ←/→ move  l lights  o off  a tune  m mute",
		"+/- brightness  [/] volume  b both ears  r reset",
		"ctrl+s sync  L login  O logout  q quit",
	}, "\n")))

	width := m.width - m.width/2 - 2
	if width < 20 {
		width = 20
	}
	controls := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("86")).
		Padding(1).
		Width(width).
		Render(b.String())

	return lipgloss.JoinHorizontal(lipgloss.Top, controls, m.preview.View())
}
