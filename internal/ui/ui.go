package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/session"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/desertthunder/nowplaying/internal/tasks"
)

const barWidth = 30

// Controller issues playback commands against a device; an empty id targets the active one.
type Controller interface {
	Play(ctx context.Context, deviceID string) error
	Pause(ctx context.Context, deviceID string) error
	Next(ctx context.Context, deviceID string) error
	Previous(ctx context.Context, deviceID string) error
}

// Feeds are the subscriptions the watch screen renders from. A nil channel is never read.
type Feeds struct {
	Playback <-chan tasks.State[models.PlaybackSnapshot]
	Devices  <-chan tasks.State[models.DeviceState]
	Session  <-chan session.Event
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	player   Controller
	feeds    Feeds
	decision models.Decision
	playback tasks.State[models.PlaybackSnapshot]
	devices  tasks.State[models.DeviceState]
	status   string
	err      error
	busy     bool
	width    int
	spinner  spinner.Model
	help     help.Model
	keys     keyMap
	now      func() time.Time
}

// NewModel creates a watch model starting from the session's current decision.
func NewModel(ctx context.Context, player Controller, feeds Feeds, decision models.Decision) *Model {
	return &Model{
		ctx:      ctx,
		player:   player,
		feeds:    feeds,
		decision: decision,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(styles.bar),
		),
		help: help.New(),
		keys: newKeyMap(),
		now:  time.Now,
	}
}

// Init starts the spinner and begins draining the feeds.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitFor(m.feeds.Playback, playbackMsg),
		waitFor(m.feeds.Devices, devicesMsg),
		waitFor(m.feeds.Session, sessionMsg),
	)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlayback:
		m.playback = msg.data.(tasks.State[models.PlaybackSnapshot])
		return m, waitFor(m.feeds.Playback, playbackMsg)

	case MsgDevices:
		m.devices = msg.data.(tasks.State[models.DeviceState])
		return m, waitFor(m.feeds.Devices, devicesMsg)

	case MsgSession:
		ev := msg.data.(session.Event)
		m.decision = ev.Decision
		if ev.Decision == models.DecisionAuthenticated {
			m.err = nil
		}
		return m, waitFor(m.feeds.Session, sessionMsg)

	case MsgControlDone:
		data := msg.data.(struct {
			action string
			err    error
		})
		m.busy = false
		m.err = data.err
		if data.err == nil {
			m.status = data.action
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if m.busy || m.decision != models.DecisionAuthenticated {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.toggle):
		if m.playback.Value.IsPlaying {
			return m, m.control("paused", m.player.Pause)
		}
		return m, m.control("resumed", m.player.Play)
	case key.Matches(msg, m.keys.next):
		return m, m.control("skipped", m.player.Next)
	case key.Matches(msg, m.keys.previous):
		return m, m.control("went back", m.player.Previous)
	}
	return m, nil
}

// control runs fn against the active device from the latest device state.
func (m *Model) control(action string, fn func(context.Context, string) error) tea.Cmd {
	m.busy = true
	m.status = ""
	device := m.devices.Value.ActiveDeviceID
	ctx := m.ctx
	return func() tea.Msg {
		return controlDoneMsg(action, fn(ctx, device))
	}
}

// waitFor blocks for one value from ch and wraps it. Update re-arms it after each message.
func waitFor[T any](ch <-chan T, wrap func(T) Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return closedMsg()
		}
		return wrap(v)
	}
}

// View renders the current track, device and status lines.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("♪ Now Playing"))
	b.WriteString("\n\n")

	switch {
	case m.decision != models.DecisionAuthenticated:
		b.WriteString(styles.warn.Render("Not logged in. Run `nowplaying auth login` in another terminal."))
	case m.playback.Seq == 0:
		b.WriteString(m.spinner.View() + " Waiting for Spotify...")
	default:
		b.WriteString(m.renderTrack())
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderDevice())
	b.WriteString("\n")

	if line := m.renderStatus(); line != "" {
		b.WriteString("\n" + line + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return styles.frame.Render(b.String())
}

func (m *Model) renderTrack() string {
	snap := m.playback.Value
	if snap.Track == nil {
		return styles.help.Render("Nothing is playing")
	}

	icon := "⏸"
	if snap.IsPlaying {
		icon = "▶"
	}

	pos := m.position()
	lines := []string{
		fmt.Sprintf("%s %s", icon, styles.ok.Render(snap.Track.Name)),
		formatter.Artists(snap.Track),
	}
	if snap.Track.Album != "" {
		lines = append(lines, styles.help.Render(snap.Track.Album))
	}
	lines = append(lines, "", fmt.Sprintf("%s %s / %s",
		styles.bar.Render(progressBar(pos, snap.Track.DurationMS, barWidth)),
		formatter.FormatDuration(pos),
		formatter.FormatDuration(snap.Track.DurationMS),
	))
	return strings.Join(lines, "\n")
}

// position estimates the playback position from the last snapshot and the time since it was fetched.
func (m *Model) position() int {
	snap := m.playback.Value
	if snap.Track == nil {
		return 0
	}
	pos := snap.ProgressMS
	if snap.IsPlaying && !snap.FetchedAt.IsZero() {
		pos += int(m.now().Sub(snap.FetchedAt).Milliseconds())
	}
	return max(0, min(pos, snap.Track.DurationMS))
}

func (m *Model) renderDevice() string {
	if m.devices.Seq == 0 {
		return styles.help.Render("Device: -")
	}
	if dev, ok := m.devices.Value.Active(); ok {
		return fmt.Sprintf("Device: %s (%s, %d%%)", dev.Name, dev.Type, dev.VolumePercent)
	}
	return styles.help.Render("Device: none active")
}

func (m *Model) renderStatus() string {
	switch {
	case m.busy:
		return m.spinner.View()
	case m.err != nil:
		return styles.err.Render(describe(m.err))
	case m.playback.Err != nil:
		return styles.warn.Render(describe(m.playback.Err))
	case m.status != "":
		return styles.ok.Render("✓ " + m.status)
	}
	return ""
}

func describe(err error) string {
	switch {
	case errors.Is(err, shared.ErrNoActiveDevice):
		return "No active device: start playback in a Spotify app first"
	case errors.Is(err, shared.ErrRateLimited):
		return "Rate limited by Spotify, backing off"
	case services.IsAuthError(err):
		return "Session expired: run `nowplaying auth login`"
	}
	return fmt.Sprintf("Error: %v", err)
}

func progressBar(pos, total, width int) string {
	filled := 0
	if total > 0 {
		filled = pos * width / total
	}
	filled = max(0, min(filled, width))
	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}
