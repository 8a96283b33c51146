package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/session"
	"github.com/desertthunder/nowplaying/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlayback MsgKind = iota
	MsgDevices
	MsgSession
	MsgControlDone
	MsgClosed
)

// playbackMsg is the constructor for [MsgPlayback]
func playbackMsg(s tasks.State[models.PlaybackSnapshot]) Msg {
	return Msg{kind: MsgPlayback, data: s}
}

// devicesMsg is the constructor for [MsgDevices]
func devicesMsg(s tasks.State[models.DeviceState]) Msg {
	return Msg{kind: MsgDevices, data: s}
}

// sessionMsg is the constructor for [MsgSession]
func sessionMsg(ev session.Event) Msg {
	return Msg{kind: MsgSession, data: ev}
}

// controlDoneMsg is the constructor for [MsgControlDone]
func controlDoneMsg(action string, err error) Msg {
	return Msg{
		kind: MsgControlDone,
		data: struct {
			action string
			err    error
		}{action, err},
	}
}

// closedMsg is the constructor for [MsgClosed], sent when a feed channel is closed.
func closedMsg() Msg {
	return Msg{kind: MsgClosed}
}
