// Package ui implements the watch screen, a live now-playing view built on bubbletea's Elm architecture.
//
// The [Model] never calls the API to read state. It is fed by three channels:
//   - playback states from the playback poller
//   - device states from the device poller
//   - session events from the session store, so a logout is shown as soon as it happens
//
// Each channel is drained by a command that blocks for one value and returns it as a [Msg];
// Update re-arms the command after handling it.
//
// Player controls (space, n, p) call the Spotify service directly and target the active device
// from the latest device state. Contextual help is displayed via charmbracelet/bubbles/help.
package ui
