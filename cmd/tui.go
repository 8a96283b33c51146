package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/desertthunder/nowplaying/internal/tasks"
	"github.com/desertthunder/nowplaying/internal/ui"
	"github.com/urfave/cli/v3"
)

// Watch launches the live now-playing view.
//
// The playback and device pollers run only while the session is authenticated; the view
// renders from their subscriptions and from session events.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	app, err := r.boot()
	if err != nil {
		return err
	}

	logger := shared.WithLogger(r.logger, "command", "watch")
	playback := tasks.NewPlaybackPoller(app.Spotify, r.config.Poller.PlaybackInterval(), logger)
	devices := tasks.NewDevicePoller(app.Spotify, r.config.Poller.DeviceInterval(), logger)

	playbackStates, cancelPlayback := playback.Subscribe()
	defer cancelPlayback()
	deviceStates, cancelDevices := devices.Subscribe()
	defer cancelDevices()
	events, cancelEvents := app.Store.Subscribe()
	defer cancelEvents()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		tasks.Supervise(ctx, app.Store, playback, devices)
	}()
	defer func() {
		cancel()
		<-done
	}()

	model := ui.NewModel(ctx, app.Spotify, ui.Feeds{
		Playback: playbackStates,
		Devices:  deviceStates,
		Session:  events,
	}, app.Store.Decision())

	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
