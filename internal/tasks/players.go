package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/session"
)

// PlaybackSource reads the currently playing item.
type PlaybackSource interface {
	CurrentlyPlaying(ctx context.Context) (models.PlaybackSnapshot, error)
}

// DeviceSource lists Connect devices.
type DeviceSource interface {
	Devices(ctx context.Context) (models.DeviceState, error)
}

// NewPlaybackPoller polls the currently playing track.
func NewPlaybackPoller(src PlaybackSource, interval time.Duration, logger *log.Logger) *Poller[models.PlaybackSnapshot] {
	return NewPoller[models.PlaybackSnapshot]("playback", src.CurrentlyPlaying, PollerOpts{Interval: interval, Logger: logger})
}

// NewDevicePoller polls the device list.
func NewDevicePoller(src DeviceSource, interval time.Duration, logger *log.Logger) *Poller[models.DeviceState] {
	return NewPoller[models.DeviceState]("devices", src.Devices, PollerOpts{Interval: interval, Logger: logger})
}

// Runner is a restartable background task.
type Runner interface {
	Start(ctx context.Context)
	Stop()
	Running() bool
}

// SessionEvents is the part of the session store that gates pollers.
type SessionEvents interface {
	Decision() models.Decision
	Subscribe() (<-chan session.Event, func())
}

// Supervise keeps runners going while the session is authenticated and stops them on logout.
//
// It blocks until ctx is done and stops every runner before returning.
func Supervise(ctx context.Context, store SessionEvents, runners ...Runner) {
	events, cancel := store.Subscribe()
	defer cancel()

	apply := func(d models.Decision) {
		for _, r := range runners {
			switch {
			case d == models.DecisionAuthenticated && !r.Running():
				r.Start(ctx)
			case d != models.DecisionAuthenticated:
				r.Stop()
			}
		}
	}

	apply(store.Decision())
	for {
		select {
		case <-ctx.Done():
			for _, r := range runners {
				r.Stop()
			}
			return
		case ev := <-events:
			apply(ev.Decision)
		}
	}
}
