package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/urfave/cli/v3"
)

// PlayerNow prints the currently playing track.
func (r *Runner) PlayerNow(ctx context.Context, cmd *cli.Command) error {
	app, err := r.boot()
	if err != nil {
		return err
	}

	snap, err := app.Spotify.CurrentlyPlaying(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(snap, true)
	}
	return r.writePlain("%s", formatter.NowPlayingText(snap))
}

// PlayerDevices lists the Connect devices.
func (r *Runner) PlayerDevices(ctx context.Context, cmd *cli.Command) error {
	app, err := r.boot()
	if err != nil {
		return err
	}

	state, err := app.Spotify.Devices(ctx)
	if err != nil {
		return err
	}

	switch {
	case cmd.Bool("json"):
		return r.writeJSON(state, true)
	case cmd.Bool("csv"):
		data, err := formatter.DevicesCSV(state)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	default:
		return r.writePlain("%s", formatter.DevicesText(state))
	}
}

// PlayerControl sends play, pause, next or previous, named by the subcommand.
//
// Without --device the active device from a fresh device read is targeted.
func (r *Runner) PlayerControl(ctx context.Context, cmd *cli.Command) error {
	app, err := r.boot()
	if err != nil {
		return err
	}

	controls := map[string]func(context.Context, string) error{
		"play":     app.Spotify.Play,
		"pause":    app.Spotify.Pause,
		"next":     app.Spotify.Next,
		"previous": app.Spotify.Previous,
	}
	fn, ok := controls[cmd.Name]
	if !ok {
		return fmt.Errorf("unknown player command %q", cmd.Name)
	}

	device := cmd.String("device")
	if device == "" {
		state, err := app.Spotify.Devices(ctx)
		if err != nil {
			return err
		}
		device = state.ActiveDeviceID
	}

	r.logger.Debug("player control", "command", cmd.Name, "device", device)
	if err := fn(ctx, device); err != nil {
		return err
	}
	return r.writePlain("✓ %s\n", cmd.Name)
}

// Me prints the logged in user's profile.
func (r *Runner) Me(ctx context.Context, cmd *cli.Command) error {
	app, err := r.boot()
	if err != nil {
		return err
	}

	user, err := app.Spotify.UserProfile(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(user, true)
	}
	r.writePlain("Name: %s\n", user.DisplayName)
	r.writePlain("ID: %s\n", user.ID)
	if user.Email != "" {
		r.writePlain("Email: %s\n", user.Email)
	}
	if user.Product != "" {
		r.writePlain("Product: %s\n", user.Product)
	}
	return nil
}
