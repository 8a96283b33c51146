package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/desertthunder/nowplaying/internal/server"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the PKCE login: it serves the redirect URI locally, opens the authorize URL
// and waits for the single callback. An authenticated session is kept unless --force is set.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	app, err := r.boot()
	if err != nil {
		return err
	}

	if !cmd.Bool("force") && app.Store.IsAuthenticated() {
		return r.writePlain("✓ Already logged in as %s (use --force to log in again)\n", r.displayName(ctx, app))
	}

	authURL, _, err := app.Flow.Begin(ctx)
	if err != nil {
		return err
	}

	callback := server.NewCallbackHandler(app.Flow)
	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(callback)

	srv, err := server.Start(r.config.Server.Addr(), router, r.logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("callback server shutdown failed", "error", err)
		}
	}()
	r.logger.Debug("callback server listening", "addr", srv.Addr())

	r.writePlain("Open this URL to log in with Spotify:\n\n  %s\n\n", authURL)
	if !cmd.Bool("no-browser") {
		if err := r.openBrowser(authURL); err != nil {
			r.logger.Warn("could not open browser", "error", err)
		}
	}

	timeout := cmd.Duration("timeout")
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-callback.Result():
		if res.Err != nil {
			return res.Err
		}
	case <-timer.C:
		return fmt.Errorf("%w: no callback received within %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	return r.writePlain("✓ Logged in as %s\n", r.displayName(ctx, app))
}

func (r *Runner) displayName(ctx context.Context, app *App) string {
	user, err := app.Spotify.UserProfile(ctx)
	switch {
	case err != nil:
		r.logger.Warn("logged in but failed to load profile", "error", err)
		return "Spotify user"
	case user.DisplayName != "":
		return user.DisplayName
	default:
		return user.ID
	}
}

// AuthLogout clears the stored session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	app, err := r.boot()
	if err != nil {
		return err
	}

	app.Flow.Logout()
	return r.writePlain("✓ Logged out\n")
}

// AuthReset forgets the session and that a login or logout ever happened.
func (r *Runner) AuthReset(ctx context.Context, cmd *cli.Command) error {
	app, err := r.boot()
	if err != nil {
		return err
	}

	app.Store.Reset()
	return r.writePlain("✓ Session reset\n")
}

// AuthStatus prints the session decision and token expiry. Tokens are never printed.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	app, err := r.boot()
	if err != nil {
		return err
	}

	status := formatter.NewSessionStatus(app.Store.Decision(), app.Store.Get(), app.Backend, time.Now())
	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}
	return r.writePlain("%s", status.Text())
}

// AuthToken prints a fresh access token, refreshing the session first when it is stale.
func (r *Runner) AuthToken(ctx context.Context, cmd *cli.Command) error {
	app, err := r.boot()
	if err != nil {
		return err
	}

	token, err := app.Tokens.Token(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", token)
}
