// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// command builds the root command.
func (r *Runner) command() *cli.Command {
	return &cli.Command{
		Name:    "nowplaying",
		Usage:   "Spotify now-playing client with PKCE login",
		Version: "0.1.0",
		Writer:  r.output,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("NOWPLAYING_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playerCommand, meCommand, apiCommand, watchCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config.toml to the --config path",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles the Spotify session
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in with Spotify using Authorization Code with PKCE",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: 2 * time.Minute,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorize URL without opening a browser",
					},
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Log in again even when the current session is valid",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Clear the stored session",
				Action: r.AuthLogout,
			},
			{
				Name:   "reset",
				Usage:  "Delete the stored session record as if no login ever happened",
				Action: r.AuthReset,
			},
			{
				Name:  "status",
				Usage: "Show the session decision and token expiry",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "token",
				Usage:  "Print a fresh access token, refreshing it if needed",
				Action: r.AuthToken,
			},
		},
	}
}

// playerCommand handles playback state and control
func playerCommand(r *Runner) *cli.Command {
	control := func(name, usage string) *cli.Command {
		return &cli.Command{
			Name:  name,
			Usage: usage,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "device",
					Aliases: []string{"d"},
					Usage:   "Target device ID (default: the active device)",
				},
			},
			Action: r.PlayerControl,
		}
	}

	return &cli.Command{
		Name:    "player",
		Aliases: []string{"p"},
		Usage:   "Playback state and controls",
		Commands: []*cli.Command{
			{
				Name:  "now",
				Usage: "Show the currently playing track",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
				},
				Action: r.PlayerNow,
			},
			{
				Name:  "devices",
				Usage: "List Spotify Connect devices",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
					&cli.BoolFlag{Name: "csv", Usage: "Output CSV"},
				},
				Action: r.PlayerDevices,
			},
			control("play", "Resume playback"),
			control("pause", "Pause playback"),
			control("next", "Skip to the next track"),
			control("previous", "Skip to the previous track"),
		},
	}
}

// meCommand shows the logged in user
func meCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "me",
		Usage: "Show the logged in Spotify user",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
		},
		Action: r.Me,
	}
}

// apiCommand handles direct authenticated Web API calls
func apiCommand(r *Runner) *cli.Command {
	pathArg := func() []cli.Argument { return []cli.Argument{&cli.StringArg{Name: "path"}} }
	flags := func(withData bool) []cli.Flag {
		f := []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Query parameter as key=value (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		}
		if withData {
			f = append(f, &cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "JSON body to send",
			})
		}
		return f
	}

	return &cli.Command{
		Name:  "api",
		Usage: "Direct authenticated calls to the Spotify Web API",
		Commands: []*cli.Command{
			{Name: "get", Usage: "GET a path, prints raw JSON", Arguments: pathArg(), Flags: flags(false), Action: r.APICall},
			{Name: "put", Usage: "PUT a path with an optional JSON body", Arguments: pathArg(), Flags: flags(true), Action: r.APICall},
			{Name: "post", Usage: "POST a path with an optional JSON body", Arguments: pathArg(), Flags: flags(true), Action: r.APICall},
			{Name: "delete", Usage: "DELETE a path", Arguments: pathArg(), Flags: flags(true), Action: r.APICall},
		},
	}
}

// watchCommand launches the live TUI
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Live now-playing view with playback controls",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the view is open",
				Value: "./tmp/nowplaying-watch.log",
			},
		},
		Action: r.Watch,
	}
}
