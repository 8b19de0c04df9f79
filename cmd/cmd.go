// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Action: r.SetupConfig,
			},
		},
	}
}

// serveCommand runs the HTTP server for devices and the status page.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the device bridge HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides server.host and server.port",
			},
		},
		Action: r.Serve,
	}
}

// spotifyCommand handles Spotify account operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify account operations",
		Commands: []*cli.Command{
			{
				Name:  "auth",
				Usage: "Link a Spotify account using OAuth2 and store its credential",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "device",
						Usage: "Device identifier to link to the new credential",
					},
				},
				Action: r.SpotifyAuth,
			},
		},
	}
}

// devicesCommand manages the device directory.
func devicesCommand(r *Runner) *cli.Command {
	deviceFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:     "device",
			Aliases:  []string{"d"},
			Usage:    "Device identifier",
			Required: true,
		}
	}

	return &cli.Command{
		Name:    "devices",
		Aliases: []string{"dev"},
		Usage:   "Device directory operations",
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Register a device, optionally linked to a credential",
				Flags: []cli.Flag{
					deviceFlag(),
					&cli.StringFlag{
						Name:  "credential",
						Usage: "Credential ID to link",
					},
				},
				Action: r.DevicesRegister,
			},
			{
				Name:   "verify",
				Usage:  "Report whether a device is registered and linked",
				Flags:  []cli.Flag{deviceFlag()},
				Action: r.DevicesVerify,
			},
			{
				Name:  "link",
				Usage: "Link a registered device to a credential",
				Flags: []cli.Flag{
					deviceFlag(),
					&cli.StringFlag{
						Name:     "credential",
						Usage:    "Credential ID to link",
						Required: true,
					},
				},
				Action: r.DevicesLink,
			},
			{
				Name:  "list",
				Usage: "List registered devices",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.DevicesList,
			},
		},
	}
}

// credentialsCommand manages stored credentials.
func credentialsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "credentials",
		Aliases: []string{"creds"},
		Usage:   "Stored credential operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stored credentials without their secrets",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CredentialsList,
			},
			{
				Name:  "delete",
				Usage: "Delete a credential; linked devices become unlinked",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Credential ID",
						Required: true,
					},
				},
				Action: r.CredentialsDelete,
			},
		},
	}
}

// nowPlayingCommand fetches playback state the way a device would.
func nowPlayingCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "nowplaying",
		Aliases: []string{"np"},
		Usage:   "Show what is playing for a device",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "device",
				Aliases:  []string{"d"},
				Usage:    "Device identifier",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "art",
				Usage: "Write the transcoded cover art bitmap to this path",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.NowPlaying,
	}
}
