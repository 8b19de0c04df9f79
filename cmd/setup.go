package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotibridge/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	st, err := r.openStore()
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer st.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("%s Database ready at %s\n", styles.Ok("✓"), r.config.Database.Path)
}

// SetupConfig writes the embedded example config to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("%s Config written to %s\n", styles.Ok("✓"), path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret (or SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET)\n")
	r.writePlain("2. Set session.secret (or SESSION_SECRET) to at least 16 random characters\n")
	return r.writePlain("3. Run 'spotibridge setup database' then 'spotibridge serve'\n")
}
