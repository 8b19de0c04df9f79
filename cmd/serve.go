package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/spotibridge/internal/metrics"
	"github.com/desertthunder/spotibridge/internal/server"
	"github.com/desertthunder/spotibridge/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve validates the config, wires the bridge and serves HTTP until the process is signalled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()
	p, err := r.buildPipeline(st, m)
	if err != nil {
		return err
	}

	sessions, err := server.NewSessionManager(r.config.Session)
	if err != nil {
		return err
	}

	handler := server.NewApp(server.Deps{
		Config:      r.config,
		Devices:     p.directory,
		NowPlaying:  p.nowPlaying,
		Credentials: st.creds,
		Authorizer:  p.spotify,
		Sessions:    sessions,
		Metrics:     m,
		Logger:      shared.WithLogger(r.logger, "component", "http"),
	})

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Art requests wait on a refresh, a playback lookup and an image download.
		WriteTimeout: 3*r.config.Upstream.Timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := server.Serve(ctx, srv, r.logger); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
