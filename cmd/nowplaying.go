package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/spotibridge/internal/models"
	"github.com/desertthunder/spotibridge/internal/nowplaying"
	"github.com/desertthunder/spotibridge/internal/shared"
	"github.com/urfave/cli/v3"
)

// NowPlaying runs the device lookup locally and prints the result. With --art the bitmap is written to disk.
func (r *Runner) NowPlaying(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := r.buildPipeline(st, nil)
	if err != nil {
		return err
	}

	artPath := cmd.String("art")
	np, err := p.nowPlaying.ForDevice(ctx, cmd.String("device"), nowplaying.Options{Art: artPath != ""})
	if err != nil {
		return err
	}

	if np.Art != nil {
		if err := os.WriteFile(artPath, np.Art.Bytes, 0644); err != nil {
			return fmt.Errorf("failed to write art: %w", err)
		}
		r.logger.Info("cover art written", "path", artPath, "bytes", len(np.Art.Bytes))
	}

	if cmd.Bool("json") {
		return r.writeJSON(np, true)
	}
	return r.printNowPlaying(np, artPath)
}

func (r *Runner) printNowPlaying(np *models.NowPlaying, artPath string) error {
	if np.Track == nil {
		return r.writePlain("%s\n", styles.Help("Nothing playing"))
	}

	t := np.Track
	state := styles.Ok("▶ Playing")
	if !np.IsPlaying {
		state = styles.Warn("⏸ Paused")
	}

	r.writePlain("%s\n", state)
	r.writePlain("%s\n", styles.Title(t.Name))
	r.writePlain("   Artists: %s\n", shared.JoinArtists(t.Artists))
	if t.Album != "" {
		r.writePlain("   Album: %s\n", t.Album)
	}
	r.writePlain("   Progress: %s / %s\n", clock(t.ProgressMs), clock(t.DurationMs))

	switch {
	case np.Art != nil:
		r.writePlain("   Art: %dx%d %s written to %s\n", np.Art.Width, np.Art.Height, np.Art.PixelFormat, artPath)
	case np.ArtStatus == models.ArtFailed:
		r.writePlain("   Art: %s\n", styles.Err("could not be converted"))
	case np.ArtStatus == models.ArtUnavailable:
		r.writePlain("   Art: %s\n", styles.Help("unavailable"))
	}
	return nil
}

// clock formats milliseconds as m:ss.
func clock(ms int) string {
	d := (time.Duration(ms) * time.Millisecond).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
