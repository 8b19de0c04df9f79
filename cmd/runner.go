package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotibridge/internal/directory"
	"github.com/desertthunder/spotibridge/internal/metrics"
	"github.com/desertthunder/spotibridge/internal/nowplaying"
	"github.com/desertthunder/spotibridge/internal/repositories"
	"github.com/desertthunder/spotibridge/internal/services"
	"github.com/desertthunder/spotibridge/internal/shared"
	"github.com/desertthunder/spotibridge/internal/tokens"
	"github.com/desertthunder/spotibridge/internal/transcoder"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	openBrowser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	OpenBrowser func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		openBrowser: opts.OpenBrowser,
	}
}

// Before loads the config file named by --config when it exists and applies the log level.
//
// A missing file keeps the current config so `setup config` can create it.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			config, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return ctx, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
			r.config.ApplyEnv()
		}
	}

	level := r.config.Log.Level
	if override := cmd.String("log-level"); override != "" {
		level = override
	}
	return ctx, shared.SetLogLevel(r.logger, level)
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, spotifyCommand, devicesCommand, credentialsCommand, nowPlayingCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// store bundles the repositories opened for one command.
type store struct {
	db      *sql.DB
	creds   *repositories.CredentialRepository
	devices *repositories.DeviceRepository
}

func (s *store) Close() error {
	return s.db.Close()
}

// openStore opens the configured database and applies pending migrations.
func (r *Runner) openStore() (*store, error) {
	cfg := r.config.Database

	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &store{
		db:      db,
		creds:   repositories.NewCredentialRepository(db),
		devices: repositories.NewDeviceRepository(db),
	}, nil
}

func (r *Runner) spotifyService(m *metrics.Metrics) (*services.SpotifyService, error) {
	svc, err := services.NewSpotifyService(r.config.Credentials.Spotify, r.config.Upstream)
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	if r.httpClient != nil {
		svc.WithHTTPClient(r.httpClient)
	}
	return svc.WithMetrics(m), nil
}

// pipeline wires the token manager, transcoder and now playing service over st.
type pipeline struct {
	spotify    *services.SpotifyService
	directory  *directory.Directory
	nowPlaying *nowplaying.Service
}

func (r *Runner) buildPipeline(st *store, m *metrics.Metrics) (*pipeline, error) {
	spotify, err := r.spotifyService(m)
	if err != nil {
		return nil, err
	}

	display := r.config.Display
	dir := directory.New(st.devices, shared.WithLogger(r.logger, "component", "directory"))
	manager := tokens.NewManager(st.creds, spotify, shared.WithLogger(r.logger, "component", "tokens"),
		tokens.WithTimeout(r.config.Upstream.Timeout),
		tokens.WithMetrics(m),
	)

	return &pipeline{
		spotify:   spotify,
		directory: dir,
		nowPlaying: nowplaying.New(nowplaying.Deps{
			Resolver:   dir,
			Creds:      st.creds,
			Tokens:     manager,
			Playback:   spotify,
			Transcoder: transcoder.New(display.Width, display.Height, m),
			ArtWidth:   display.ArtWidth,
			Logger:     shared.WithLogger(r.logger, "component", "nowplaying"),
		}),
	}, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
