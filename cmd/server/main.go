// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/pano360/internal/api/connect"
	"github.com/osa030/pano360/internal/app/notification"
	"github.com/osa030/pano360/internal/app/playback"
	"github.com/osa030/pano360/internal/app/scheduler"
	"github.com/osa030/pano360/internal/app/transition"
	"github.com/osa030/pano360/internal/domain/playlist"
	"github.com/osa030/pano360/internal/infra/config"
	"github.com/osa030/pano360/internal/infra/logger"
	"github.com/osa030/pano360/internal/infra/sim"
	"github.com/osa030/pano360/internal/infra/watch"
)

var (
	app        = kingpin.New("pano360-server", "pano360 panoramic clip sequencer")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	exitOnEnd  = app.Flag("exit-on-end", "Shut down when the run started by play_on_start ends").Bool()

	// list-transitions command
	listTransitionsCmd = app.Command("list-transitions", "List available transition kinds and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listTransitionsCmd.FullCommand() {
		printTransitions()
		return
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		closer.Close()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seq, sched, err := buildSequencer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create sequencer: %w", err)
	}
	defer seq.Close()

	// Broadcast playback events to watch streams
	notifyMgr := notification.NewManager()
	defer notifyMgr.Close()
	go notifyMgr.Pump(ctx, seq.Events())

	go sched.Run(ctx)

	if cfg.Playlist.Watch {
		watcher, err := watch.New(*configPath, seq, loadPlaylist)
		if err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				zlog.Error().Err(err).Msg("Config watcher stopped")
			}
		}()
	}

	// Create RPC service
	controlService := apiconnect.NewControlService(seq, notifyMgr, ctx.Done())
	controlPath, controlHandler := controlService.Handler(apiconnect.NewAdminAuthInterceptor(cfg.Admin.Token))

	// Create HTTP mux
	mux := http.NewServeMux()
	mux.Handle(controlPath, controlHandler)

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	// Channel to capture server startup errors
	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	// Start server
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Wait for server to start listening
	<-serverStartedCh
	time.Sleep(100 * time.Millisecond)

	// Execute startup hook if configured (after server is running)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	runEndedCh := make(chan error, 1)
	if cfg.Playback.PlayOnStart {
		if err := seq.Start(cfg.Playback.StartIndex, cfg.Playback.EndIndex); err != nil {
			zlog.Error().Msgf("Failed to start playback: %v", err)
		} else if *exitOnEnd {
			go func() { runEndedCh <- seq.Wait(ctx) }()
		}
	}

	// Wait for shutdown signal, run end, or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
		stopPlayback(seq)
	case err := <-runEndedCh:
		zlog.Info().Msgf("Run ended, shutting down: err=%v", err)
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop the scheduler and end watch streams before draining connections
	seq.Close()
	cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	// Execute shutdown hook if configured
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// buildSequencer wires the simulated collaborators, the transition
// coordinator and the sequencer onto one scheduler. Decoders step before the
// coordinator, which steps before the sequencer.
func buildSequencer(cfg *config.Config) (*playback.Sequencer, *scheduler.Scheduler, error) {
	decoderConfig := sim.DecoderConfig{
		Latency:       cfg.Simulation.PrepareLatency(),
		SourceLatency: cfg.Simulation.SourceLatency(),
		FailSources:   cfg.Simulation.FailSources,
	}
	d0 := sim.NewDecoder("slot0", decoderConfig)
	d1 := sim.NewDecoder("slot1", decoderConfig)

	surfaces := sim.NewSurfaceAllocator(sim.SurfaceConfig{
		AntiAliasing: cfg.Display.AntiAliasing,
		Layout3D:     cfg.Display.Layout3D,
		Rotation:     cfg.Display.Rotation,
		FailSources:  cfg.Simulation.FailSources,
	})
	objects := lo.Map(cfg.Display.Objects, func(o config.SceneObjectConfig, _ int) sim.SceneObject {
		return sim.SceneObject{Name: o.Name, Tags: o.Tags}
	})
	mask := sim.NewVisibilityMask(sim.MaskConfig{
		Enabled:       cfg.Display.HideScene,
		Blacklist:     cfg.Display.Blacklist,
		BlacklistTags: cfg.Display.BlacklistTags,
	}, objects)

	coord := transition.NewCoordinator()
	seq, err := playback.New(playback.Config{
		Loop:        cfg.Playback.Loop,
		EventBuffer: cfg.Playback.EventBuffer,
		Scene:       cfg.Scene.EndScene,
	}, playback.Deps{
		Decoders:    [2]playback.Decoder{d0, d1},
		Surfaces:    surfaces,
		Coordinator: coord,
		Mask:        mask,
		Scenes:      sim.NewScenePreloader(),
	}, cfg.Playlist.Build())
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(cfg.Playback.FrameRate)
	sched.Add(d0, d1, coord, seq)
	return seq, sched, nil
}

// loadPlaylist reloads the playlist from the config file.
func loadPlaylist(path string) (*playlist.Playlist, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg.Playlist.Build(), nil
}

// stopPlayback ends the active run through its transition, bounded by a
// timeout.
func stopPlayback(seq *playback.Sequencer) {
	if err := seq.Stop(); err != nil {
		if !playback.IsConcurrency(err) {
			zlog.Error().Msgf("Failed to stop playback: %v", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := seq.Wait(ctx); err != nil {
		zlog.Warn().Msgf("Run did not end cleanly: %v", err)
	}
}

// printTransitions prints available transition kinds.
func printTransitions() {
	printTransitionsTo(os.Stdout)
}

func printTransitionsTo(w io.Writer) {
	fmt.Fprintln(w, "Available Transitions:")
	for _, name := range transition.Registered() {
		kind, err := transition.Lookup(name)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "  %-12s - %s\n", kind.Name(), kind.Description())
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
