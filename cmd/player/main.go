package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/jscyril/crossfade_player/api"
	"github.com/jscyril/crossfade_player/internal/audio"
	"github.com/jscyril/crossfade_player/internal/config"
	"github.com/jscyril/crossfade_player/internal/library"
	"github.com/jscyril/crossfade_player/internal/playback"
	"github.com/jscyril/crossfade_player/internal/playlist"
	"github.com/jscyril/crossfade_player/internal/server"
	"github.com/jscyril/crossfade_player/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	configPath := flag.StringP("config", "c", config.GetConfigPath(), "Path to the configuration file")
	logLevel := flag.String("log-level", "", "Log level, overrides the configuration")
	httpAddress := flag.String("http", "", "Address to serve the control API on, overrides the configuration")
	volume := flag.Float64("volume", 1.0, "Initial volume between 0 and 1")
	crossfade := flag.Duration("crossfade", 0, "Crossfade length, overrides the configuration")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <files or directories...>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadOrCreate(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *httpAddress != "" {
		cfg.HTTPAddress = *httpAddress
	}
	if flag.CommandLine.Changed("volume") {
		cfg.DefaultVolume = *volume
	}
	if *crossfade > 0 {
		cfg.Crossfade = *crossfade
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, err := range errs {
			log.Error(err)
		}
		return fmt.Errorf("invalid configuration in %s", *configPath)
	}
	log.SetLevel(cfg.Level())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	device := audio.NewDevice(cfg.Output.SampleRate, cfg.Output.Buffer)
	if err := device.Open(); err != nil {
		return fmt.Errorf("open audio device: %w", err)
	}
	defer device.Close()

	t := transport.New(transport.Config{
		Crossfade: cfg.Crossfade,
		FadeTick:  cfg.FadeTick,
		Volume:    cfg.DefaultVolume,
	}, audio.NewFactory(device), device)
	// Not tied to ctx: Close still needs the fade loop running.
	t.Open(context.Background())
	defer t.Close()

	paths := flag.Args()
	if len(paths) == 0 {
		paths = cfg.MusicDirectories
	}
	lib := library.NewLibrary()
	for _, err := range lib.Scan(ctx, paths) {
		log.Warn(err)
	}

	queue := playlist.NewQueue()
	for _, track := range lib.GetAllTracks() {
		track := track
		queue.Add(&track)
	}
	fmt.Printf("Queued %d tracks\n", queue.Len())

	service := playback.NewService(t, queue)
	go service.Run(ctx)

	if cfg.HTTPAddress != "" {
		go func() {
			if err := server.Serve(ctx, cfg.HTTPAddress, service); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("control API: %v", err)
			}
		}()
	}

	if queue.Len() > 0 {
		if err := service.Play(0); err != nil {
			log.Warnf("play: %v", err)
		}
	}

	return prompt(ctx, service)
}

// statusLine renders a one-line summary of the player.
func statusLine(s api.Status) string {
	title := "-"
	if s.Track != nil {
		title = s.Track.Title
		if s.Track.Artist != "" {
			title = s.Track.Artist + " - " + title
		}
	}
	muted := ""
	if s.Muted {
		muted = " (muted)"
	}
	return fmt.Sprintf("[%s] %d/%d %s %s/%s vol %.0f%%%s repeat %s shuffle %v",
		s.State, s.Index+1, s.QueueLength, title,
		formatSeconds(s.Position), formatSeconds(s.Duration),
		s.Volume*100, muted, s.Repeat, s.Shuffle)
}

func formatSeconds(sec float64) string {
	if sec < 0 {
		return "--:--"
	}
	total := int(sec)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
