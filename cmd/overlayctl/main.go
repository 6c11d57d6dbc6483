// Command overlayctl drives the screen overlay from the shell.
//
// Usage:
//
//	overlayctl [flags] init|fade-in|fade-out|cycle|backends
//
// Every command opens a session, runs, optionally writes a PNG snapshot of
// the software compositor and frees the session again.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gogpu/overlay"
	"github.com/gogpu/overlay/compositor"
	_ "github.com/gogpu/overlay/compositor/dispmanx"
	"github.com/gogpu/overlay/compositor/software"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file")
		backend    = flag.String("backend", "", "compositor backend (empty = best available)")
		imagePath  = flag.String("image", "", "vignette image (overrides config)")
		width      = flag.Int("width", 0, "software display width")
		height     = flag.Int("height", 0, "software display height")
		duration   = flag.Duration("duration", 0, "ramp duration (overrides config)")
		step       = flag.Int("step", 0, "ramp step 1..255 (overrides config)")
		hold       = flag.Duration("hold", 0, "how long to keep the overlay up before freeing it")
		cycles     = flag.Int("cycles", 1, "fade-in/fade-out pairs for the cycle command")
		snapshot   = flag.String("snapshot", "", "write a PNG of the software compositor before freeing")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	overlay.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cmd := flag.Arg(0)
	if cmd == "" {
		flag.Usage()
		os.Exit(2)
	}
	if cmd == "backends" {
		listBackends()
		return
	}

	cfg := overlay.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = overlay.LoadConfig(*configPath); err != nil {
			log.Fatalf("overlayctl: %v", err)
		}
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *imagePath != "" {
		cfg.Vignette = *imagePath
	}
	if *width > 0 && *height > 0 {
		cfg.Width, cfg.Height = *width, *height
	}
	if *duration > 0 {
		cfg.Fade.Duration = *duration
	}
	if *step > 0 {
		cfg.Fade.Step = *step
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, cmd, cfg, *cycles, *hold, *snapshot)
	stop()
	if code := overlay.Code(err); code != overlay.CodeOK {
		log.Printf("overlayctl: %s: %v", code, err)
		os.Exit(int(code))
	}
}

func run(ctx context.Context, cmd string, cfg overlay.Config, cycles int, hold time.Duration, snapshot string) (err error) {
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	s, err := overlay.Init(ctx, cfg.Vignette, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Free())
	}()

	switch cmd {
	case "init":
	case "fade-in":
		err = s.FadeInDefault(ctx)
	case "fade-out":
		if err = s.SetFadeOpacity(ctx, overlay.Transparent); err == nil {
			err = s.FadeOutDefault(ctx)
		}
	case "cycle":
		for i := 0; i < cycles && err == nil; i++ {
			if err = s.FadeInDefault(ctx); err == nil {
				err = s.FadeOutDefault(ctx)
			}
		}
	default:
		return fmt.Errorf("%w: unknown command %q", overlay.ErrInvalidArgument, cmd)
	}
	if err != nil {
		return err
	}

	if hold > 0 {
		if err := overlay.SystemClock().Sleep(ctx, hold); err != nil {
			return err
		}
	}
	if snapshot != "" {
		return writeSnapshot(s, snapshot)
	}
	return nil
}

func writeSnapshot(s *overlay.Session, path string) error {
	sw, ok := s.Compositor().(*software.Compositor)
	if !ok {
		return fmt.Errorf("overlayctl: snapshots need the software backend, have %T", s.Compositor())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, sw.Snapshot()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("overlayctl: snapshot saved to %s (opacity %d)", path, s.Opacity())
	return nil
}

func listBackends() {
	available := make(map[string]bool)
	for _, name := range compositor.Available() {
		available[name] = true
	}
	for _, name := range compositor.List() {
		state := "unavailable"
		if available[name] {
			state = "available"
		}
		fmt.Printf("%-10s %s\n", name, state)
	}
}
