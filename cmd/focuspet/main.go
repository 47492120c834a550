// focuspet runs the focus companion: it watches the camera, scores how
// attentive the user is and drives the pet's mood, serving everything over
// a local HTTP and websocket API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lpernett/godotenv"
	"github.com/teslashibe/go-focuspet/internal/config"
	"github.com/teslashibe/go-focuspet/internal/log"
	"github.com/teslashibe/go-focuspet/pkg/companion"
	"github.com/teslashibe/go-focuspet/pkg/web"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	backend := flag.String("backend", "", "Camera backend: mock, device, remote (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	dump := flag.Bool("dump-config", false, "Print the effective configuration and exit")
	noVision := flag.Bool("no-vision", false, "Do not start vision on launch")
	flag.Parse()

	// A missing .env is normal
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Backend = *backend
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
			os.Exit(1)
		}
	}

	if *dump {
		out, err := cfg.Dump()
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	level := cfg.LogLevel
	if *debug {
		level = "debug"
	}
	log.Init(level)
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, !*noVision); err != nil {
		log.Error("focuspet failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, startVision bool) error {
	logger := log.L()

	opts, cleanup, err := companionOptions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	pet := companion.New(cfg.Companion(), newOpener(cfg, logger), opts...)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pet.Close(closeCtx); err != nil {
			logger.Warnw("shutdown error", "error", err)
		}
	}()

	if startVision {
		if err := pet.StartVision(ctx); err != nil {
			// The API can retry once the camera or model is fixed
			logger.Errorw("failed to start vision", "error", err)
		}
	}

	server := web.NewServer(cfg.Web, pet, previewEncoder(), logger)
	logger.Infow("focuspet ready", "backend", cfg.Backend, "addr", cfg.Web.Addr)

	err = server.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
