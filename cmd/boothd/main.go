// SPDX-License-Identifier: MIT

// Command boothd runs the photobooth controller daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/boothworks/boothd/internal/api"
	"github.com/boothworks/boothd/internal/booth"
	"github.com/boothworks/boothd/internal/camera"
	"github.com/boothworks/boothd/internal/config"
	"github.com/boothworks/boothd/internal/daemon"
	"github.com/boothworks/boothd/internal/health"
	"github.com/boothworks/boothd/internal/log"
	"github.com/boothworks/boothd/internal/printer"
	"github.com/boothworks/boothd/internal/store"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, strings.TrimSpace(*configPath)); err != nil {
		logger := log.WithComponent("daemon")
		logger.Error().Err(err).Msg("daemon exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	loader := config.NewLoader(configPath, version)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: version,
	})
	logger := log.WithComponent("daemon")

	// An invalid configuration does not stop the daemon. It comes up,
	// reports the problem through /health, and rejects session starts
	// until an operator fixes the config.
	configErr := cfg.Validate()
	if configErr != nil {
		logger.Error().Err(configErr).Msg("configuration invalid, session starts disabled")
	}
	if cfg.DataDir == "" {
		cfg.DataDir = config.Defaults().DataDir
	}

	st, err := store.New(cfg.DataDir)
	if err != nil {
		return err
	}

	ledger, err := store.OpenLedger(filepath.Join(cfg.DataDir, "sessions.db"))
	if err != nil {
		logger.Warn().Err(err).Msg("album ledger unavailable, continuing without it")
		ledger = nil
	}

	var (
		cam     camera.Gateway
		spooler printer.Spooler
		cups    *printer.CUPS
	)
	if cfg.FakeHardware {
		logger.Warn().Msg("fake hardware enabled, captures and prints are simulated")
		cam = &camera.Fake{}
		spooler = &printer.Fake{}
	} else {
		cam = camera.NewGPhoto2(cfg.GPhoto2Bin, cfg.CaptureTimeout, cfg.ProbeTimeout)
		cups = printer.NewCUPS(cfg.PrinterQueue, cfg.LPBin, cfg.LPStatBin)
		spooler = cups
	}

	registry := health.NewRegistry()

	opts := []booth.Option{}
	if configErr != nil {
		opts = append(opts, booth.WithConfigError(configErr))
	}
	controller := booth.New(booth.Deps{
		Camera:  cam,
		Printer: spooler,
		Store:   st,
		Ledger:  ledger,
		Health:  registry,
	}, boothSettings(cfg), opts...)

	monitor := health.NewMonitor(registry, cam, spooler, controller, cfg.HealthInterval)
	go monitor.Run(ctx)

	holder := config.NewHolder(cfg, loader)
	holder.Subscribe(func(next config.AppConfig) {
		controller.UpdateSettings(boothSettings(next))
		if cups != nil {
			cups.SetQueue(next.PrinterQueue)
		}
		// The holder only publishes snapshots that passed validation, so a
		// successful reload re-enables session starts.
		controller.SetConfigError(nil)
	})
	if configPath != "" {
		go func() {
			if err := holder.Watch(ctx, configPath); err != nil {
				logger.Warn().Err(err).Msg("config watcher stopped")
			}
		}()
	}

	server := api.New(controller, registry, st, api.WithCommandRate(cfg.CommandRatePerMinute))

	mgr, err := daemon.NewManager(cfg, server.Handler(), promhttp.Handler())
	if err != nil {
		return err
	}
	mgr.RegisterShutdownHook("controller", func(context.Context) error {
		controller.Close()
		return nil
	})
	if ledger != nil {
		mgr.RegisterShutdownHook("ledger", func(context.Context) error {
			return ledger.Close()
		})
	}

	return mgr.Start(ctx)
}

// boothSettings maps the daemon configuration onto the session-flow
// settings the controller consumes.
func boothSettings(cfg config.AppConfig) booth.Settings {
	return booth.Settings{
		CountdownSeconds: cfg.CountdownSeconds,
		DefaultImages:    cfg.DefaultImages,
		MaxPrintCount:    cfg.MaxPrintCount,
		LogoPath:         cfg.LogoPath,
		AlbumInfoLine:    cfg.AlbumInfoLine,
		AlbumLinkLine:    cfg.AlbumLinkLine,
	}
}
