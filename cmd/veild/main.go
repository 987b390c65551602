// veild - window veil daemon
//
// veild tracks the windows it modifies (opacity, click-through, topmost),
// polls the configured keys for transient and locked passthrough, serves a
// control socket for veilctl, and guarantees every modified window is
// restored to its original state on any exit path.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"veil/internal/arbiter"
	"veil/internal/config"
	"veil/internal/engine"
	"veil/internal/guard"
	"veil/internal/ipc"
	"veil/internal/logging"
	"veil/internal/winapi"
)

var version = "0.2.0"

func main() {
	configPath := flag.String("config", "", "config file path (default ~/.veil/config.toml)")
	socketPath := flag.String("socket", "", "control socket path (overrides config)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("veild %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *socketPath != "" {
		cfg.IPC.SocketPath = *socketPath
	}

	log, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	logging.SetDefault(log)

	if err := run(cfg, *configPath, log); err != nil {
		log.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func buildLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(&logging.Config{
		Level:     level,
		Format:    format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		Component: "veild",
	})
}

func run(cfg *config.Config, configPath string, log *logging.Logger) error {
	backend := winapi.New()
	if ok, reason := backend.Available(); !ok {
		log.Warn("window backend unavailable; control surface only", "reason", reason)
	}

	eng := engine.New(backend, log)

	arbCfg, err := arbiterConfig(cfg)
	if err != nil {
		return err
	}
	arb := arbiter.New(backend, eng, arbCfg, log)

	grd := guard.New(eng, log, nil)
	grd.Arm()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := ipc.NewServer(cfg.IPC.SocketPath, newHandler(eng, arb, grd, backend, log), log)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	arb.Start(ctx)

	// Config edits take effect without a restart; socket and logging changes
	// still need one.
	err = config.Watch(ctx, configPath, log, func(next *config.Config) {
		nextCfg, cerr := arbiterConfig(next)
		if cerr != nil {
			log.Warn("reloaded config rejected", "error", cerr)
			return
		}
		arb.Reconfigure(nextCfg)
	})
	if err != nil {
		log.Warn("config watch unavailable", "error", err)
	}

	log.Info("veild running",
		"version", version,
		"socket", cfg.IPC.SocketPath,
		"poll_interval", cfg.PollInterval(),
		"modifier", cfg.Keys.Modifier,
		"toggle", cfg.Keys.Toggle)

	<-grd.Done()

	arb.Stop()
	srv.Stop()
	log.Info("veild exiting")
	return nil
}

func arbiterConfig(cfg *config.Config) (arbiter.Config, error) {
	modifiers, err := cfg.ModifierVKs()
	if err != nil {
		return arbiter.Config{}, err
	}
	toggle, err := cfg.ToggleVK()
	if err != nil {
		return arbiter.Config{}, err
	}
	return arbiter.Config{
		Interval:     cfg.PollInterval(),
		ModifierKeys: modifiers,
		ToggleKey:    toggle,
	}, nil
}
