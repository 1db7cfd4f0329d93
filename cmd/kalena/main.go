package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"kalena/internal/backend"
	"kalena/internal/capture"
	"kalena/internal/commands"
	"kalena/internal/config"
	"kalena/internal/ics"
	appLog "kalena/internal/log"
	"kalena/internal/refresh"
	"kalena/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	listen     string
	debug      bool
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "hash-password":
			if err := commands.HashPassword(os.Args[2:], commands.NewTerminalPrompter(), os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "snapshot":
			if err := runSnapshot(os.Args[2:]); err != nil {
				appLog.Error("snapshot failed", err)
				os.Exit(1)
			}
			return
		}
	}

	flags := parseFlags()
	if err := run(flags); err != nil {
		appLog.Error("kalena stopped with error", err)
		os.Exit(1)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig
	flag.StringVar(&cfg.configPath, "config", "/etc/kalena/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.Parse()
	return cfg
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLog.Info("kalena starting",
		"version", version,
		"listen", conf.Listen,
		"backend", conf.BackendURL,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"ics_count", len(conf.ICS),
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc := conf.Location()
	client, err := backend.NewClient(conf.BackendURL, nil, loc)
	if err != nil {
		return err
	}

	sources := make([]ics.Source, 0, len(conf.ICS))
	for _, c := range conf.ICS {
		sources = append(sources, ics.Source{ID: c.ID, Name: c.Name, URL: c.URL})
	}
	feeds := ics.NewFeeds(ics.NewFetcher(filepath.Join(conf.CacheDir, "ics"), nil), sources, ics.DefaultMaxOccurrences)

	if len(sources) > 0 {
		sched, err := refresh.New("ics-feeds", conf.RefreshCron, loc, 0, feeds.Refresh)
		if err != nil {
			return err
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	srv, err := web.NewServer(web.Options{
		Config:  conf,
		Backend: client,
		Feeds:   feeds,
	})
	if err != nil {
		return err
	}
	err = srv.Run(ctx)
	appLog.Info("kalena exiting")
	return err
}

func runSnapshot(args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	configPath := fs.String("config", "/etc/kalena/config.yaml", "Path to config file")
	baseURL := fs.String("url", "", "Server URL (defaults to the configured listen address)")
	month := fs.String("month", "", "Month to capture as YYYY-MM (default: current month)")
	out := fs.String("out", "month.png", "Output PNG path")
	user := fs.String("user", "", "Basic Auth username; the password is read from KALENA_SNAPSHOT_PASSWORD")
	chrome := fs.String("chrome", "", "Path to the Chromium binary")
	fs.Parse(args)

	conf, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	target := *baseURL
	if target == "" {
		target = "http://" + conf.Listen
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return capture.CaptureMonthPNG(ctx, capture.Options{
		BaseURL:    target,
		Month:      *month,
		OutputPath: *out,
		Username:   *user,
		Password:   os.Getenv("KALENA_SNAPSHOT_PASSWORD"),
		ExecPath:   *chrome,
	})
}
