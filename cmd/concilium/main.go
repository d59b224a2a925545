package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mtzanidakis/concilium/internal/audit"
	"github.com/mtzanidakis/concilium/internal/config"
	"github.com/mtzanidakis/concilium/internal/natsbus"
	"github.com/mtzanidakis/concilium/internal/pipeline"
	"github.com/mtzanidakis/concilium/internal/scheduler"
	"github.com/mtzanidakis/concilium/internal/telegram"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("concilium %s\n", version)
	case "run":
		if err := run(configArg()); err != nil {
			slog.Error("run failed", "error", err)
			os.Exit(1)
		}
	case "validate":
		if err := validate(configArg()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: concilium <command> [config]\n\nCommands:\n  run        Run every configured task through the deliberation pipeline\n  validate   Check a configuration file\n  version    Print version\n")
}

func configArg() string {
	if len(os.Args) > 2 {
		return os.Args[2]
	}
	return ""
}

func loadConfig(path string) (*config.Config, error) {
	_ = godotenv.Load()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func validate(path string) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	fmt.Printf("configuration ok: %d models, %d tasks\n", len(cfg.Models), len(cfg.Tasks))
	return nil
}

func run(path string) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.General.SlogLevel()})))
	slog.Info("starting concilium", "version", version, "models", len(cfg.Models), "tasks", len(cfg.Tasks))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := pipeline.Options{
		Log:            audit.NewLog(cfg.General.OutputDir),
		Recorder:       audit.NewRecorder(),
		Parallel:       cfg.General.Parallel,
		MaxConcurrency: cfg.General.MaxConcurrency,
	}

	if cfg.Events.Enabled {
		client, closeEvents, err := connectEvents(cfg.Events)
		if err != nil {
			return fmt.Errorf("init events: %w", err)
		}
		defer closeEvents()
		opts.Publisher = client
	}

	if cfg.Telegram.Token != "" {
		n, err := telegram.NewNotifier(cfg.Telegram.Token, cfg.Telegram.ChatIDs)
		if err != nil {
			return fmt.Errorf("init telegram: %w", err)
		}
		opts.Notifier = n
		slog.Info("telegram notifier enabled", "chats", len(cfg.Telegram.ChatIDs))
	}

	tasks := buildTasks(cfg)

	if cfg.General.Schedule == "" {
		agents, harmonizer, err := buildRoster(cfg, nil)
		if err != nil {
			return fmt.Errorf("build roster: %w", err)
		}
		pipeline.NewDriver(agents, harmonizer, opts).Run(ctx, tasks)
		return nil
	}

	// Every scheduled run gets a fresh roster.
	sched, err := scheduler.New(cfg.General.Schedule, func(ctx context.Context) {
		agents, harmonizer, err := buildRoster(cfg, nil)
		if err != nil {
			slog.Error("build roster failed", "error", err)
			return
		}
		pipeline.NewDriver(agents, harmonizer, opts).Run(ctx, tasks)
	})
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched.Start(ctx)
	return nil
}

// connectEvents dials an external NATS server when a URL is configured and
// otherwise starts an embedded one.
func connectEvents(cfg config.EventsConfig) (*natsbus.Client, func(), error) {
	if cfg.URL != "" {
		client, err := natsbus.NewClientFromURL(cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("publishing events", "url", cfg.URL)
		return client, client.Close, nil
	}

	bus, err := natsbus.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	client, err := natsbus.NewClient(bus)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	slog.Info("nats started", "url", bus.ClientURL())
	return client, func() {
		client.Close()
		bus.Close()
	}, nil
}
