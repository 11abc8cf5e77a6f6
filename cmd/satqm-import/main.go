package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"satqm/internal/aldalog"
	"satqm/internal/config"
	"satqm/internal/dailylog"
	"satqm/internal/incidents"
	"satqm/internal/logging"
	"satqm/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "satqm.yaml", "path to configuration file (YAML or JSON)")
		importType = flag.String("type", "", "input type: dailylog, aldalog or uns")
		moveTo     = flag.String("move-to", "", "move imported files into this directory")
	)
	flag.Parse()

	cfg, err := config.Load(config.ResolvePath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no input files given")
		os.Exit(1)
	}

	ctx := context.Background()
	var importOne func(context.Context, string) error

	switch *importType {
	case "dailylog":
		svc, closeFn, err := dailylogService(ctx, cfg, logger)
		if err != nil {
			logger.Error("open dailylog store", "err", err)
			os.Exit(1)
		}
		defer closeFn()
		importOne = svc.ImportFile
	case "aldalog":
		svc, closeFn, err := aldalogService(ctx, cfg, logger)
		if err != nil {
			logger.Error("open aldalog store", "err", err)
			os.Exit(1)
		}
		defer closeFn()
		importOne = svc.ImportFile
	case "uns":
		svc, closeFn, err := incidentsService(ctx, cfg, logger)
		if err != nil {
			logger.Error("open incidents store", "err", err)
			os.Exit(1)
		}
		defer closeFn()
		importOne = svc.ImportFile
	default:
		fmt.Fprintf(os.Stderr, "unknown -type %q, expected dailylog, aldalog or uns\n", *importType)
		os.Exit(1)
	}

	failed := 0
	for _, file := range files {
		if err := importOne(ctx, file); err != nil {
			logger.Error("import failed", "file", file, "err", err)
			failed++
			continue
		}
		if *moveTo != "" {
			dest := filepath.Join(*moveTo, filepath.Base(file))
			if err := os.Rename(file, dest); err != nil {
				logger.Error("move failed", "file", file, "dest", dest, "err", err)
				failed++
			}
		}
	}
	if failed > 0 {
		logger.Error("import finished with failures", "failed", failed, "total", len(files))
		os.Exit(1)
	}
	logger.Info("import finished", "files", len(files), "type", *importType)
}

func dailylogService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dailylog.Service, func(), error) {
	db, dialect, err := storage.Open(cfg.Dailylog.Driver, cfg.Dailylog.DSN)
	if err != nil {
		return nil, nil, err
	}
	pm, err := cfg.DailylogPatterns()
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	repo := dailylog.NewRepository(db, dialect, pm)
	if err := repo.Init(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return dailylog.NewService(repo, cfg.MaxAgeDays, logger), func() { db.Close() }, nil
}

func aldalogService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*aldalog.Service, func(), error) {
	db, dialect, err := storage.Open(cfg.Aldalog.Driver, cfg.Aldalog.DSN)
	if err != nil {
		return nil, nil, err
	}
	pm, err := cfg.AldalogPatterns()
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	repo := aldalog.NewRepository(db, dialect, pm)
	if err := repo.Init(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	fps, err := cfg.AldalogFilenamePatterns()
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return aldalog.NewService(repo, fps, cfg.MaxAgeDays, logger), func() { db.Close() }, nil
}

func incidentsService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*incidents.Service, func(), error) {
	db, dialect, err := storage.Open(cfg.Incidents.Driver, cfg.Incidents.DSN)
	if err != nil {
		return nil, nil, err
	}
	pm, err := cfg.IncidentPatterns()
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	repo := incidents.NewRepository(db, dialect, pm)
	if err := repo.Init(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return incidents.NewService(repo, logger), func() { db.Close() }, nil
}
