package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"satqm/internal/aldalog"
	"satqm/internal/config"
	"satqm/internal/dailylog"
	"satqm/internal/logging"
	"satqm/internal/rrd"
	"satqm/internal/stats"
	"satqm/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "satqm.yaml", "path to configuration file (YAML or JSON)")
		year       = flag.Int("year", 0, "reporting year (default: previous month)")
		month      = flag.Int("month", 0, "reporting month 1-12 (default: previous month)")
	)
	flag.Parse()

	cfg, err := config.Load(config.ResolvePath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	y, m := *year, *month
	if y == 0 || m == 0 {
		// previous month: step back from the first of the current month
		prev := time.Now().UTC().AddDate(0, 0, -time.Now().UTC().Day())
		y, m = prev.Year(), int(prev.Month())
	}

	ctx := context.Background()

	dailyDB, dailyDialect, err := storage.Open(cfg.Dailylog.Driver, cfg.Dailylog.DSN)
	if err != nil {
		logger.Error("open dailylog store", "err", err)
		os.Exit(1)
	}
	defer dailyDB.Close()
	dailyPatterns, err := cfg.DailylogPatterns()
	if err != nil {
		logger.Error("dailylog patterns", "err", err)
		os.Exit(1)
	}
	dailyRepo := dailylog.NewRepository(dailyDB, dailyDialect, dailyPatterns)
	if err := dailyRepo.Init(ctx); err != nil {
		logger.Error("init dailylog store", "err", err)
		os.Exit(1)
	}
	dailySvc := dailylog.NewService(dailyRepo, cfg.MaxAgeDays, logger)

	aldaDB, aldaDialect, err := storage.Open(cfg.Aldalog.Driver, cfg.Aldalog.DSN)
	if err != nil {
		logger.Error("open aldalog store", "err", err)
		os.Exit(1)
	}
	defer aldaDB.Close()
	aldaPatterns, err := cfg.AldalogPatterns()
	if err != nil {
		logger.Error("aldalog patterns", "err", err)
		os.Exit(1)
	}
	aldaRepo := aldalog.NewRepository(aldaDB, aldaDialect, aldaPatterns)
	if err := aldaRepo.Init(ctx); err != nil {
		logger.Error("init aldalog store", "err", err)
		os.Exit(1)
	}
	filenamePatterns, err := cfg.AldalogFilenamePatterns()
	if err != nil {
		logger.Error("aldalog filename patterns", "err", err)
		os.Exit(1)
	}
	aldaSvc := aldalog.NewService(aldaRepo, filenamePatterns, cfg.MaxAgeDays, logger)

	calc := &stats.Calculator{
		Dailylog: dailySvc,
		Aldalog:  aldaSvc,
		Pipeline: &rrd.DirSource{Dirs: cfg.RRD.Dirs, Logger: logger},
	}
	runner := &stats.Runner{Calculator: calc, Workers: cfg.Workers, Logger: logger}

	products := make([]stats.Product, 0, len(cfg.Products))
	for _, p := range cfg.Products {
		products = append(products, stats.Product{
			Name:               p.Name,
			StepSeconds:        p.Steps,
			AllowedProcessTime: p.AllowedProcessTime,
			OutputCSVFile:      p.OutputCSVFile,
		})
	}

	logger.Info("starting monthly aggregation",
		"year", y, "month", m, "products", len(products), "workers", cfg.Workers)
	if err := runner.RunMonth(ctx, products, y, m); err != nil {
		logger.Error("aggregation finished with failures", "err", err)
		os.Exit(1)
	}
	logger.Info("aggregation finished", "year", y, "month", m)
}
