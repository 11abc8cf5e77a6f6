package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"satqm/internal/config"
	"satqm/internal/incidents"
	"satqm/internal/logging"
	"satqm/internal/pipeline"
	"satqm/internal/storage"
)

// Nagios-style plugin: prints the check message to stdout and exits with the
// status code.
func main() {
	var (
		configPath = flag.String("config", "satqm.yaml", "path to configuration file (YAML or JSON)")
		readCache  = flag.Bool("read-cache", false, "report the cached result instead of checking")
	)
	flag.Parse()

	cfg, err := config.Load(config.ResolvePath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(int(pipeline.StatusUnknown))
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if *readCache {
		res, err := pipeline.ReadResultCache(cfg.Check.CacheFile,
			time.Duration(cfg.Check.CacheMaxAgeMinutes)*time.Minute)
		if err != nil {
			fmt.Println(err)
			os.Exit(int(pipeline.StatusUnknown))
		}
		fmt.Println(res.Message)
		os.Exit(int(res.Code))
	}

	ctx := context.Background()

	var availability pipeline.AvailabilitySource
	if cfg.Incidents.DSN != "" {
		db, dialect, err := storage.Open(cfg.Incidents.Driver, cfg.Incidents.DSN)
		if err != nil {
			logger.Error("open incidents store", "err", err)
			os.Exit(int(pipeline.StatusUnknown))
		}
		defer db.Close()
		pm, err := cfg.IncidentPatterns()
		if err != nil {
			logger.Error("incident patterns", "err", err)
			os.Exit(int(pipeline.StatusUnknown))
		}
		repo := incidents.NewRepository(db, dialect, pm)
		if err := repo.Init(ctx); err != nil {
			logger.Error("init incidents store", "err", err)
			os.Exit(int(pipeline.StatusUnknown))
		}
		availability = incidents.NewService(repo, logger)
	}

	if len(cfg.RRD.Dirs) == 0 {
		fmt.Println("no series directory configured")
		os.Exit(int(pipeline.StatusUnknown))
	}
	checker := &pipeline.Checker{
		Dir:             cfg.RRD.Dirs[0],
		MaxAge:          time.Duration(cfg.Check.MaxAgeMinutes) * time.Minute,
		MaxAgeIntervals: cfg.Check.MaxAgeIntervals,
		Availability:    availability,
		Logger:          logger,
	}
	res, err := checker.Check(ctx)
	if err != nil {
		fmt.Printf("check failed: %v\n", err)
		os.Exit(int(pipeline.StatusUnknown))
	}
	if cfg.Check.CacheFile != "" {
		if err := pipeline.WriteResultCache(cfg.Check.CacheFile, res); err != nil {
			logger.Error("write cache file", "file", cfg.Check.CacheFile, "err", err)
		}
	}
	fmt.Printf("%s - %s\n", res.Code, res.Message)
	os.Exit(int(res.Code))
}
