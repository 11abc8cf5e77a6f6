package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"satqm/internal/config"
	"satqm/internal/logging"
	"satqm/internal/pipeline"
)

// Long-running consumer: applies product-completion events from kafka to the
// per-product series files until interrupted.
func main() {
	configPath := flag.String("config", "satqm.yaml", "path to configuration file (YAML or JSON)")
	flag.Parse()

	cfg, err := config.Load(config.ResolvePath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if !cfg.Kafka.Enabled {
		logger.Error("kafka ingest is disabled in the configuration")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	writer := pipeline.NewWriter(cfg.RRD.Dirs[0],
		time.Duration(cfg.RRD.StepSeconds)*time.Second, logger)
	defer writer.Close()

	pipeline.StartKafka(ctx, cfg.Kafka, writer, logger)
	logger.Info("ingest started", "dir", cfg.RRD.Dirs[0], "topic", cfg.Kafka.Topic)

	<-ctx.Done()
	logger.Info("shutting down")
}
