package pipeline

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig selects the topic carrying product-completion events.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Brokers []string `yaml:"brokers" json:"brokers"`
	Topic   string   `yaml:"topic" json:"topic"`
	GroupID string   `yaml:"group_id" json:"group_id"`
}

// StartKafka consumes completion events and applies them to the series
// writer until ctx is cancelled. Malformed messages are logged and skipped.
func StartKafka(ctx context.Context, cfg KafkaConfig, writer *Writer, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		logger.Info("kafka ingest disabled")
		return
	}
	logger.Info("kafka ingest enabled",
		"brokers", cfg.Brokers, "topic", cfg.Topic, "group_id", cfg.GroupID)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("kafka read error", "err", err)
				continue
			}
			ev, err := ParseEvent(m.Value)
			if err != nil {
				logger.Warn("skipping completion event", "err", err)
				continue
			}
			if err := writer.Apply(ctx, ev); err != nil {
				logger.Warn("series update failed", "product", ev.Product, "err", err)
			}
		}
	}()
}
