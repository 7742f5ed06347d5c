// Package sink builds the configured core.Sink.
package sink

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/FrameRelay/internal/adapters/sink/kafka"
	"github.com/dkeye/FrameRelay/internal/adapters/sink/logsink"
	"github.com/dkeye/FrameRelay/internal/adapters/sink/redisstream"
	"github.com/dkeye/FrameRelay/internal/config"
	"github.com/dkeye/FrameRelay/internal/core"
)

func New(c *config.Config) (core.Sink, error) {
	cfg := c.Sink
	log.Info().Str("module", "sink").Str("kind", cfg.Kind).Msg("building sink")
	switch cfg.Kind {
	case "", "log":
		return logsink.New(), nil
	case "redis":
		return redisstream.New(redisstream.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			StreamPrefix: cfg.Redis.StreamPrefix,
			MaxLen:       cfg.Redis.MaxLen,
		}), nil
	case "kafka":
		return kafka.New(kafka.Options{
			Brokers:         cfg.Kafka.Brokers,
			Topic:           cfg.Kafka.Topic,
			ClientID:        cfg.Kafka.ClientID,
			TransactionalID: cfg.Kafka.TransactionalID,
			Producers:       cfg.Kafka.Producers,
			MaxMessageBytes: c.KafkaMessageBytes(),
		})
	}
	return nil, fmt.Errorf("unknown sink kind %q", cfg.Kind)
}
