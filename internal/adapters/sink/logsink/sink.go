// Package logsink is a core.Sink that only logs batches. It is the default
// for local runs without a broker.
package logsink

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Sink struct {
	logger  zerolog.Logger
	batches atomic.Int64
	items   atomic.Int64
}

func New() *Sink {
	return &Sink{logger: log.With().Str("module", "sink.log").Logger()}
}

func (s *Sink) SendBatch(_ context.Context, partitionKey string, payloads [][]byte) error {
	size := 0
	for _, p := range payloads {
		size += len(p)
	}
	s.batches.Add(1)
	s.items.Add(int64(len(payloads)))
	s.logger.Info().Str("key", partitionKey).Int("items", len(payloads)).Int("bytes", size).Msg("batch")
	return nil
}

// Stats reports how many batches and items were accepted.
func (s *Sink) Stats() (batches, items int64) {
	return s.batches.Load(), s.items.Load()
}

func (s *Sink) Close() error { return nil }
