// Package redisstream writes frame batches to one Redis stream per
// partition key.
package redisstream

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Addr         string
	Password     string
	DB           int
	StreamPrefix string
	// MaxLen trims each stream approximately; 0 keeps everything.
	MaxLen int64
}

type Sink struct {
	cli    *redis.Client
	prefix string
	maxLen int64
}

func New(o Options) *Sink {
	cli := redis.NewClient(&redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB})
	return NewWithClient(cli, o.StreamPrefix, o.MaxLen)
}

func NewWithClient(cli *redis.Client, prefix string, maxLen int64) *Sink {
	return &Sink{cli: cli, prefix: prefix, maxLen: maxLen}
}

func (s *Sink) Stream(partitionKey string) string {
	return s.prefix + partitionKey
}

// SendBatch appends every payload to the key's stream inside MULTI/EXEC,
// so a batch lands whole or not at all and in order.
func (s *Sink) SendBatch(ctx context.Context, partitionKey string, payloads [][]byte) error {
	if len(payloads) == 0 {
		return nil
	}
	stream := s.Stream(partitionKey)
	_, err := s.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range payloads {
			pipe.XAdd(ctx, s.args(stream, p))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	log.Debug().Str("module", "sink.redis").Str("stream", stream).Int("items", len(payloads)).Msg("batch written")
	return nil
}

func (s *Sink) args(stream string, payload []byte) *redis.XAddArgs {
	a := &redis.XAddArgs{Stream: stream, Values: map[string]any{"data": payload}}
	if s.maxLen > 0 {
		a.MaxLen = s.maxLen
		a.Approx = true
	}
	return a
}

func (s *Sink) Ping(ctx context.Context) error {
	return s.cli.Ping(ctx).Err()
}

func (s *Sink) Close() error {
	return s.cli.Close()
}
