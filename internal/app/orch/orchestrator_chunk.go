package orch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/FrameRelay/internal/codec"
	"github.com/dkeye/FrameRelay/internal/core"
	"github.com/dkeye/FrameRelay/internal/domain"
	"github.com/dkeye/FrameRelay/internal/observe"
)

// OnChunk decodes a video_chunk message and hands it to the publisher.
// A *core.DecodeError is logged and returned; the session stays open.
func (o *Orchestrator) OnChunk(ctx context.Context, sid domain.SessionID, raw []byte) error {
	chunk, err := codec.Decode(raw)
	if err != nil {
		observe.IncChunk("decode_error")
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Int("bytes", len(raw)).Msg("chunk dropped")
		return err
	}
	return o.publish(ctx, sid, chunk)
}

// OnBinaryChunk publishes raw frame bytes attributed to source/camera.
func (o *Orchestrator) OnBinaryChunk(ctx context.Context, sid domain.SessionID, source, camera string, data []byte) error {
	chunk, err := codec.NewChunk(source, camera, data, time.Time{})
	if err != nil {
		observe.IncChunk("decode_error")
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("binary chunk dropped")
		return err
	}
	return o.publish(ctx, sid, chunk)
}

func (o *Orchestrator) publish(ctx context.Context, sid domain.SessionID, chunk domain.FrameChunk) error {
	err := o.Publisher.Publish(ctx, codec.Encode(chunk))
	if err == nil {
		return nil
	}
	var pe *core.PublishError
	switch {
	case errors.As(err, &pe):
		log.Error().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("source", chunk.SourceID).Msg("partition flush failed")
	default:
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("source", chunk.SourceID).Msg("chunk not published")
	}
	return err
}
