package signal

import (
	"context"
	"errors"

	"github.com/dkeye/FrameRelay/internal/core"
	"github.com/dkeye/FrameRelay/internal/observe"
)

var errRateLimited = errors.New("rate limited")

type chunkRejected struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

func (ctl *SignalWSController) handleChunk(ctx context.Context, c *WsSignalConn, data []byte) {
	if !ctl.Limits.Allow(c.sid) {
		observe.IncChunk("rate_limited")
		ctl.rejectChunk(c, errRateLimited)
		return
	}
	if err := ctl.Orch.OnChunk(ctx, c.sid, data); err != nil {
		ctl.rejectChunk(c, err)
	}
}

func (ctl *SignalWSController) handleBinary(ctx context.Context, c *WsSignalConn, data []byte) {
	if !ctl.Limits.Allow(c.sid) {
		observe.IncChunk("rate_limited")
		ctl.rejectChunk(c, errRateLimited)
		return
	}
	if err := ctl.Orch.OnBinaryChunk(ctx, c.sid, c.source, c.camera, data); err != nil {
		ctl.rejectChunk(c, err)
	}
}

func (ctl *SignalWSController) rejectChunk(c *WsSignalConn, err error) {
	ctl.sendJSON(c, chunkRejected{Type: "chunk_rejected", Reason: rejectReason(err), Error: err.Error()})
}

func rejectReason(err error) string {
	var (
		de *core.DecodeError
		ve *core.ValidationError
		oe *core.OversizedItemError
		pe *core.PublishError
	)
	switch {
	case errors.Is(err, errRateLimited):
		return "rate_limited"
	case errors.As(err, &de), errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &oe):
		return "oversized"
	case errors.Is(err, core.ErrBackpressure):
		return "backpressure"
	case errors.As(err, &pe):
		return "publish_failed"
	case errors.Is(err, core.ErrClosed):
		return "closed"
	}
	return "error"
}
