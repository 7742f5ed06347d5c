package signal

import (
	"context"
	"fmt"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"

	"github.com/dkeye/FrameRelay/internal/core"
	"github.com/dkeye/FrameRelay/internal/domain"
)

func TestRawText(t *testing.T) {
	assert.Equal(t, "", rawText(nil))
	assert.Equal(t, "", rawText(json.RawMessage("null")))
	assert.Equal(t, "v=0", rawText(json.RawMessage(`"v=0"`)))
	assert.Equal(t, `{"candidate":"x"}`, rawText(json.RawMessage(`{"candidate":"x"}`)))
}

func TestRejectReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: errRateLimited, want: "rate_limited"},
		{err: &core.DecodeError{Err: core.ErrBadEncoding}, want: "invalid"},
		{err: &core.ValidationError{Field: "sourceId", Err: core.ErrMissingSource}, want: "invalid"},
		{err: &core.OversizedItemError{Key: "k", Size: 2, Max: 1}, want: "oversized"},
		{err: core.ErrBackpressure, want: "backpressure"},
		{err: &core.PublishError{Key: "k", Err: context.DeadlineExceeded}, want: "publish_failed"},
		{err: core.ErrClosed, want: "closed"},
		{err: fmt.Errorf("boom"), want: "error"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, rejectReason(tt.err))
		})
	}
}

func TestChunkLimiter(t *testing.T) {
	unlimited := NewChunkLimiter(0, 0)
	assert.Nil(t, unlimited)
	assert.True(t, unlimited.Allow("a"))
	unlimited.Forget("a")

	rl := NewChunkLimiter(0.001, 2)
	sid := domain.SessionID("a")
	assert.True(t, rl.Allow(sid))
	assert.True(t, rl.Allow(sid))
	assert.False(t, rl.Allow(sid))
	assert.True(t, rl.Allow("b"), "buckets are per session")

	rl.Forget(sid)
	assert.True(t, rl.Allow(sid))
}

func TestWsSignalConn_TrySend(t *testing.T) {
	c := &WsSignalConn{send: make(chan core.Frame, 1)}

	assert.NoError(t, c.TrySend(core.Frame("a")))
	assert.ErrorIs(t, c.TrySend(core.Frame("b")), core.ErrBackpressure)

	c.closed = true
	assert.ErrorIs(t, c.TrySend(core.Frame("c")), core.ErrClosed)
}
