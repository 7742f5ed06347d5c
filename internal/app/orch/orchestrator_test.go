package orch

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/FrameRelay/internal/app"
	"github.com/dkeye/FrameRelay/internal/codec"
	"github.com/dkeye/FrameRelay/internal/core"
	"github.com/dkeye/FrameRelay/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	err    error
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) messages(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

type fakePublisher struct {
	mu   sync.Mutex
	envs []codec.Envelope
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, env codec.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.envs = append(p.envs, env)
	return nil
}

func (p *fakePublisher) published() []codec.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]codec.Envelope(nil), p.envs...)
}

type rejectAll struct{}

func (rejectAll) Validate(domain.SignalingMessage) error { return errors.New("bad sdp") }

func newOrch() (*Orchestrator, *fakePublisher) {
	pub := &fakePublisher{}
	return &Orchestrator{
		Registry:  app.NewRegistry(),
		Publisher: pub,
		Policy:    app.SimplePolicy{Action: app.DropFrame},
	}, pub
}

func TestOnSignal_RelaysToOthersInOrder(t *testing.T) {
	o, _ := newOrch()
	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}
	sa := o.Connect(a, "", nil)
	o.Connect(b, "", nil)
	o.Connect(c, "", nil)

	require.NoError(t, o.OnSignal(sa, domain.SignalingMessage{Kind: domain.SignalOffer, Payload: "v=0 offer"}))
	require.NoError(t, o.OnSignal(sa, domain.SignalingMessage{Kind: domain.SignalCandidate, Payload: "cand-1"}))

	assert.Empty(t, a.messages(t))
	for _, peer := range []*fakeConn{b, c} {
		msgs := peer.messages(t)
		require.Len(t, msgs, 2)
		assert.Equal(t, domain.EventReceiveOffer, msgs[0]["type"])
		assert.Equal(t, "v=0 offer", msgs[0]["payload"])
		assert.Equal(t, string(sa), msgs[0]["from"])
		assert.Equal(t, domain.EventReceiveCandidate, msgs[1]["type"])
	}
}

func TestOnSignal_EmptyPayloadRejected(t *testing.T) {
	o, _ := newOrch()
	a, b := &fakeConn{}, &fakeConn{}
	sa := o.Connect(a, "", nil)
	o.Connect(b, "", nil)

	err := o.OnSignal(sa, domain.SignalingMessage{Kind: domain.SignalAnswer, Payload: "   "})

	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ErrorIs(t, err, core.ErrEmptyPayload)
	assert.Empty(t, b.messages(t))
	replies := a.messages(t)
	require.Len(t, replies, 1)
	assert.Equal(t, "error", replies[0]["type"])
	assert.Equal(t, "answer", replies[0]["ref"])
}

func TestOnSignal_ValidatorRejects(t *testing.T) {
	o, _ := newOrch()
	o.Validator = rejectAll{}
	a, b := &fakeConn{}, &fakeConn{}
	sa := o.Connect(a, "", nil)
	o.Connect(b, "", nil)

	err := o.OnSignal(sa, domain.SignalingMessage{Kind: domain.SignalOffer, Payload: "garbage"})
	assert.Error(t, err)
	assert.Empty(t, b.messages(t))
}

func TestOnSignal_PeerFailureIsolated(t *testing.T) {
	o, _ := newOrch()
	o.Policy = app.SimplePolicy{Action: app.KickMember}
	sender, good := &fakeConn{}, &fakeConn{}
	ss := o.Connect(sender, "", nil)
	kicked := false
	o.Connect(&fakeConn{err: core.ErrBackpressure}, "", func() { kicked = true })
	o.Connect(good, "", nil)

	require.NoError(t, o.OnSignal(ss, domain.SignalingMessage{Kind: domain.SignalOffer, Payload: "x"}))

	assert.Len(t, good.messages(t), 1)
	assert.Empty(t, sender.messages(t))
	assert.True(t, kicked)
}

func TestOnSignal_UnknownSender(t *testing.T) {
	o, _ := newOrch()
	b := &fakeConn{}
	o.Connect(b, "", nil)

	err := o.OnSignal("ghost", domain.SignalingMessage{Kind: domain.SignalOffer, Payload: "v=0"})

	assert.ErrorIs(t, err, core.ErrNoSession)
	assert.Empty(t, b.messages(t))
}

func TestDisconnect_RemovesFromBroadcast(t *testing.T) {
	o, _ := newOrch()
	a, b := &fakeConn{}, &fakeConn{}
	sa := o.Connect(a, "", nil)
	sb := o.Connect(b, "", nil)

	require.NoError(t, o.OnSignal(sa, domain.SignalingMessage{Kind: domain.SignalOffer, Payload: "1"}))
	o.Disconnect(sb)
	o.Disconnect(sb)
	require.NoError(t, o.OnSignal(sa, domain.SignalingMessage{Kind: domain.SignalOffer, Payload: "2"}))

	assert.Len(t, b.messages(t), 1)
}

func TestJoin_SwitchesGroup(t *testing.T) {
	o, _ := newOrch()
	a, b := &fakeConn{}, &fakeConn{}
	sa := o.Connect(a, "", nil)
	sb := o.Connect(b, "cams", nil)

	require.NoError(t, o.OnSignal(sa, domain.SignalingMessage{Kind: domain.SignalOffer, Payload: "1"}))
	assert.Empty(t, b.messages(t))

	require.True(t, o.Join(sb, domain.DefaultGroup))
	require.NoError(t, o.OnSignal(sa, domain.SignalingMessage{Kind: domain.SignalOffer, Payload: "2"}))
	assert.Len(t, b.messages(t), 1)
	assert.False(t, o.Join("ghost", "x"))
}

func TestOnChunk_MalformedBase64(t *testing.T) {
	o, pub := newOrch()
	a := &fakeConn{}
	sa := o.Connect(a, "", nil)

	err := o.OnChunk(context.Background(), sa, []byte(`{"type":"video_chunk","sourceId":"s","cameraId":"c","frameData":"***"}`))

	var de *core.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Empty(t, pub.published())
	assert.Equal(t, 1, o.Registry.Count(), "session stays connected")
}

func TestOnChunk_Publishes(t *testing.T) {
	o, pub := newOrch()
	sa := o.Connect(&fakeConn{}, "", nil)
	data := base64.StdEncoding.EncodeToString([]byte("jpeg"))

	require.NoError(t, o.OnChunk(context.Background(), sa, []byte(`{"sourceId":"src1","cameraId":"cam1","frameData":"`+data+`"}`)))
	require.NoError(t, o.OnBinaryChunk(context.Background(), sa, "src1", "cam2", []byte("raw")))

	envs := pub.published()
	require.Len(t, envs, 2)
	assert.Equal(t, "src1", envs[0].Key())
	assert.Equal(t, data, envs[0].FrameData())
	assert.Equal(t, "cam2", envs[1].CameraID())
}

func TestOnChunk_PublisherErrorReturned(t *testing.T) {
	o, pub := newOrch()
	pub.err = &core.OversizedItemError{Key: "s", Size: 10, Max: 5}
	sa := o.Connect(&fakeConn{}, "", nil)

	err := o.OnBinaryChunk(context.Background(), sa, "s", "c", []byte("0123456789"))
	var oe *core.OversizedItemError
	assert.ErrorAs(t, err, &oe)

	err = o.OnBinaryChunk(context.Background(), sa, "s", "c", nil)
	var ve *core.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestBroadcastAll(t *testing.T) {
	o, _ := newOrch()
	a, b := &fakeConn{}, &fakeConn{}
	o.Connect(a, "", nil)
	o.Connect(b, "other", nil)

	res, err := o.BroadcastAll(domain.SignalingMessage{Kind: domain.SignalAnswer, Payload: "sdp"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SentTo)

	_, err = o.BroadcastAll(domain.SignalingMessage{Kind: domain.SignalAnswer})
	assert.ErrorIs(t, err, core.ErrEmptyPayload)
}
