package codec

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/FrameRelay/internal/core"
	"github.com/dkeye/FrameRelay/internal/domain"
)

func TestEncode_Deterministic(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	c := domain.FrameChunk{SourceID: "src1", CameraID: "cam1", FrameData: []byte("frame"), CapturedAt: at}

	a := Encode(c)
	b := Encode(c)

	assert.Equal(t, a.Bytes(), b.Bytes())
	assert.Equal(t, "src1", a.Key())
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("frame")), a.FrameData())
	assert.Equal(t, time.UTC, a.CapturedAt().Location())
	assert.Equal(t, len(a.Bytes()), a.Size())

	var w map[string]any
	require.NoError(t, json.Unmarshal(a.Bytes(), &w))
	assert.Equal(t, "src1", w["sourceId"])
	assert.Equal(t, "cam1", w["cameraId"])
	assert.Equal(t, a.FrameData(), w["frameData"])
}

func TestEnvelope_KeyMatchesPayload(t *testing.T) {
	env := Encode(domain.FrameChunk{SourceID: "src1", CameraID: "cam1", FrameData: []byte{7}, CapturedAt: time.Unix(0, 0)})

	got, err := Decode(env.Bytes())
	require.NoError(t, err)
	assert.Equal(t, env.Key(), got.SourceID)
	assert.Equal(t, env.SourceID(), env.Key())
	assert.Equal(t, env.CameraID(), got.CameraID)
	assert.True(t, env.CapturedAt().Equal(got.CapturedAt))
}

func TestDecode_AcceptsEncodedEnvelope(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	env := Encode(domain.FrameChunk{SourceID: "src1", CameraID: "cam1", FrameData: []byte{1, 2, 3}, CapturedAt: at})

	got, err := Decode(env.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "src1", got.SourceID)
	assert.Equal(t, "cam1", got.CameraID)
	assert.Equal(t, []byte{1, 2, 3}, got.FrameData)
	assert.True(t, at.Equal(got.CapturedAt))
}

func TestDecode_StampsMissingCapturedAt(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	orig := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = orig })

	got, err := Decode([]byte(`{"type":"video_chunk","sourceId":"s","cameraId":"c","frameData":"AQI="}`))
	require.NoError(t, err)
	assert.Equal(t, fixed, got.CapturedAt)
}

func TestDecode_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty payload", input: "", wantErr: core.ErrEmptyPayload},
		{name: "malformed base64", input: `{"sourceId":"s","cameraId":"c","frameData":"%%%not-base64"}`, wantErr: core.ErrBadEncoding},
		{name: "empty frame data", input: `{"sourceId":"s","cameraId":"c","frameData":""}`, wantErr: core.ErrEmptyPayload},
		{name: "missing source", input: `{"cameraId":"c","frameData":"AQI="}`, wantErr: core.ErrMissingSource},
		{name: "missing camera", input: `{"sourceId":"s","frameData":"AQI="}`, wantErr: core.ErrMissingCamera},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			var de *core.DecodeError
			require.ErrorAs(t, err, &de)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	var de *core.DecodeError
	assert.True(t, errors.As(err, &de))
}

func TestNewChunk(t *testing.T) {
	_, err := NewChunk("s", "c", nil, time.Time{})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "frameData", ve.Field)

	_, err = NewChunk("", "c", []byte{1}, time.Time{})
	assert.ErrorIs(t, err, core.ErrMissingSource)

	c, err := NewChunk("s", "c", []byte{1}, time.Time{})
	require.NoError(t, err)
	assert.False(t, c.CapturedAt.IsZero())
	assert.Equal(t, "s", c.PartitionKey())
}

func TestEncodeSignal(t *testing.T) {
	f := EncodeSignal("peer-a", domain.SignalingMessage{Kind: domain.SignalCandidate, Payload: `{"candidate":"x"}`})

	var w map[string]any
	require.NoError(t, json.Unmarshal(f, &w))
	assert.Equal(t, domain.EventReceiveCandidate, w["type"])
	assert.Equal(t, "peer-a", w["from"])
	assert.Equal(t, `{"candidate":"x"}`, w["payload"])
}
