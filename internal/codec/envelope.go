// Package codec converts frame chunks to transport-ready envelopes and back,
// and builds the outbound signaling wire messages.
package codec

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/dkeye/FrameRelay/internal/core"
	"github.com/dkeye/FrameRelay/internal/domain"
)

// now is swapped in tests.
var now = time.Now

// wireChunk is the JSON shape shared by envelopes and realtime video_chunk
// messages. Unknown fields (e.g. "type") are ignored.
type wireChunk struct {
	SourceID   string    `json:"sourceId"`
	CameraID   string    `json:"cameraId"`
	FrameData  string    `json:"frameData"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Envelope is the publishable form of a FrameChunk. It is serialized once on
// construction; the fields are read-only so the partition key and the
// payload can never disagree.
type Envelope struct {
	sourceID   string
	cameraID   string
	frameData  string
	capturedAt time.Time

	payload []byte
}

// Key is the partition key the envelope is published under.
func (e Envelope) Key() string { return e.sourceID }

func (e Envelope) SourceID() string { return e.sourceID }

func (e Envelope) CameraID() string { return e.cameraID }

// FrameData is the base64 form of the frame bytes.
func (e Envelope) FrameData() string { return e.frameData }

func (e Envelope) CapturedAt() time.Time { return e.capturedAt }

// Bytes returns the serialized envelope. Callers must not mutate it.
func (e Envelope) Bytes() []byte { return e.payload }

func (e Envelope) Size() int { return len(e.payload) }

// Encode is pure: the same chunk always yields the same bytes.
func Encode(c domain.FrameChunk) Envelope {
	env := Envelope{
		sourceID:   c.SourceID,
		cameraID:   c.CameraID,
		frameData:  base64.StdEncoding.EncodeToString(c.FrameData),
		capturedAt: c.CapturedAt.UTC(),
	}
	env.payload, _ = json.Marshal(wireChunk{
		SourceID:   env.sourceID,
		CameraID:   env.cameraID,
		FrameData:  env.frameData,
		CapturedAt: env.capturedAt,
	})
	return env
}

// Decode parses a serialized envelope or a realtime video_chunk message.
// Every failure is a *core.DecodeError; a missing capturedAt is stamped with
// the arrival time.
func Decode(b []byte) (domain.FrameChunk, error) {
	if len(b) == 0 {
		return domain.FrameChunk{}, &core.DecodeError{Err: core.ErrEmptyPayload}
	}
	var w wireChunk
	if err := json.Unmarshal(b, &w); err != nil {
		return domain.FrameChunk{}, &core.DecodeError{Err: err}
	}
	if strings.TrimSpace(w.SourceID) == "" {
		return domain.FrameChunk{}, &core.DecodeError{Err: core.ErrMissingSource}
	}
	if strings.TrimSpace(w.CameraID) == "" {
		return domain.FrameChunk{}, &core.DecodeError{Err: core.ErrMissingCamera}
	}
	data, err := DecodeFrameData(w.FrameData)
	if err != nil {
		return domain.FrameChunk{}, &core.DecodeError{Err: err}
	}
	at := w.CapturedAt
	if at.IsZero() {
		at = now()
	}
	return domain.FrameChunk{
		SourceID:   w.SourceID,
		CameraID:   w.CameraID,
		FrameData:  data,
		CapturedAt: at,
	}, nil
}

// DecodeFrameData decodes a base64 frame payload and rejects empty results.
func DecodeFrameData(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, core.ErrEmptyPayload
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, core.ErrBadEncoding
	}
	if len(data) == 0 {
		return nil, core.ErrEmptyPayload
	}
	return data, nil
}

// NewChunk validates a chunk whose bytes arrived without the JSON wrapper
// (binary websocket frames, uploads). A zero capturedAt is stamped now.
func NewChunk(sourceID, cameraID string, data []byte, capturedAt time.Time) (domain.FrameChunk, error) {
	if len(data) == 0 {
		return domain.FrameChunk{}, &core.ValidationError{Field: "frameData", Err: core.ErrEmptyPayload}
	}
	if strings.TrimSpace(sourceID) == "" {
		return domain.FrameChunk{}, &core.ValidationError{Field: "sourceId", Err: core.ErrMissingSource}
	}
	if strings.TrimSpace(cameraID) == "" {
		return domain.FrameChunk{}, &core.ValidationError{Field: "cameraId", Err: core.ErrMissingCamera}
	}
	if capturedAt.IsZero() {
		capturedAt = now()
	}
	return domain.FrameChunk{
		SourceID:   sourceID,
		CameraID:   cameraID,
		FrameData:  data,
		CapturedAt: capturedAt,
	}, nil
}
