// Package rtc checks WebRTC signaling payloads without terminating a peer
// connection. The relay forwards payloads verbatim; validation only decides
// whether they are forwarded at all.
package rtc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pion/ice/v4"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/FrameRelay/internal/domain"
)

var ErrTypeMismatch = errors.New("description type does not match message kind")

type Validator struct{}

func NewValidator() *Validator { return &Validator{} }

func (v *Validator) Validate(msg domain.SignalingMessage) error {
	switch msg.Kind {
	case domain.SignalOffer:
		return validateDescription(webrtc.SDPTypeOffer, msg.Payload)
	case domain.SignalAnswer:
		return validateDescription(webrtc.SDPTypeAnswer, msg.Payload)
	case domain.SignalCandidate:
		return validateCandidate(msg.Payload)
	}
	return domain.ErrUnknownSignalKind
}

// validateDescription accepts either bare SDP text or a JSON
// RTCSessionDescriptionInit.
func validateDescription(want webrtc.SDPType, payload string) error {
	desc := webrtc.SessionDescription{Type: want, SDP: payload}
	if strings.HasPrefix(strings.TrimSpace(payload), "{") {
		if err := json.Unmarshal([]byte(payload), &desc); err != nil {
			return fmt.Errorf("session description: %w", err)
		}
		if desc.Type != want {
			return ErrTypeMismatch
		}
	}
	if _, err := desc.Unmarshal(); err != nil {
		return fmt.Errorf("sdp: %w", err)
	}
	return nil
}

// validateCandidate accepts either an a=candidate value or a JSON
// RTCIceCandidateInit. An empty candidate string marks end-of-candidates.
func validateCandidate(payload string) error {
	raw := payload
	if strings.HasPrefix(strings.TrimSpace(payload), "{") {
		var init webrtc.ICECandidateInit
		if err := json.Unmarshal([]byte(payload), &init); err != nil {
			return fmt.Errorf("candidate init: %w", err)
		}
		if init.Candidate == "" {
			return nil
		}
		raw = init.Candidate
	}
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "a=")
	raw = strings.TrimPrefix(raw, "candidate:")
	if _, err := ice.UnmarshalCandidate(raw); err != nil {
		return fmt.Errorf("ice candidate: %w", err)
	}
	return nil
}
