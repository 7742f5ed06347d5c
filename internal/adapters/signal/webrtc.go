package signal

import (
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/FrameRelay/internal/domain"
)

// handleRelay forwards an offer, answer or candidate to the rest of the
// group. The server never terminates WebRTC itself.
func (ctl *SignalWSController) handleRelay(c *WsSignalConn, msg inbound) {
	kind, err := domain.ParseSignalKind(msg.Type)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("type", msg.Type).Msg("bad signal kind")
		return
	}
	payload := rawText(msg.Payload)
	if payload == "" {
		switch kind {
		case domain.SignalCandidate:
			payload = rawText(msg.Candidate)
		default:
			payload = msg.SDP
		}
	}
	// Rejections are reported to the sender by the orchestrator.
	_ = ctl.Orch.OnSignal(c.sid, domain.SignalingMessage{Kind: kind, Payload: payload})
}

// rawText returns a JSON string's value, or the raw JSON for anything else.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
