package codec

import (
	"github.com/goccy/go-json"

	"github.com/dkeye/FrameRelay/internal/core"
	"github.com/dkeye/FrameRelay/internal/domain"
)

type outboundSignal struct {
	Type    string           `json:"type"`
	From    domain.SessionID `json:"from,omitempty"`
	Payload string           `json:"payload"`
}

// EncodeSignal builds the receiveOffer/receiveAnswer/receiveCandidate message
// delivered to the other participants. The payload is carried verbatim.
func EncodeSignal(from domain.SessionID, msg domain.SignalingMessage) core.Frame {
	b, _ := json.Marshal(outboundSignal{
		Type:    msg.Kind.OutboundEvent(),
		From:    from,
		Payload: msg.Payload,
	})
	return b
}

type errorReply struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Ref   string `json:"ref,omitempty"`
}

// EncodeError builds the rejection sent back to the originating session.
// ref names the inbound message type that was rejected.
func EncodeError(ref string, err error) core.Frame {
	b, _ := json.Marshal(errorReply{Type: "error", Error: err.Error(), Ref: ref})
	return b
}
