package rtc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/FrameRelay/internal/domain"
)

const minimalSDP = "v=0\r\no=- 4215775240449105457 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

func TestValidator(t *testing.T) {
	v := NewValidator()
	tests := []struct {
		name    string
		msg     domain.SignalingMessage
		wantErr bool
	}{
		{name: "bare offer sdp", msg: domain.SignalingMessage{Kind: domain.SignalOffer, Payload: minimalSDP}},
		{name: "json answer", msg: domain.SignalingMessage{Kind: domain.SignalAnswer, Payload: `{"type":"answer","sdp":"v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"}`}},
		{name: "offer sent as answer", msg: domain.SignalingMessage{Kind: domain.SignalAnswer, Payload: `{"type":"offer","sdp":"v=0\r\n"}`}, wantErr: true},
		{name: "garbage sdp", msg: domain.SignalingMessage{Kind: domain.SignalOffer, Payload: "hello"}, wantErr: true},
		{name: "bare candidate", msg: domain.SignalingMessage{Kind: domain.SignalCandidate, Payload: "candidate:1 1 udp 2130706431 192.168.1.10 54321 typ host"}},
		{name: "json candidate", msg: domain.SignalingMessage{Kind: domain.SignalCandidate, Payload: `{"candidate":"candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host","sdpMid":"0","sdpMLineIndex":0}`}},
		{name: "end of candidates", msg: domain.SignalingMessage{Kind: domain.SignalCandidate, Payload: `{"candidate":""}`}},
		{name: "garbage candidate", msg: domain.SignalingMessage{Kind: domain.SignalCandidate, Payload: "not a candidate"}, wantErr: true},
		{name: "unknown kind", msg: domain.SignalingMessage{Kind: "bye", Payload: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.msg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
