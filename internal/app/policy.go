package app

import (
	"strings"

	"github.com/dkeye/FrameRelay/internal/core"
)

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a peer whose send failed during a broadcast.
// It never affects the sender or the remaining peers.
type Policy interface {
	OnBackPressure(failure *core.PeerDeliveryError) BackpressureAction
}

type SimplePolicy struct {
	Action BackpressureAction
}

func (p SimplePolicy) OnBackPressure(*core.PeerDeliveryError) BackpressureAction {
	return p.Action
}

// PolicyFromString maps the relay.peer_policy config value; anything other
// than "kick" drops the frame for that peer.
func PolicyFromString(s string) Policy {
	if strings.EqualFold(strings.TrimSpace(s), "kick") {
		return SimplePolicy{Action: KickMember}
	}
	return SimplePolicy{Action: DropFrame}
}
