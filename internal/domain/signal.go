package domain

import (
	"errors"
	"strings"
)

const MaxGroupNameLen = 36

var (
	ErrUnknownSignalKind = errors.New("unknown signal kind")
	ErrGroupNameTooLong  = errors.New("group name too long")
)

type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

// Outbound event names mirrored to the other participants.
const (
	EventReceiveOffer     = "receiveOffer"
	EventReceiveAnswer    = "receiveAnswer"
	EventReceiveCandidate = "receiveCandidate"
)

// ParseSignalKind accepts the wire names used by browsers and the
// camelCase hub method name (iceCandidate).
func ParseSignalKind(s string) (SignalKind, error) {
	switch strings.ToLower(s) {
	case "offer":
		return SignalOffer, nil
	case "answer":
		return SignalAnswer, nil
	case "candidate", "icecandidate", "ice_candidate":
		return SignalCandidate, nil
	}
	return "", ErrUnknownSignalKind
}

// OutboundEvent is the name a relayed message of this kind is delivered as.
func (k SignalKind) OutboundEvent() string {
	switch k {
	case SignalOffer:
		return EventReceiveOffer
	case SignalAnswer:
		return EventReceiveAnswer
	case SignalCandidate:
		return EventReceiveCandidate
	}
	return ""
}

// SignalingMessage is relayed, never stored.
type SignalingMessage struct {
	Kind    SignalKind
	Payload string
}

func (m SignalingMessage) Empty() bool {
	return strings.TrimSpace(m.Payload) == ""
}

func ValidateGroupName(name string) (GroupName, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultGroup, nil
	}
	if len(name) > MaxGroupNameLen {
		return "", ErrGroupNameTooLong
	}
	return GroupName(name), nil
}
