package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/FrameRelay/internal/codec"
	"github.com/dkeye/FrameRelay/internal/core"
	"github.com/dkeye/FrameRelay/internal/domain"
	"github.com/dkeye/FrameRelay/internal/observe"
)

// OnSignal relays msg verbatim to the other members of the sender's group.
// An empty or invalid payload is rejected back to the sender and nothing is
// broadcast. Messages from one sender go out in the order OnSignal is called.
func (o *Orchestrator) OnSignal(sid domain.SessionID, msg domain.SignalingMessage) error {
	if err := o.validate(msg); err != nil {
		observe.IncSignal(string(msg.Kind), "rejected")
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("kind", string(msg.Kind)).Msg("signal rejected")
		if serr := o.Registry.SendTo(sid, codec.EncodeError(string(msg.Kind), err)); serr != nil {
			log.Debug().Err(serr).Str("module", "orch").Str("sid", string(sid)).Msg("rejection not delivered")
		}
		return err
	}

	res, err := o.Registry.BroadcastFrom(sid, codec.EncodeSignal(sid, msg))
	if err != nil {
		observe.IncSignal(string(msg.Kind), "no_session")
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("kind", string(msg.Kind)).Msg("signal from unknown session")
		return err
	}
	o.handleDropped(res)
	observe.IncSignal(string(msg.Kind), "relayed")
	log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("kind", string(msg.Kind)).Int("sent_to", res.SentTo).Msg("signal relayed")
	return nil
}

// BroadcastAll sends msg to every session. It backs the REST signaling
// endpoints, which have no sending session.
func (o *Orchestrator) BroadcastAll(msg domain.SignalingMessage) (core.PublishResult, error) {
	if err := o.validate(msg); err != nil {
		observe.IncSignal(string(msg.Kind), "rejected")
		return core.PublishResult{}, err
	}
	res := o.Registry.BroadcastAll(codec.EncodeSignal("", msg))
	o.handleDropped(res)
	observe.IncSignal(string(msg.Kind), "relayed")
	return res, nil
}

func (o *Orchestrator) validate(msg domain.SignalingMessage) error {
	if msg.Kind.OutboundEvent() == "" {
		return &core.ValidationError{Field: "type", Err: domain.ErrUnknownSignalKind}
	}
	if msg.Empty() {
		return &core.ValidationError{Field: string(msg.Kind), Err: core.ErrEmptyPayload}
	}
	if o.Validator != nil {
		if err := o.Validator.Validate(msg); err != nil {
			return &core.ValidationError{Field: string(msg.Kind), Err: err}
		}
	}
	return nil
}
