package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/FrameRelay/internal/app"
	"github.com/dkeye/FrameRelay/internal/codec"
	"github.com/dkeye/FrameRelay/internal/core"
	"github.com/dkeye/FrameRelay/internal/domain"
	"github.com/dkeye/FrameRelay/internal/observe"
)

// Publisher accepts envelopes for the downstream stream.
type Publisher interface {
	Publish(ctx context.Context, env codec.Envelope) error
}

// SignalValidator optionally checks payload syntax before a message is relayed.
type SignalValidator interface {
	Validate(msg domain.SignalingMessage) error
}

// Orchestrator is the relay hub. It holds no per-session state of its own:
// membership lives in the Registry, batching in the Publisher.
type Orchestrator struct {
	Registry  *app.Registry
	Publisher Publisher
	Policy    app.Policy
	Validator SignalValidator
}

// Connect registers a new session in group and returns its id.
func (o *Orchestrator) Connect(conn core.SignalConnection, group domain.GroupName, cancel context.CancelFunc) domain.SessionID {
	return o.Registry.Register(conn, group, cancel)
}

// Disconnect removes sid from future broadcasts. Frames already handed to
// other peers and flushes already running are unaffected.
func (o *Orchestrator) Disconnect(sid domain.SessionID) {
	if o.Registry.Unregister(sid) {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("session disconnected")
	}
}

// Join moves sid into another broadcast group.
func (o *Orchestrator) Join(sid domain.SessionID, group domain.GroupName) bool {
	from, ok := o.Registry.GroupOf(sid)
	if !ok {
		return false
	}
	if from == group {
		return true
	}
	ok = o.Registry.Join(sid, group)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_group", string(from)).Str("group", string(group)).Msg("moved group")
	return ok
}

// handleDropped applies the backpressure policy to peers a broadcast could
// not reach. The sender and the other peers are never affected.
func (o *Orchestrator) handleDropped(res core.PublishResult) {
	for _, failure := range res.Dropped {
		observe.IncPeerDrop()
		log.Warn().Err(failure.Err).Str("module", "orch").Str("peer", string(failure.Peer)).Msg("peer delivery failed")
		if o.Policy == nil {
			continue
		}
		switch o.Policy.OnBackPressure(failure) {
		case app.KickMember:
			o.Registry.Cancel(failure.Peer)
		case app.DropFrame:
		}
	}
}
