package core

import "github.com/dkeye/FrameRelay/internal/domain"

// MemberSession binds domain.Session and its transport endpoint.
// This is what the registry stores and fans out to.
type MemberSession interface {
	Meta() *domain.Session
	Signal() SignalConnection
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []*PeerDeliveryError
}

// SessionDTO is a read-only view for APIs (no transport fields).
type SessionDTO struct {
	ID          domain.SessionID `json:"id"`
	Group       domain.GroupName `json:"group"`
	ConnectedAt int64            `json:"connected_at"`
}
