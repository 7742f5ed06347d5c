package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/FrameRelay/internal/core"
	"github.com/dkeye/FrameRelay/internal/domain"
	"github.com/dkeye/FrameRelay/internal/observe"
)

type sessionEntry struct {
	Session core.MemberSession
	Cancel  context.CancelFunc
}

// Registry owns the set of live sessions and their group membership.
// Broadcasts iterate a snapshot taken under the read lock; sends happen
// after the lock is released so a slow peer never stalls registration.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionEntry

	newID func() domain.SessionID
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*sessionEntry),
		newID:    func() domain.SessionID { return domain.SessionID(uuid.NewString()) },
		now:      time.Now,
	}
}

// Register assigns a fresh session id and adds the connection to group.
// cancel, if set, is invoked when the session is unregistered or kicked.
func (r *Registry) Register(conn core.SignalConnection, group domain.GroupName, cancel context.CancelFunc) domain.SessionID {
	sid := r.newID()
	meta := domain.NewSession(sid, group, r.now())
	r.mu.Lock()
	r.sessions[sid] = &sessionEntry{
		Session: core.NewMemberSession(meta, conn),
		Cancel:  cancel,
	}
	r.mu.Unlock()
	observe.AddSessions(1)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("group", string(meta.Group)).Msg("registered session")
	return sid
}

// Unregister removes sid and cancels its context. It reports whether the
// session was present; repeated calls are no-ops.
func (r *Registry) Unregister(sid domain.SessionID) bool {
	r.mu.Lock()
	e, ok := r.sessions[sid]
	if ok {
		delete(r.sessions, sid)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	observe.AddSessions(-1)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unregistered session")
	return true
}

func (r *Registry) GetSession(sid domain.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) GroupOf(sid domain.SessionID) (domain.GroupName, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return "", false
	}
	return e.Session.Meta().Group, true
}

// Join moves sid into group.
func (r *Registry) Join(sid domain.SessionID, group domain.GroupName) bool {
	if group == "" {
		group = domain.DefaultGroup
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Session.Meta().Group = group
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("group", string(group)).Msg("updated group")
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

type regSnap struct {
	SID     domain.SessionID
	Session core.MemberSession
}

func (r *Registry) snapshot(match func(*domain.Session) bool) []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]regSnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if match(e.Session.Meta()) {
			out = append(out, regSnap{SID: sid, Session: e.Session})
		}
	}
	return out
}

// BroadcastExcept delivers frame to every other session in the sender's
// group. Failed sends are collected, never returned as a broadcast error.
// An unknown sender reaches nobody.
func (r *Registry) BroadcastExcept(from domain.SessionID, frame core.Frame) core.PublishResult {
	res, _ := r.BroadcastFrom(from, frame)
	return res
}

// BroadcastFrom is BroadcastExcept that reports core.ErrNoSession when from
// is not registered.
func (r *Registry) BroadcastFrom(from domain.SessionID, frame core.Frame) (core.PublishResult, error) {
	group, ok := r.GroupOf(from)
	if !ok {
		return core.PublishResult{}, core.ErrNoSession
	}
	peers := r.snapshot(func(s *domain.Session) bool {
		return s.ID != from && s.Group == group
	})
	res := deliver(peers, frame)
	log.Debug().Str("module", "app.registry").Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res, nil
}

// BroadcastAll delivers frame to every registered session regardless of group.
func (r *Registry) BroadcastAll(frame core.Frame) core.PublishResult {
	peers := r.snapshot(func(*domain.Session) bool { return true })
	return deliver(peers, frame)
}

// SendTo delivers frame to a single session.
func (r *Registry) SendTo(sid domain.SessionID, frame core.Frame) error {
	sess, ok := r.GetSession(sid)
	if !ok {
		return core.ErrNoSession
	}
	return sess.Signal().TrySend(frame)
}

func deliver(peers []regSnap, frame core.Frame) core.PublishResult {
	res := core.PublishResult{}
	for _, p := range peers {
		if err := p.Session.Signal().TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, &core.PeerDeliveryError{Peer: p.SID, Session: p.Session, Err: err})
			continue
		}
		res.SentTo++
	}
	return res
}

// Snapshot lists the live sessions for the HTTP API.
func (r *Registry) Snapshot() []core.SessionDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SessionDTO, 0, len(r.sessions))
	for _, e := range r.sessions {
		m := e.Session.Meta()
		out = append(out, core.SessionDTO{ID: m.ID, Group: m.Group, ConnectedAt: m.ConnectedAt.Unix()})
	}
	return out
}

// Cancel stops the session's pumps without removing it; the adapter's read
// loop unregisters on exit.
func (r *Registry) Cancel(sid domain.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
