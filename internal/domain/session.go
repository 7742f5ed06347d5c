// Package domain contains entity without logic, just meta-data
package domain

import "time"

const DefaultGroup GroupName = "main"

type (
	SessionID string
	GroupName string
)

// Session is one live realtime connection. It lives only as long as the
// connection and is never persisted.
type Session struct {
	ID          SessionID `json:"id"`
	Group       GroupName `json:"group"`
	ConnectedAt time.Time `json:"connected_at"`
}

// NewSession avoids raw literals in adapters and keeps construction obvious.
func NewSession(id SessionID, group GroupName, now time.Time) *Session {
	if group == "" {
		group = DefaultGroup
	}
	return &Session{ID: id, Group: group, ConnectedAt: now}
}
