package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/FrameRelay/internal/codec"
	"github.com/dkeye/FrameRelay/internal/domain"
)

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleWhoAmI(
	conn *WsSignalConn,
) {
	group, _ := ctl.Orch.Registry.GroupOf(conn.sid)
	resp := struct {
		Type   string           `json:"type"`
		SID    domain.SessionID `json:"sid"`
		Group  domain.GroupName `json:"group"`
		Source string           `json:"source,omitempty"`
		Camera string           `json:"camera,omitempty"`
	}{
		Type:   "whoami",
		SID:    conn.sid,
		Group:  group,
		Source: conn.source,
		Camera: conn.camera,
	}
	ctl.sendJSON(conn, resp)
}

// handleJoin moves the session to another group; the connection stays open.
func (ctl *SignalWSController) handleJoin(
	conn *WsSignalConn,
	msg inbound,
) {
	group, err := domain.ValidateGroupName(msg.Group)
	if err != nil {
		_ = conn.TrySend(codec.EncodeError("join", err))
		return
	}
	if !ctl.Orch.Join(conn.sid, group) {
		log.Warn().Str("module", "signal").Str("sid", string(conn.sid)).Msg("join: no session")
		return
	}
	resp := struct {
		Type  string           `json:"type"`
		Group domain.GroupName `json:"group"`
	}{
		Type:  "joined",
		Group: group,
	}
	ctl.sendJSON(conn, resp)
}
