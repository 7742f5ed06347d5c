package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/FrameRelay/internal/app/orch"
	"github.com/dkeye/FrameRelay/internal/core"
	"github.com/dkeye/FrameRelay/internal/domain"
)

type Options struct {
	ReadLimit    int64
	PingPeriod   time.Duration
	SendBuffer   int
	DefaultGroup domain.GroupName
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1<<20 + 4096
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.DefaultGroup == "" {
		o.DefaultGroup = domain.DefaultGroup
	}
	return o
}

type SignalWSController struct {
	Orch   *orch.Orchestrator
	Limits *ChunkLimiter
	opts   Options
}

func NewSignalWSController(o *orch.Orchestrator, limits *ChunkLimiter, opts Options) *SignalWSController {
	return &SignalWSController{
		Orch:   o,
		Limits: limits,
		opts:   opts.withDefaults(),
	}
}

// WsSignalConn is the core.SignalConnection of one websocket. Only the write
// pump writes to conn; TrySend never blocks.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	sid    domain.SessionID
	source string
	camera string

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and starts the session pumps. The
// optional source and camera query parameters attribute binary frames.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	group := ctl.opts.DefaultGroup
	if raw := c.Query("group"); raw != "" {
		g, err := domain.ValidateGroupName(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		group = g
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	conn := &WsSignalConn{
		conn:   ws,
		send:   make(chan core.Frame, ctl.opts.SendBuffer),
		source: c.Query("source"),
		camera: c.Query("camera"),
	}

	ctx, cancel := context.WithCancel(ctx)
	conn.sid = ctl.Orch.Connect(conn, group, cancel)
	log.Info().Str("module", "signal").Str("sid", string(conn.sid)).Str("client", c.GetString("client_token")).Str("group", string(group)).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, conn)
}
