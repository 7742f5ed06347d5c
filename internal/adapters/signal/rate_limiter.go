package signal

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/dkeye/FrameRelay/internal/domain"
)

// ChunkLimiter is a token bucket per session. A nil limiter allows everything.
type ChunkLimiter struct {
	mu       sync.Mutex
	limiters map[domain.SessionID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewChunkLimiter returns nil when perSecond is not positive.
func NewChunkLimiter(perSecond float64, burst int) *ChunkLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &ChunkLimiter{
		limiters: make(map[domain.SessionID]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (rl *ChunkLimiter) Allow(sid domain.SessionID) bool {
	if rl == nil {
		return true
	}
	rl.mu.Lock()
	l, ok := rl.limiters[sid]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[sid] = l
	}
	rl.mu.Unlock()
	return l.Allow()
}

func (rl *ChunkLimiter) Forget(sid domain.SessionID) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	delete(rl.limiters, sid)
	rl.mu.Unlock()
}
