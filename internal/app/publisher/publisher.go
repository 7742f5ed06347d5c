// Package publisher batches frame envelopes per partition key and flushes
// them to a core.Sink.
//
// Each partition key owns a one-slot semaphore. Whoever holds it may append to
// the partition's open batch or flush it, so appends are FIFO and at most one
// flush per key is ever outstanding. Partitions never share a lock: a key whose
// sink lane is slow only backs up its own publishers.
package publisher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/dkeye/FrameRelay/internal/codec"
	"github.com/dkeye/FrameRelay/internal/core"
	"github.com/dkeye/FrameRelay/internal/observe"
)

// observeFlushSeconds is swapped in tests.
var observeFlushSeconds = observe.ObserveFlushSeconds

// ErrorHandler receives PublishErrors from flushes no caller is waiting on
// (timer and shutdown flushes).
type ErrorHandler func(error)

type Option func(*Publisher)

func WithErrorHandler(h ErrorHandler) Option {
	return func(p *Publisher) { p.onError = h }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

type Publisher struct {
	cfg     Config
	sink    core.Sink
	onError ErrorHandler
	now     func() time.Time
	logger  zerolog.Logger

	mu     sync.Mutex
	parts  map[string]*partition
	closed atomic.Bool
}

func New(sink core.Sink, cfg Config, opts ...Option) *Publisher {
	p := &Publisher{
		cfg:    cfg.withDefaults(),
		sink:   sink,
		now:    time.Now,
		logger: log.With().Str("module", "publisher").Logger(),
		parts:  make(map[string]*partition),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Config() Config { return p.cfg }

// Publish appends env to the open batch of its partition. If the append would
// push the batch past MaxBatchBytes, the open batch is flushed first and the
// caller waits for it. A *core.PublishError from that flush means both the
// flushed batch and env were dropped.
func (p *Publisher) Publish(ctx context.Context, env codec.Envelope) error {
	size := env.Size()
	if size == 0 {
		return &core.ValidationError{Field: "envelope", Err: core.ErrEmptyPayload}
	}
	if size > p.cfg.MaxBatchBytes {
		observe.IncChunk("oversized")
		return &core.OversizedItemError{Key: env.Key(), Size: size, Max: p.cfg.MaxBatchBytes}
	}

	part, err := p.acquirePartition(ctx, env.Key())
	if err != nil {
		if errors.Is(err, core.ErrBackpressure) {
			observe.IncChunk("backpressure")
		}
		return err
	}
	defer part.release()

	if part.batch.size+size > p.cfg.MaxBatchBytes {
		if err := p.flushHeld(ctx, part); err != nil {
			observe.IncChunk("publish_error")
			return err
		}
	}
	part.batch.add(env.Bytes(), p.now())
	part.lastUsed = p.now()
	observe.IncChunk("accepted")
	return nil
}

// acquirePartition returns the live partition for key with its semaphore held.
func (p *Publisher) acquirePartition(ctx context.Context, key string) (*partition, error) {
	for {
		if p.closed.Load() {
			return nil, core.ErrClosed
		}
		part := p.partitionFor(key)
		if err := p.acquire(ctx, part); err != nil {
			return nil, err
		}
		if part.retired {
			part.release()
			continue
		}
		if p.closed.Load() {
			part.release()
			return nil, core.ErrClosed
		}
		return part, nil
	}
}

func (p *Publisher) partitionFor(key string) *partition {
	p.mu.Lock()
	defer p.mu.Unlock()
	part, ok := p.parts[key]
	if !ok {
		part = newPartition(key, p.now())
		p.parts[key] = part
		observe.SetOpenPartitions(len(p.parts))
	}
	return part
}

func (p *Publisher) acquire(ctx context.Context, part *partition) error {
	if part.tryAcquire() {
		return nil
	}
	if p.cfg.Backpressure == BackpressureFailFast {
		return core.ErrBackpressure
	}
	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()
	select {
	case part.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return core.ErrBackpressure
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush sends the open batch for key, waiting for the partition if needed.
func (p *Publisher) Flush(ctx context.Context, key string) error {
	p.mu.Lock()
	part, ok := p.parts[key]
	p.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case part.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer part.release()
	return p.flushHeld(ctx, part)
}

// FlushAll flushes every partition concurrently and joins their errors.
func (p *Publisher) FlushAll(ctx context.Context) error {
	parts := p.partitions()
	wp := pool.New().WithMaxGoroutines(p.cfg.FlushConcurrency).WithErrors()
	for _, part := range parts {
		wp.Go(func() error {
			return p.Flush(ctx, part.key)
		})
	}
	return wp.Wait()
}

func (p *Publisher) partitions() []*partition {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*partition, 0, len(p.parts))
	for _, part := range p.parts {
		out = append(out, part)
	}
	return out
}

// Partitions reports how many partition keys are currently tracked.
func (p *Publisher) Partitions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.parts)
}

// flushHeld hands the open batch to the sink. The caller must hold part.sem.
// The batch is cleared whatever the outcome; a failed batch is reported, not
// kept, so a dead sink cannot pin stale frames in memory.
func (p *Publisher) flushHeld(ctx context.Context, part *partition) error {
	if part.batch.empty() {
		return nil
	}
	items, size := part.batch.items, part.batch.size
	part.batch = batch{}

	// Detached from the caller: a session going away must not abort a flush
	// that carries other sessions' frames.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.FlushTimeout)
	defer cancel()

	start := p.now()
	attempts, err := p.send(fctx, part.key, items)
	observeFlushSeconds(p.now().Sub(start).Seconds())
	if err != nil {
		observe.IncBatch("failed")
		perr := &core.PublishError{Key: part.key, Items: len(items), Attempts: attempts, Err: err}
		p.logger.Error().Err(err).Str("key", part.key).Int("items", len(items)).Int("attempts", attempts).Msg("batch dropped")
		return perr
	}
	observe.IncBatch("ok")
	observe.ObserveBatchBytes(size)
	p.logger.Debug().Str("key", part.key).Int("items", len(items)).Int("bytes", size).Msg("batch flushed")
	return nil
}

func (p *Publisher) send(ctx context.Context, key string, items [][]byte) (int, error) {
	backoff := p.cfg.RetryBackoff
	for attempt := 1; ; attempt++ {
		err := p.sink.SendBatch(ctx, key, items)
		if err == nil {
			return attempt, nil
		}
		if attempt > p.cfg.MaxRetries || ctx.Err() != nil {
			return attempt, err
		}
		observe.IncFlushRetry()
		p.logger.Warn().Err(err).Str("key", key).Int("attempt", attempt).Dur("backoff", backoff).Msg("flush failed, retrying")
		if err := sleepCtx(ctx, backoff); err != nil {
			return attempt, err
		}
		backoff = min(backoff*2, p.cfg.RetryBackoffMax)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run flushes batches older than FlushInterval and retires idle partitions
// until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()
	p.logger.Info().Dur("interval", p.cfg.FlushInterval).Msg("flush loop started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("flush loop stopped")
			return
		case <-ticker.C:
			p.flushDue(ctx)
		}
	}
}

func (p *Publisher) flushDue(ctx context.Context) {
	now := p.now()
	wp := pool.New().WithMaxGoroutines(p.cfg.FlushConcurrency)
	for _, part := range p.partitions() {
		wp.Go(func() {
			// Busy partitions are being appended to or flushed already.
			if !part.tryAcquire() {
				return
			}
			defer part.release()
			switch {
			case !part.batch.empty() && now.Sub(part.batch.openedAt) >= p.cfg.FlushInterval:
				if err := p.flushHeld(ctx, part); err != nil {
					p.report(err)
				}
			case part.batch.empty() && now.Sub(part.lastUsed) >= p.cfg.IdleTTL:
				p.retire(part)
			}
		})
	}
	wp.Wait()
}

// retire drops an idle, empty partition. The caller must hold part.sem;
// publishers that still hold a pointer to it see retired and look it up again.
func (p *Publisher) retire(part *partition) {
	part.retired = true
	p.mu.Lock()
	if p.parts[part.key] == part {
		delete(p.parts, part.key)
	}
	n := len(p.parts)
	p.mu.Unlock()
	observe.SetOpenPartitions(n)
	p.logger.Debug().Str("key", part.key).Msg("partition retired")
}

func (p *Publisher) report(err error) {
	if p.onError != nil {
		p.onError(err)
	}
}

// Close rejects further publishes and flushes what is buffered.
func (p *Publisher) Close(ctx context.Context) error {
	if p.closed.Swap(true) {
		return nil
	}
	err := p.FlushAll(ctx)
	if err != nil {
		p.report(err)
	}
	p.logger.Info().Err(err).Msg("publisher closed")
	return err
}
