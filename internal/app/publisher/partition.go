package publisher

import "time"

// batch is the open, ordered set of envelope payloads for one key.
type batch struct {
	items    [][]byte
	size     int
	openedAt time.Time
}

func (b *batch) empty() bool { return len(b.items) == 0 }

func (b *batch) add(payload []byte, now time.Time) {
	if b.empty() {
		b.openedAt = now
	}
	b.items = append(b.items, payload)
	b.size += len(payload)
}

// partition fields other than key and sem are guarded by sem.
type partition struct {
	key string
	sem chan struct{}

	batch    batch
	lastUsed time.Time
	retired  bool
}

func newPartition(key string, now time.Time) *partition {
	return &partition{
		key:      key,
		sem:      make(chan struct{}, 1),
		lastUsed: now,
	}
}

func (p *partition) tryAcquire() bool {
	select {
	case p.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (p *partition) release() { <-p.sem }
