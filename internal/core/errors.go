package core

import (
	"errors"
	"fmt"

	"github.com/dkeye/FrameRelay/internal/domain"
)

var (
	ErrBackpressure  = errors.New("backpressure")
	ErrClosed        = errors.New("closed")
	ErrEmptyPayload  = errors.New("empty payload")
	ErrMissingSource = errors.New("missing source id")
	ErrMissingCamera = errors.New("missing camera id")
	ErrBadEncoding   = errors.New("malformed base64")
	ErrNoSession     = errors.New("no such session")
)

// ValidationError rejects empty or malformed input at a boundary.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %v", e.Err)
	}
	return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DecodeError means a chunk payload could not be reconstructed.
// The message is dropped; the session stays open.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode chunk: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// OversizedItemError is returned when a single envelope exceeds the batch budget.
type OversizedItemError struct {
	Key  string
	Size int
	Max  int
}

func (e *OversizedItemError) Error() string {
	return fmt.Sprintf("item for %q is %d bytes, batch limit is %d", e.Key, e.Size, e.Max)
}

// PublishError means the sink rejected a flush after all retries.
// Items is the number of envelopes in the discarded batch.
type PublishError struct {
	Key      string
	Items    int
	Attempts int
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %q: %d items after %d attempts: %v", e.Key, e.Items, e.Attempts, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// PeerDeliveryError records a failed send to one peer during a broadcast.
type PeerDeliveryError struct {
	Peer    domain.SessionID
	Session MemberSession
	Err     error
}

func (e *PeerDeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.Peer, e.Err)
}

func (e *PeerDeliveryError) Unwrap() error { return e.Err }
