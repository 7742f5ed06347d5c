package core

import "context"

//go:generate mockgen -source=sink_iface.go -destination=mocks/mock_sink.go -package=mocks

// Sink is the downstream durable stream.
// SendBatch must deliver all payloads or none, and must route every call with
// the same partitionKey to the same ordered lane.
type Sink interface {
	SendBatch(ctx context.Context, partitionKey string, payloads [][]byte) error
	Close() error
}
