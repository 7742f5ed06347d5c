// Package kafka produces frame batches to a Kafka topic keyed by partition
// key. Each batch is written inside one producer transaction, so consumers
// reading with isolation.level=read_committed see all of it or none of it.
// Endpoints without transaction support (Event Hubs) cannot be used.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	// MaxKeyBytes bounds partition keys so the record size stays predictable.
	MaxKeyBytes = 256
	// batchOverhead covers the v2 record batch header and the framing of
	// one record around its key and value.
	batchOverhead = 128

	DefaultProducers = 4
)

var (
	ErrKeyTooLong      = errors.New("partition key too long")
	ErrRecordTooLarge  = errors.New("record exceeds max message bytes")
	errNoTransactionID = errors.New("transactional id must not be empty")
)

// MessageBytesFor is the record batch limit needed to carry any single
// payload of up to maxPayload bytes with a key of up to MaxKeyBytes.
func MessageBytesFor(maxPayload int) int32 {
	return int32(maxPayload + MaxKeyBytes + batchOverhead)
}

type Options struct {
	Brokers  []string
	Topic    string
	ClientID string
	// TransactionalID prefixes the per-producer transactional ids. It must
	// be stable for an instance and unique across instances.
	TransactionalID string
	// Producers is the number of transactional clients. Batches for one key
	// always use the same client.
	Producers int
	// MaxMessageBytes becomes kgo.ProducerBatchMaxBytes. The broker or topic
	// max.message.bytes must be at least this large.
	MaxMessageBytes int32
}

type producer struct {
	mu   sync.Mutex
	cl   *kgo.Client
	txID string
}

type Sink struct {
	producers []*producer
	topic     string
	maxBytes  int32
}

func New(o Options) (*Sink, error) {
	ids, err := transactionalIDs(o)
	if err != nil {
		return nil, err
	}
	s := &Sink{topic: o.Topic, maxBytes: o.MaxMessageBytes}
	for _, id := range ids {
		opts := []kgo.Opt{
			kgo.SeedBrokers(o.Brokers...),
			kgo.DefaultProduceTopic(o.Topic),
			kgo.ClientID(o.ClientID),
			kgo.TransactionalID(id),
		}
		if o.MaxMessageBytes > 0 {
			opts = append(opts, kgo.ProducerBatchMaxBytes(o.MaxMessageBytes))
		}
		cl, err := kgo.NewClient(opts...)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("kafka client %s: %w", id, err)
		}
		s.producers = append(s.producers, &producer{cl: cl, txID: id})
	}
	log.Info().Str("module", "sink.kafka").Str("topic", o.Topic).Int("producers", len(ids)).Int32("max_message_bytes", o.MaxMessageBytes).Msg("transactional producers ready")
	return s, nil
}

func transactionalIDs(o Options) ([]string, error) {
	prefix := o.TransactionalID
	if prefix == "" {
		host, _ := os.Hostname()
		if o.ClientID != "" && host != "" {
			prefix = o.ClientID + "-" + host
		}
	}
	if prefix == "" {
		return nil, errNoTransactionID
	}
	n := o.Producers
	if n <= 0 {
		n = DefaultProducers
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return ids, nil
}

func (s *Sink) pick(key string) *producer {
	return s.producers[xxhash.Sum64String(key)%uint64(len(s.producers))]
}

// SendBatch produces the payloads in order inside one transaction. Every
// record carries the same key, so the default partitioner keeps them on one
// ordered partition. On any failure the transaction is aborted.
func (s *Sink) SendBatch(ctx context.Context, partitionKey string, payloads [][]byte) error {
	if len(payloads) == 0 {
		return nil
	}
	if err := s.checkSizes(partitionKey, payloads); err != nil {
		return err
	}

	p := s.pick(partitionKey)
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.cl.BeginTransaction(); err != nil {
		return fmt.Errorf("begin transaction %s: %w", p.txID, err)
	}
	if err := p.cl.ProduceSync(ctx, records(s.topic, partitionKey, payloads)...).FirstErr(); err != nil {
		perr := fmt.Errorf("produce %s/%s: %w", s.topic, partitionKey, err)
		if aerr := p.cl.EndTransaction(ctx, kgo.TryAbort); aerr != nil {
			return errors.Join(perr, fmt.Errorf("abort transaction %s: %w", p.txID, aerr))
		}
		return perr
	}
	if err := p.cl.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return fmt.Errorf("commit transaction %s: %w", p.txID, err)
	}
	log.Debug().Str("module", "sink.kafka").Str("key", partitionKey).Str("txn", p.txID).Int("items", len(payloads)).Msg("batch committed")
	return nil
}

// checkSizes rejects what the producer would refuse before a transaction
// is opened, so an oversized record never leaves half a batch behind.
func (s *Sink) checkSizes(key string, payloads [][]byte) error {
	if len(key) > MaxKeyBytes {
		return fmt.Errorf("%w: %d > %d", ErrKeyTooLong, len(key), MaxKeyBytes)
	}
	if s.maxBytes <= 0 {
		return nil
	}
	for i, p := range payloads {
		if size := len(key) + len(p) + batchOverhead; size > int(s.maxBytes) {
			return fmt.Errorf("%w: item %d is %d bytes, limit %d", ErrRecordTooLarge, i, size, s.maxBytes)
		}
	}
	return nil
}

func records(topic, key string, payloads [][]byte) []*kgo.Record {
	k := []byte(key)
	out := make([]*kgo.Record, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, &kgo.Record{Topic: topic, Key: k, Value: p})
	}
	return out
}

func (s *Sink) Close() error {
	for _, p := range s.producers {
		p.cl.Close()
	}
	return nil
}
