package publisher

import "time"

type Backpressure string

const (
	// BackpressureBlock waits up to AcquireTimeout for a busy partition.
	BackpressureBlock Backpressure = "block"
	// BackpressureFailFast rejects immediately; suits live video where a
	// fresh frame is worth more than a late one.
	BackpressureFailFast Backpressure = "failfast"
)

// Defaults. 1 MiB matches the usual event hub / kafka request ceiling.
const (
	DefaultMaxBatchBytes    = 1 << 20
	DefaultFlushInterval    = time.Second
	DefaultMaxRetries       = 3
	DefaultRetryBackoff     = 100 * time.Millisecond
	DefaultRetryBackoffMax  = 2 * time.Second
	DefaultAcquireTimeout   = 2 * time.Second
	DefaultFlushTimeout     = 10 * time.Second
	DefaultFlushConcurrency = 8
	DefaultIdleTTL          = time.Minute
)

type Config struct {
	MaxBatchBytes    int           `mapstructure:"max_batch_bytes"`
	FlushInterval    time.Duration `mapstructure:"flush_interval"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	RetryBackoffMax  time.Duration `mapstructure:"retry_backoff_max"`
	Backpressure     Backpressure  `mapstructure:"backpressure"`
	AcquireTimeout   time.Duration `mapstructure:"acquire_timeout"`
	FlushTimeout     time.Duration `mapstructure:"flush_timeout"`
	FlushConcurrency int           `mapstructure:"flush_concurrency"`
	IdleTTL          time.Duration `mapstructure:"idle_ttl"`
}

func (c Config) withDefaults() Config {
	if c.MaxBatchBytes <= 0 {
		c.MaxBatchBytes = DefaultMaxBatchBytes
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.RetryBackoffMax < c.RetryBackoff {
		c.RetryBackoffMax = max(DefaultRetryBackoffMax, c.RetryBackoff)
	}
	if c.Backpressure != BackpressureFailFast {
		c.Backpressure = BackpressureBlock
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = DefaultFlushTimeout
	}
	if c.FlushConcurrency <= 0 {
		c.FlushConcurrency = DefaultFlushConcurrency
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = DefaultIdleTTL
	}
	return c
}
