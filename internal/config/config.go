package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/FrameRelay/internal/adapters/sink/kafka"
	"github.com/dkeye/FrameRelay/internal/app/publisher"
)

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Relay     RelayConfig      `mapstructure:"relay"`
	Publisher publisher.Config `mapstructure:"publisher"`
	Sink      SinkConfig       `mapstructure:"sink"`
	LogLevel  string           `mapstructure:"log_level"`
}

type ServerConfig struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	Secret       string        `mapstructure:"secret"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	DefaultGroup string        `mapstructure:"default_group"`
}

type RelayConfig struct {
	ValidateSDP bool    `mapstructure:"validate_sdp"`
	PeerPolicy  string  `mapstructure:"peer_policy"`
	ChunkRate   float64 `mapstructure:"chunk_rate"`
	ChunkBurst  int     `mapstructure:"chunk_burst"`
}

type SinkConfig struct {
	Kind  string      `mapstructure:"kind"`
	Redis RedisConfig `mapstructure:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	StreamPrefix string `mapstructure:"stream_prefix"`
	MaxLen       int64  `mapstructure:"max_len"`
}

type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	Topic           string   `mapstructure:"topic"`
	ClientID        string   `mapstructure:"client_id"`
	TransactionalID string   `mapstructure:"transactional_id"`
	Producers       int      `mapstructure:"producers"`
	// MaxMessageBytes is the broker's max.message.bytes. Zero derives it
	// from publisher.max_batch_bytes.
	MaxMessageBytes int32 `mapstructure:"max_message_bytes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_limit", 1<<20+4096)
	v.SetDefault("server.ping_period", "54s")
	v.SetDefault("server.secret", "change-me")
	v.SetDefault("server.send_buffer", 64)
	v.SetDefault("server.default_group", "main")

	v.SetDefault("relay.validate_sdp", false)
	v.SetDefault("relay.peer_policy", "drop")
	v.SetDefault("relay.chunk_rate", 60)
	v.SetDefault("relay.chunk_burst", 30)

	v.SetDefault("publisher.max_batch_bytes", publisher.DefaultMaxBatchBytes)
	v.SetDefault("publisher.flush_interval", publisher.DefaultFlushInterval)
	v.SetDefault("publisher.max_retries", publisher.DefaultMaxRetries)
	v.SetDefault("publisher.retry_backoff", publisher.DefaultRetryBackoff)
	v.SetDefault("publisher.retry_backoff_max", publisher.DefaultRetryBackoffMax)
	v.SetDefault("publisher.backpressure", string(publisher.BackpressureBlock))
	v.SetDefault("publisher.acquire_timeout", publisher.DefaultAcquireTimeout)
	v.SetDefault("publisher.flush_timeout", publisher.DefaultFlushTimeout)
	v.SetDefault("publisher.flush_concurrency", publisher.DefaultFlushConcurrency)
	v.SetDefault("publisher.idle_ttl", publisher.DefaultIdleTTL)

	v.SetDefault("sink.kind", "log")
	v.SetDefault("sink.redis.addr", "localhost:6379")
	v.SetDefault("sink.redis.password", "")
	v.SetDefault("sink.redis.db", 0)
	v.SetDefault("sink.redis.stream_prefix", "frames:")
	v.SetDefault("sink.redis.max_len", 10000)
	v.SetDefault("sink.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("sink.kafka.topic", "video-frames")
	v.SetDefault("sink.kafka.client_id", "framerelay")
	v.SetDefault("sink.kafka.transactional_id", "")
	v.SetDefault("sink.kafka.producers", kafka.DefaultProducers)
	v.SetDefault("sink.kafka.max_message_bytes", 0)

	v.SetDefault("log_level", "info")
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of the defaults.
// RELAY_* environment variables override both, e.g. RELAY_SINK_KIND.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Server.Mode).Int("port", cfg.Server.Port).Str("sink", cfg.Sink.Kind).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Sink.Kind {
	case "log", "redis", "kafka":
	default:
		return fmt.Errorf("unknown sink kind %q", c.Sink.Kind)
	}
	switch c.Publisher.Backpressure {
	case publisher.BackpressureBlock, publisher.BackpressureFailFast:
	default:
		return fmt.Errorf("unknown backpressure policy %q", c.Publisher.Backpressure)
	}
	if c.Sink.Kind == "kafka" {
		if len(c.Sink.Kafka.Brokers) == 0 {
			return fmt.Errorf("sink.kafka.brokers must not be empty")
		}
		// A batch is one transaction but every item must fit in one record.
		need := kafka.MessageBytesFor(c.Publisher.MaxBatchBytes)
		if limit := c.Sink.Kafka.MaxMessageBytes; limit > 0 && limit < need {
			return fmt.Errorf("publisher.max_batch_bytes %d needs sink.kafka.max_message_bytes >= %d, got %d",
				c.Publisher.MaxBatchBytes, need, limit)
		}
	}
	return nil
}

// KafkaMessageBytes is the producer batch limit the kafka sink runs with.
func (c *Config) KafkaMessageBytes() int32 {
	if c.Sink.Kafka.MaxMessageBytes > 0 {
		return c.Sink.Kafka.MaxMessageBytes
	}
	maxBatch := c.Publisher.MaxBatchBytes
	if maxBatch <= 0 {
		maxBatch = publisher.DefaultMaxBatchBytes
	}
	return kafka.MessageBytesFor(maxBatch)
}
