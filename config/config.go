package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MESHMOCK_SERVER_GRPC_ADDR.
const EnvPrefix = "MESHMOCK"

// Store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Messaging drivers
const (
	DriverNone   = "none"
	DriverKafka  = "kafka"
	DriverSarama = "sarama"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		GRPCAddr  string `mapstructure:"grpc_addr"`
		HTTPAddr  string `mapstructure:"http_addr"`
		LogLevel  string `mapstructure:"log_level"`
		LogFormat string `mapstructure:"log_format"`
	} `mapstructure:"server"`

	Store struct {
		Backend  string `mapstructure:"backend"`
		Fixtures string `mapstructure:"fixtures"`
	} `mapstructure:"store"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		Prefix   string `mapstructure:"prefix"`
	} `mapstructure:"redis"`

	Messaging struct {
		Driver     string `mapstructure:"driver"`
		BrokerAddr string `mapstructure:"broker_addr"`
		Topic      string `mapstructure:"topic"`
		// Consume logs every event read back from the topic.
		Consume bool   `mapstructure:"consume"`
		GroupID string `mapstructure:"group_id"`
	} `mapstructure:"messaging"`

	Query struct {
		DefaultLimit int           `mapstructure:"default_limit"`
		MaxLimit     int           `mapstructure:"max_limit"`
		Timeout      time.Duration `mapstructure:"timeout"`
	} `mapstructure:"query"`

	Stats StatsConfig `mapstructure:"stats"`

	OTel struct {
		Enabled     bool   `mapstructure:"enabled"`
		Endpoint    string `mapstructure:"endpoint"`
		ServiceName string `mapstructure:"service_name"`
	} `mapstructure:"otel"`
}

// StatsConfig holds the static node metadata reported by stats.
type StatsConfig struct {
	Version                        string `mapstructure:"version"`
	PubSubTopic                    string `mapstructure:"pub_sub_topic"`
	Rendezvous                     string `mapstructure:"rendezvous"`
	PeerID                         string `mapstructure:"peer_id"`
	EthereumChainID                int64  `mapstructure:"ethereum_chain_id"`
	LatestBlockNumber              string `mapstructure:"latest_block_number"`
	LatestBlockHash                string `mapstructure:"latest_block_hash"`
	NumPeers                       int    `mapstructure:"num_peers"`
	MaxExpirationTime              string `mapstructure:"max_expiration_time"`
	EthRPCRequestsSent             int    `mapstructure:"eth_rpc_requests_sent"`
	EthRPCRateLimitExpiredRequests int    `mapstructure:"eth_rpc_rate_limit_expired_requests"`
}

var configFile = flag.String("config", "", "Path to config file (YAML)")

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_addr", ":50051")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "pretty")

	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("store.fixtures", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "meshmock")

	v.SetDefault("messaging.driver", DriverNone)
	v.SetDefault("messaging.broker_addr", "localhost:9092")
	v.SetDefault("messaging.topic", "meshmock-order-events")
	v.SetDefault("messaging.consume", false)
	v.SetDefault("messaging.group_id", "meshmock-event-logger")

	v.SetDefault("query.default_limit", 20)
	v.SetDefault("query.max_limit", 1000)
	v.SetDefault("query.timeout", 5*time.Second)

	v.SetDefault("stats.version", "development")
	v.SetDefault("stats.pub_sub_topic", "/0x-orders/version/3/chain/1337/schema/e30=")
	v.SetDefault("stats.rendezvous", "/0x-mesh/network/1337/version/2")
	v.SetDefault("stats.peer_id", "16Uiu2HAmGd949LwaV4KNvK2WDSiMVy7xEmW983VH75CMmefmMpP7")
	v.SetDefault("stats.ethereum_chain_id", 1337)
	v.SetDefault("stats.latest_block_number", "1")
	v.SetDefault("stats.latest_block_hash", "0x1b2b0b3e3ad4ed8d5fbf1f6b8bd97be6a0f4ab1b4d9ce4a2ae1c7be3f5f4a5b6")
	v.SetDefault("stats.num_peers", 0)
	v.SetDefault("stats.max_expiration_time", "115792089237316195423570985008687907853269984665640564039457584007913129639935")
	v.SetDefault("stats.eth_rpc_requests_sent", 0)
	v.SetDefault("stats.eth_rpc_rate_limit_expired_requests", 0)

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "localhost:4317")
	v.SetDefault("otel.service_name", "meshmock")
}

// LoadConfig parses command line flags and loads the configuration from the
// -config file, if given.
func LoadConfig() (*Config, error) {
	if !flag.Parsed() {
		flag.Parse()
	}
	return Load(*configFile)
}

// Load builds a Config from defaults, the YAML file at path (optional) and
// MESHMOCK_* environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", StoreMemory, StoreRedis, c.Store.Backend)
	}
	switch c.Messaging.Driver {
	case DriverNone, DriverKafka, DriverSarama:
	default:
		return fmt.Errorf("messaging.driver must be one of none, kafka, sarama, got %q", c.Messaging.Driver)
	}
	if c.Messaging.Driver != DriverNone && c.Messaging.BrokerAddr == "" {
		return fmt.Errorf("messaging.broker_addr must not be empty")
	}
	if c.Query.DefaultLimit <= 0 {
		return fmt.Errorf("query.default_limit must be positive")
	}
	if c.Query.MaxLimit < c.Query.DefaultLimit {
		return fmt.Errorf("query.max_limit must be at least query.default_limit")
	}
	if c.Query.Timeout <= 0 {
		return fmt.Errorf("query.timeout must be positive")
	}
	return nil
}
