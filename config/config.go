// Package config loads the node configuration from YAML, then lets
// POOLBOOK_* environment variables override deployment settings.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"poolbook/domain/orderbook"
	"poolbook/domain/pool"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	LogLevel      string        `yaml:"log_level"`
	DataDir       string        `yaml:"data_dir"`
	RoundInterval time.Duration `yaml:"round_interval"`
	// CheckpointInterval controls how often the journal is checkpointed
	// and truncated.
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
	// Strategy is the default sort strategy for pools that name none.
	Strategy string `yaml:"strategy"`

	Store struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"store"`

	Kafka struct {
		Brokers     []string `yaml:"brokers"`
		OrdersTopic string   `yaml:"orders_topic"`
		RoundsTopic string   `yaml:"rounds_topic"`
		AuditTopic  string   `yaml:"audit_topic"`
		GroupID     string   `yaml:"group_id"`
	} `yaml:"kafka"`

	GRPC struct {
		Addr string `yaml:"addr"`
	} `yaml:"grpc"`

	Telemetry struct {
		Addr string `yaml:"addr"`
	} `yaml:"telemetry"`

	Pools []Pool `yaml:"pools"`
}

// Pool is one pool's definition, including the AMM state used when no
// chain reader is wired.
type Pool struct {
	ID           string  `yaml:"id"`
	Strategy     string  `yaml:"strategy"`
	SqrtPriceX96 string  `yaml:"sqrt_price_x96"`
	Ranges       []Range `yaml:"ranges"`
}

type Range struct {
	Lower     int32  `yaml:"lower"`
	Upper     int32  `yaml:"upper"`
	Liquidity string `yaml:"liquidity"`
}

func Default() *Config {
	cfg := &Config{
		LogLevel:           "info",
		DataDir:            "./data",
		RoundInterval:      2 * time.Second,
		CheckpointInterval: time.Minute,
		Strategy:           orderbook.DefaultSortStrategy.String(),
	}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DSN = "./data/orders.db"
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.OrdersTopic = "pool-orders"
	cfg.Kafka.RoundsTopic = "pool-rounds"
	cfg.Kafka.AuditTopic = "pool-rounds-audit"
	cfg.Kafka.GroupID = "poolbook"
	cfg.GRPC.Addr = ":50051"
	cfg.Telemetry.Addr = ":8080"
	return cfg
}

// Load reads path over the defaults, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := overrideWithEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideWithEnv(cfg *Config) error {
	var err error
	if cfg.LogLevel, err = GetEnv("POOLBOOK_LOG_LEVEL", cfg.LogLevel); err != nil {
		return err
	}
	if cfg.DataDir, err = GetEnv("POOLBOOK_DATA_DIR", cfg.DataDir); err != nil {
		return err
	}
	if cfg.RoundInterval, err = GetEnv("POOLBOOK_ROUND_INTERVAL", cfg.RoundInterval); err != nil {
		return err
	}
	if cfg.Store.Driver, err = GetEnv("POOLBOOK_STORE_DRIVER", cfg.Store.Driver); err != nil {
		return err
	}
	if cfg.Store.DSN, err = GetEnv("POOLBOOK_STORE_DSN", cfg.Store.DSN); err != nil {
		return err
	}
	if cfg.GRPC.Addr, err = GetEnv("POOLBOOK_GRPC_ADDR", cfg.GRPC.Addr); err != nil {
		return err
	}
	if cfg.Telemetry.Addr, err = GetEnv("POOLBOOK_TELEMETRY_ADDR", cfg.Telemetry.Addr); err != nil {
		return err
	}

	brokers, err := GetEnv("POOLBOOK_KAFKA_BROKERS", "")
	if err != nil {
		return err
	}
	if brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	return nil
}

// Validate checks syntax only. Range geometry is checked when a pool's
// snapshot is built, so a bad pool aborts its rounds, not the node.
func (c *Config) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if _, err := orderbook.ParseSortStrategy(c.Strategy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.RoundInterval <= 0 {
		return fmt.Errorf("%w: round_interval must be positive", ErrInvalid)
	}
	if c.CheckpointInterval <= 0 {
		return fmt.Errorf("%w: checkpoint_interval must be positive", ErrInvalid)
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalid, c.Store.Driver)
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("%w: at least one kafka broker is required", ErrInvalid)
	}

	seen := make(map[pool.ID]bool, len(c.Pools))
	for i, p := range c.Pools {
		id, err := p.PoolID()
		if err != nil {
			return fmt.Errorf("%w: pools[%d]: %v", ErrInvalid, i, err)
		}
		if seen[id] {
			return fmt.Errorf("%w: pools[%d]: duplicate id %s", ErrInvalid, i, id)
		}
		seen[id] = true

		if _, err := c.StrategyFor(p); err != nil {
			return fmt.Errorf("%w: pools[%d]: %v", ErrInvalid, i, err)
		}
		if p.SqrtPriceX96 != "" {
			if _, err := uint256.FromDecimal(p.SqrtPriceX96); err != nil {
				return fmt.Errorf("%w: pools[%d]: sqrt_price_x96: %v", ErrInvalid, i, err)
			}
		}
		for j, r := range p.Ranges {
			if _, err := uint256.FromDecimal(r.Liquidity); err != nil {
				return fmt.Errorf("%w: pools[%d].ranges[%d]: liquidity: %v", ErrInvalid, i, j, err)
			}
		}
	}
	return nil
}

func (p Pool) PoolID() (pool.ID, error) {
	return pool.ParseID(p.ID)
}

// StrategyFor returns the pool's strategy, falling back to the node default.
func (c *Config) StrategyFor(p Pool) (orderbook.SortStrategy, error) {
	name := p.Strategy
	if name == "" {
		name = c.Strategy
	}
	return orderbook.ParseSortStrategy(name)
}

// PoolStrategies maps every configured pool to its resolved sort strategy.
func (c *Config) PoolStrategies() (map[pool.ID]orderbook.SortStrategy, error) {
	out := make(map[pool.ID]orderbook.SortStrategy, len(c.Pools))
	for i, p := range c.Pools {
		id, err := p.PoolID()
		if err != nil {
			return nil, fmt.Errorf("%w: pools[%d]: %v", ErrInvalid, i, err)
		}
		s, err := c.StrategyFor(p)
		if err != nil {
			return nil, fmt.Errorf("%w: pools[%d]: %v", ErrInvalid, i, err)
		}
		out[id] = s
	}
	return out, nil
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	return l, nil
}
