package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"CryptoArchive/pkg/util"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		RateLimit       struct {
			Capacity     float64 `yaml:"capacity" default:"30"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"5"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool `yaml:"enabled" default:"true"`
	} `yaml:"metrics"`
	Storage struct {
		Driver       string        `yaml:"driver" default:"sqlite"`
		PriceArchive string        `yaml:"price_archive"`
		QueryTimeout time.Duration `yaml:"query_timeout" default:"5s"`
		Postgres     struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"5432"`
			Database string `yaml:"database" default:"archive"`
			User     string `yaml:"user" default:"postgres"`
			Password string `yaml:"password"`
			SSLMode  string `yaml:"ssl_mode" default:"disable"`
			MaxConns int32  `yaml:"max_conns" default:"10"`
		} `yaml:"postgres"`
		SQLite struct {
			Path string `yaml:"path" default:"archive.db"`
		} `yaml:"sqlite"`
	} `yaml:"storage"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"archive"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		Compress         bool          `yaml:"compress" default:"true"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Topics       struct {
			Prices          string `yaml:"prices" default:"archive.prices"`
			Recommendations string `yaml:"recommendations" default:"archive.recommendations"`
			Verdicts        string `yaml:"verdicts" default:"archive.verdicts"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"100ms"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"crypto-archive"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"archive.dlq"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Ingest struct {
		Mode string `yaml:"mode" default:"direct"`
	} `yaml:"ingest"`
	Cache struct {
		Enabled    bool          `yaml:"enabled" default:"true"`
		TTL        time.Duration `yaml:"ttl" default:"60s"`
		MemorySize int           `yaml:"memory_size" default:"512"`
		Cleanup    time.Duration `yaml:"cleanup" default:"1m"`
		Redis      struct {
			Enabled     bool          `yaml:"enabled"`
			Addr        string        `yaml:"addr" default:"localhost:6379"`
			Password    string        `yaml:"password"`
			DB          int           `yaml:"db"`
			PoolSize    int           `yaml:"pool_size" default:"10"`
			DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
			Prefix      string        `yaml:"prefix" default:"archive"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	CoinMarketCap struct {
		BaseURL        string        `yaml:"base_url" default:"https://api.coinmarketcap.com/data-api/v3"`
		ListingLimit   int           `yaml:"listing_limit" default:"300"`
		DominanceLimit int           `yaml:"dominance_limit" default:"100"`
		Timeout        time.Duration `yaml:"timeout" default:"15s"`
		Retries        int           `yaml:"retries" default:"2"`
		RetryBackoff   time.Duration `yaml:"retry_backoff" default:"1s"`
		Symbols        []string      `yaml:"symbols"`
	} `yaml:"coinmarketcap"`
	Grading struct {
		BatchSize           int           `yaml:"batch_size" default:"200"`
		IssuePriceTolerance time.Duration `yaml:"issue_price_tolerance" default:"36h"`
		QuoteFreshness      time.Duration `yaml:"quote_freshness" default:"6h"`
	} `yaml:"grading"`
	Scheduler struct {
		Enabled          bool          `yaml:"enabled"`
		SnapshotInterval time.Duration `yaml:"snapshot_interval" default:"24h"`
		GradeInterval    time.Duration `yaml:"grade_interval" default:"6h"`
		JobTimeout       time.Duration `yaml:"job_timeout" default:"2m"`
		Queue            struct {
			Workers    int           `yaml:"workers" default:"2"`
			RetryLimit int           `yaml:"retry_limit" default:"3"`
			RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
			PollWait   time.Duration `yaml:"poll_wait" default:"2s"`
		} `yaml:"queue"`
	} `yaml:"scheduler"`
	Recommendations struct {
		File    string         `yaml:"file"`
		Targets []TargetConfig `yaml:"targets"`
	} `yaml:"recommendations"`
}

type TargetConfig struct {
	Symbol     string  `yaml:"symbol"`
	Price      float64 `yaml:"price"`
	Allocation float64 `yaml:"allocation"`
}

// Parse applies defaults, decodes YAML on top of them and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := getenv("PRICE_ARCHIVE"); v != "" {
		c.Storage.PriceArchive = v
	}
	if v := getenv("POSTGRES_HOST"); v != "" {
		c.Storage.Postgres.Host = v
	}
	if v := getenv("POSTGRES_PASSWORD"); v != "" {
		c.Storage.Postgres.Password = v
	}
	if v := getenv("SQLITE_PATH"); v != "" {
		c.Storage.SQLite.Path = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitCSV(v)
	}
	if v := getenv("INGEST_MODE"); v != "" {
		c.Ingest.Mode = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}
	if v := getenv("SYMBOLS"); v != "" {
		c.CoinMarketCap.Symbols = util.SplitCSV(v)
	}
	if v := getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Storage.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("storage.driver must be 'postgres' or 'sqlite', got '%s'", c.Storage.Driver)
	}
	switch c.Storage.PriceArchive {
	case "", "clickhouse":
	default:
		return fmt.Errorf("storage.price_archive must be empty or 'clickhouse', got '%s'", c.Storage.PriceArchive)
	}
	if c.Storage.QueryTimeout <= 0 {
		return fmt.Errorf("storage.query_timeout must be positive")
	}
	switch c.Ingest.Mode {
	case "direct":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when ingest.mode is 'kafka'")
		}
	default:
		return fmt.Errorf("ingest.mode must be 'direct' or 'kafka', got '%s'", c.Ingest.Mode)
	}
	if c.CoinMarketCap.Timeout <= 0 {
		return fmt.Errorf("coinmarketcap.timeout must be positive")
	}
	if c.CoinMarketCap.DominanceLimit <= 0 || c.CoinMarketCap.ListingLimit < c.CoinMarketCap.DominanceLimit {
		return fmt.Errorf("coinmarketcap.listing_limit must be >= dominance_limit > 0")
	}
	for i, t := range c.Recommendations.Targets {
		if t.Symbol == "" || t.Price <= 0 {
			return fmt.Errorf("recommendations.targets[%d] needs a symbol and a positive price", i)
		}
	}
	return nil
}

// KafkaEnabled reports whether brokers are configured.
func (c *Config) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }
