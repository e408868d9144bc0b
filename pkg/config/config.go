package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Log         struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error fatal panic"`
		Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout"`
		TimeFormat string `yaml:"time_format"`
		Collect    struct {
			Enabled        bool          `yaml:"enabled"`
			Interval       time.Duration `yaml:"interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
			IncludeWarn    bool          `yaml:"include_warn"`
		} `yaml:"collect"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Chart      ChartConfig      `yaml:"chart"`
	Pairs      []PairConfig     `yaml:"pairs" validate:"dive"`
	Source     SourceConfig     `yaml:"source"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Cache      CacheConfig      `yaml:"cache"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Stream     StreamConfig     `yaml:"stream"`
	Warmup     WarmupConfig     `yaml:"warmup"`
	RateLimit  struct {
		Enabled  bool    `yaml:"enabled" default:"true"`
		Capacity float64 `yaml:"capacity" default:"40" validate:"gt=0"`
		PerSec   float64 `yaml:"per_sec" default:"20" validate:"gt=0"`
	} `yaml:"ratelimit"`
}

type ChartConfig struct {
	Width            int         `yaml:"width" default:"1200" validate:"gte=100,lte=4096"`
	Height           int         `yaml:"height" default:"600" validate:"gte=100,lte=4096"`
	Padding          float64     `yaml:"padding" default:"50" validate:"gte=0"`
	MinRangeFraction float64     `yaml:"min_range_fraction" default:"0.001" validate:"gte=0"`
	MinRangeAbs      float64     `yaml:"min_range_abs" default:"0.00000001" validate:"gt=0"`
	DefaultTimeframe string      `yaml:"default_timeframe" default:"1h" validate:"oneof=1m 5m 15m 30m 1h 4h 1d"`
	DefaultLimit     int         `yaml:"default_limit" default:"100" validate:"gte=1"`
	MaxLimit         int         `yaml:"max_limit" default:"5000" validate:"gtefield=DefaultLimit"`
	Theme            ThemeConfig `yaml:"theme"`
}

// ThemeConfig holds CSS color overrides. Empty keeps the built-in palette.
type ThemeConfig struct {
	Background        string `yaml:"background" validate:"omitempty,hexcolor|rgb|rgba"`
	Grid              string `yaml:"grid" validate:"omitempty,hexcolor|rgb|rgba"`
	Support           string `yaml:"support" validate:"omitempty,hexcolor|rgb|rgba"`
	Resistance        string `yaml:"resistance" validate:"omitempty,hexcolor|rgb|rgba"`
	GapBullish        string `yaml:"gap_bullish" validate:"omitempty,hexcolor|rgb|rgba"`
	GapBearish        string `yaml:"gap_bearish" validate:"omitempty,hexcolor|rgb|rgba"`
	OrderBlockBullish string `yaml:"order_block_bullish" validate:"omitempty,hexcolor|rgb|rgba"`
	OrderBlockBearish string `yaml:"order_block_bearish" validate:"omitempty,hexcolor|rgb|rgba"`
	CandleBullish     string `yaml:"candle_bullish" validate:"omitempty,hexcolor|rgb|rgba"`
	CandleBearish     string `yaml:"candle_bearish" validate:"omitempty,hexcolor|rgb|rgba"`
	Marker            string `yaml:"marker" validate:"omitempty,hexcolor|rgb|rgba"`
}

type PairConfig struct {
	Code   string  `yaml:"code" validate:"required"`
	Symbol string  `yaml:"symbol" validate:"required"`
	Name   string  `yaml:"name"`
	Pip    float64 `yaml:"pip" validate:"gt=0"`
}

type SourceConfig struct {
	Candles  string        `yaml:"candles" default:"http" validate:"oneof=http clickhouse"`
	Analysis string        `yaml:"analysis" default:"http" validate:"oneof=http none"`
	BaseURL  string        `yaml:"base_url" default:"http://localhost:5000" validate:"required,url"`
	Timeout  time.Duration `yaml:"timeout" default:"10s"`
	Retries  int           `yaml:"retries" default:"2" validate:"gte=0"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"finchart"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	InitSchema       bool          `yaml:"init_schema" default:"true"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend" default:"memory" validate:"oneof=memory redis layered none"`
	TTL           time.Duration `yaml:"ttl" default:"60s"`
	LockTTL       time.Duration `yaml:"lock_ttl" default:"10s"`
	MemoryMaxSize int           `yaml:"memory_max_size" default:"500" validate:"gte=1"`
	Redis         struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size" default:"10"`
		Prefix   string `yaml:"prefix" default:"finchart"`
	} `yaml:"redis"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	Topics       struct {
		CandlesUpdated string `yaml:"candles_updated" default:"candles.updated"`
		ChartRendered  string `yaml:"chart_rendered" default:"chart.rendered"`
		Logs           string `yaml:"logs" default:"finchart.logs"`
	} `yaml:"topics"`
	Producer struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		Async        bool          `yaml:"async" default:"true"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"finchart"`
		Workers    int           `yaml:"workers" default:"4" validate:"gte=1"`
		BufferSize int           `yaml:"buffer_size" default:"256"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic" default:"candles.updated.dlq"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
}

type StreamConfig struct {
	Enabled      bool          `yaml:"enabled" default:"true"`
	Width        int           `yaml:"width" default:"1000" validate:"gte=100,lte=4096"`
	Height       int           `yaml:"height" default:"500" validate:"gte=100,lte=4096"`
	Format       string        `yaml:"format" default:"svg" validate:"oneof=png svg json"`
	PingInterval time.Duration `yaml:"ping_interval" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	ReadLimit    int64         `yaml:"read_limit" default:"4096"`
	SendBuffer   int           `yaml:"send_buffer" default:"8" validate:"gte=1"`
	Throttle     time.Duration `yaml:"throttle" default:"1s"`
	AllowOrigins []string      `yaml:"allow_origins"`
}

// WarmupConfig controls prerendering of default charts after a candle update.
// It runs on the Redis queue, so it needs the redis or layered cache.
type WarmupConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Formats    []string      `yaml:"formats" default:"[\"png\"]" validate:"dive,oneof=png svg json"`
	Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
	RetryLimit int           `yaml:"retry_limit" default:"2" validate:"gte=0"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"5s"`
}

// DefaultPairs is the catalogue served when the config lists none.
func DefaultPairs() []PairConfig {
	return []PairConfig{
		{Code: "EURUSD", Symbol: "EURUSD=X", Name: "Euro / US Dollar", Pip: 0.0001},
		{Code: "GBPUSD", Symbol: "GBPUSD=X", Name: "British Pound / US Dollar", Pip: 0.0001},
		{Code: "USDJPY", Symbol: "USDJPY=X", Name: "US Dollar / Japanese Yen", Pip: 0.01},
		{Code: "USDCHF", Symbol: "USDCHF=X", Name: "US Dollar / Swiss Franc", Pip: 0.0001},
		{Code: "AUDUSD", Symbol: "AUDUSD=X", Name: "Australian Dollar / US Dollar", Pip: 0.0001},
		{Code: "NZDUSD", Symbol: "NZDUSD=X", Name: "New Zealand Dollar / US Dollar", Pip: 0.0001},
		{Code: "USDCAD", Symbol: "USDCAD=X", Name: "US Dollar / Canadian Dollar", Pip: 0.0001},
		{Code: "XAUUSD", Symbol: "GC=F", Name: "Gold / US Dollar", Pip: 0.01},
	}
}

// Default returns a config with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := c.applyDefaults(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	if len(c.Pairs) == 0 {
		c.Pairs = DefaultPairs()
	}
	return nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates. Defaults go first so an
// explicit false or zero in the file is kept.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(c.Pairs) == 0 {
		c.Pairs = DefaultPairs()
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML (or defaults when path is empty) and
// overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c, err = Default()
	} else {
		c, err = Load(path)
	}
	if err != nil {
		return nil, err
	}

	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("FINCHART_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FINCHART_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("ANALYSIS_URL"); v != "" {
		c.Source.BaseURL = v
	}
	if v := getenv("PAIRS"); v != "" {
		c.Pairs = filterPairs(c.Pairs, splitList(v))
	}
	return nil
}

// filterPairs keeps the configured pairs named in codes, in codes order.
// Unknown codes become bare entries so they can still be charted.
func filterPairs(pairs []PairConfig, codes []string) []PairConfig {
	byCode := make(map[string]PairConfig, len(pairs))
	for _, p := range pairs {
		byCode[p.Code] = p
	}
	out := make([]PairConfig, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(code)
		if p, ok := byCode[code]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, PairConfig{Code: code, Symbol: code, Name: code, Pip: 0.0001})
	}
	return out
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Source.Candles == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when source.candles is clickhouse")
	}
	if c.UsesRedis() && c.Cache.Redis.Host == "" {
		return fmt.Errorf("cache.redis.host is required for the %s cache", c.Cache.Backend)
	}
	if c.Warmup.Enabled && !c.UsesRedis() {
		return fmt.Errorf("warmup needs the redis or layered cache, got %s", c.Cache.Backend)
	}
	return nil
}

// UsesRedis reports whether the cache backend talks to Redis.
func (c *Config) UsesRedis() bool {
	return c.Cache.Backend == "redis" || c.Cache.Backend == "layered"
}
