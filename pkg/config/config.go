package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MW_TELEGRAM_TOKEN.
const EnvPrefix = "MW"

type Config struct {
	Environment string     `yaml:"environment" default:"development" validate:"required"`
	Server      Server     `yaml:"server"`
	Logging     Logging    `yaml:"logging"`
	Metrics     Metrics    `yaml:"metrics"`
	Binance     Binance    `yaml:"binance"`
	Universe    Universe   `yaml:"universe"`
	Analysis    Analysis   `yaml:"analysis"`
	Scoring     Scoring    `yaml:"scoring"`
	Alerts      Alerts     `yaml:"alerts"`
	Telegram    Telegram   `yaml:"telegram"`
	Backend     Backend    `yaml:"backend"`
	Kafka       Kafka      `yaml:"kafka"`
	ClickHouse  ClickHouse `yaml:"clickhouse"`
	Redis       Redis      `yaml:"redis"`
}

type Server struct {
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	DisableCORS     bool          `yaml:"disable_cors"`
}

type Logging struct {
	Level        string        `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format       string        `yaml:"format" default:"console" validate:"oneof=json console"`
	Output       string        `yaml:"output" default:"stdout"`
	CollectTopic string        `yaml:"collect_topic"` // empty disables error-log shipping
	CollectEvery time.Duration `yaml:"collect_every" default:"30s"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type Binance struct {
	RestURL           string        `yaml:"rest_url" default:"https://api.binance.com" validate:"url"`
	StreamURL         string        `yaml:"stream_url" default:"wss://stream.binance.com:9443" validate:"url"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay" default:"5s" validate:"gt=0"`
	PingInterval      time.Duration `yaml:"ping_interval" default:"30s" validate:"gt=0"`
	ReadTimeout       time.Duration `yaml:"read_timeout" default:"90s" validate:"gt=0"`
	RequestTimeout    time.Duration `yaml:"request_timeout" default:"10s" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" default:"10" validate:"gt=0"`
}

type Universe struct {
	CoreSymbols       []string      `yaml:"core_symbols" default:"[\"BTCUSDT\",\"ETHUSDT\",\"SOLUSDT\",\"DOGEUSDT\",\"BNBUSDT\"]"`
	Denylist          []string      `yaml:"denylist" default:"[\"^(USDC|FDUSD|TUSD|BUSD|DAI|USDP)USDT$\",\"(UP|DOWN|BULL|BEAR)USDT$\"]"`
	QuoteAsset        string        `yaml:"quote_asset" default:"USDT" validate:"required"`
	TopN              int           `yaml:"top_n" default:"2" validate:"gte=0,lte=50"`
	ScanInterval      time.Duration `yaml:"scan_interval" default:"1h" validate:"gt=0"`
	LevelsGranularity string        `yaml:"levels_granularity" default:"1h" validate:"oneof=15m 1h 4h 1d"`
	LevelsBars        int           `yaml:"levels_bars" default:"200" validate:"gte=50,lte=1000"`
}

type Analysis struct {
	Interval          time.Duration `yaml:"interval" default:"5m" validate:"gt=0"`
	HeadlineInterval  time.Duration `yaml:"headline_interval" default:"1h" validate:"gt=0"`
	HeadlineSymbols   []string      `yaml:"headline_symbols" default:"[\"BTCUSDT\",\"ETHUSDT\",\"SOLUSDT\",\"DOGEUSDT\",\"BNBUSDT\"]"`
	Workers           int           `yaml:"workers" default:"4" validate:"gte=1,lte=64"`
	KlineLimit        int           `yaml:"kline_limit" default:"100" validate:"gte=30,lte=1000"`
	StreamGranularity string        `yaml:"stream_granularity" default:"5m" validate:"oneof=1m 5m 15m 1h"`
	SymbolTimeout     time.Duration `yaml:"symbol_timeout" default:"30s" validate:"gt=0"`
}

type Scoring struct {
	Weights struct {
		Technical         float64 `yaml:"technical" default:"0.40" validate:"gte=0,lte=1"`
		Volume            float64 `yaml:"volume" default:"0.15" validate:"gte=0,lte=1"`
		SupportResistance float64 `yaml:"support_resistance" default:"0.25" validate:"gte=0,lte=1"`
		Pattern           float64 `yaml:"pattern" default:"0.20" validate:"gte=0,lte=1"`
	} `yaml:"weights"`
	Thresholds struct {
		StrongBuy  float64 `yaml:"strong_buy" default:"75" validate:"gte=0,lte=100"`
		Buy        float64 `yaml:"buy" default:"60" validate:"gte=0,lte=100"`
		Sell       float64 `yaml:"sell" default:"40" validate:"gte=0,lte=100"`
		StrongSell float64 `yaml:"strong_sell" default:"25" validate:"gte=0,lte=100"`
	} `yaml:"thresholds"`
	// TimeframeWeights maps granularity (4h, 1h, 15m) to its share of the technical score.
	TimeframeWeights map[string]float64 `yaml:"timeframe_weights" default:"{\"4h\":0.5,\"1h\":0.3,\"15m\":0.2}"`
}

type Alerts struct {
	StrongCooldown time.Duration `yaml:"strong_cooldown" default:"3m" validate:"gte=0"`
	Cooldown       time.Duration `yaml:"cooldown" default:"5m" validate:"gte=0"`
	ChunkSize      int           `yaml:"chunk_size" default:"5" validate:"gte=1"`
}

type Telegram struct {
	Enabled           bool    `yaml:"enabled"`
	Token             string  `yaml:"token" validate:"required_if=Enabled true"`
	ChatID            string  `yaml:"chat_id" validate:"required_if=Enabled true"`
	APIURL            string  `yaml:"api_url" default:"https://api.telegram.org" validate:"url"`
	MessagesPerSecond float64 `yaml:"messages_per_second" default:"1" validate:"gt=0"`
}

type Backend struct {
	Type         string        `yaml:"type" default:"none" validate:"oneof=kafka clickhouse none"`
	BatchSize    int           `yaml:"batch_size" default:"100" validate:"gte=1"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
}

type Kafka struct {
	Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
	Topic        string   `yaml:"topic" default:"marketwatch.signals"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		Enabled    bool          `yaml:"enabled" default:"true"`
		GroupID    string        `yaml:"group_id" default:"marketwatch-archiver"`
		Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
		BufferSize int           `yaml:"buffer_size" default:"256"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic" default:"marketwatch.signals.dlq"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
}

type ClickHouse struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"marketwatch"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type Redis struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"marketwatch"`
	PoolSize int    `yaml:"pool_size" default:"10"`
}

// envOverrides are the values most often injected by the environment.
// Names are read with the MW_ prefix.
type envOverrides struct {
	Environment    string   `envconfig:"ENVIRONMENT"`
	LogLevel       string   `envconfig:"LOG_LEVEL"`
	Backend        string   `envconfig:"BACKEND"`
	CoreSymbols    []string `envconfig:"CORE_SYMBOLS"`
	TelegramToken  string   `envconfig:"TELEGRAM_TOKEN"`
	TelegramChatID string   `envconfig:"TELEGRAM_CHAT_ID"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic     string   `envconfig:"KAFKA_TOPIC"`
	ClickHouseHost string   `envconfig:"CLICKHOUSE_HOST"`
	ClickHousePass string   `envconfig:"CLICKHOUSE_PASSWORD"`
	RedisHost      string   `envconfig:"REDIS_HOST"`
	RedisPassword  string   `envconfig:"REDIS_PASSWORD"`
}

var validate = validator.New()

// Load reads a YAML file, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse is Load for an in-memory document.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads an optional .env file, then the YAML config, then applies
// MW_* environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides c with any MW_* variables that are set.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}

	setString(&c.Environment, env.Environment)
	setString(&c.Logging.Level, env.LogLevel)
	setString(&c.Backend.Type, env.Backend)
	setString(&c.Telegram.Token, env.TelegramToken)
	setString(&c.Telegram.ChatID, env.TelegramChatID)
	setString(&c.Kafka.Topic, env.KafkaTopic)
	setString(&c.ClickHouse.Host, env.ClickHouseHost)
	setString(&c.ClickHouse.Password, env.ClickHousePass)
	setString(&c.Redis.Host, env.RedisHost)
	setString(&c.Redis.Password, env.RedisPassword)
	if len(env.CoreSymbols) > 0 {
		c.Universe.CoreSymbols = env.CoreSymbols
	}
	if len(env.KafkaBrokers) > 0 {
		c.Kafka.Brokers = env.KafkaBrokers
	}
	if env.TelegramToken != "" && env.TelegramChatID != "" {
		c.Telegram.Enabled = true
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks field tags and cross-section rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty with backend kafka")
	}
	if c.Backend.Type == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("clickhouse.enabled must be true with backend clickhouse")
	}
	if len(c.Universe.CoreSymbols) == 0 && c.Universe.TopN == 0 {
		return fmt.Errorf("universe: core_symbols is empty and top_n is 0")
	}
	return nil
}
