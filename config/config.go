package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"codebattle-server/events"
	"codebattle-server/hub"
	"codebattle-server/judge"
	"codebattle-server/protocol"
	"codebattle-server/provider"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Room     RoomConfig     `yaml:"room"`
	Judge    JudgeConfig    `yaml:"judge"`
	Provider ProviderConfig `yaml:"provider"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	NATS     NATSConfig     `yaml:"nats"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
}

type RoomConfig struct {
	GracePeriod time.Duration `yaml:"grace_period"`
}

type JudgeConfig struct {
	URL        string        `yaml:"url"`
	LanguageID int           `yaml:"language_id"`
	Timeout    time.Duration `yaml:"timeout"`
	Workers    int           `yaml:"workers"`
}

type ProviderConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Slugs        []string      `yaml:"slugs"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// RedisConfig enables the problem cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// KafkaConfig enables the Kafka event sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// NATSConfig enables the NATS event sink when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8000",
			ReadHeaderTimeout: 15 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			AllowedOrigins:    []string{"*"},
		},
		Room: RoomConfig{GracePeriod: hub.DefaultGracePeriod},
		Judge: JudgeConfig{
			URL:        judge.DefaultURL,
			LanguageID: judge.DefaultLanguageID,
			Timeout:    protocol.DefaultJudgeTimeout,
			Workers:    protocol.DefaultWorkers,
		},
		Provider: ProviderConfig{
			BaseURL:      provider.DefaultBaseURL,
			Slugs:        append([]string(nil), provider.DefaultSlugs...),
			FetchTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{TTL: provider.DefaultCacheTTL},
		Kafka: KafkaConfig{Topic: events.DefaultTopic},
		NATS:  NATSConfig{SubjectPrefix: events.DefaultSubjectPrefix},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE and finally the environment. A .env file is read first if present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	c.Server.ReadHeaderTimeout = getEnvAsDuration("SERVER_READ_HEADER_TIMEOUT", c.Server.ReadHeaderTimeout)
	c.Server.ShutdownTimeout = getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.AllowedOrigins = getEnvAsSlice("ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Room.GracePeriod = getEnvAsDuration("ROOM_GRACE_PERIOD", c.Room.GracePeriod)

	c.Judge.URL = getEnv("JUDGE0_URL", c.Judge.URL)
	c.Judge.LanguageID = getEnvAsInt("JUDGE0_LANGUAGE_ID", c.Judge.LanguageID)
	c.Judge.Timeout = getEnvAsDuration("JUDGE_TIMEOUT", c.Judge.Timeout)
	c.Judge.Workers = getEnvAsInt("JUDGE_WORKERS", c.Judge.Workers)

	c.Provider.BaseURL = getEnv("LEETCODE_API_URL", c.Provider.BaseURL)
	c.Provider.Slugs = getEnvAsSlice("PROBLEM_SLUGS", c.Provider.Slugs)
	c.Provider.FetchTimeout = getEnvAsDuration("PROBLEM_FETCH_TIMEOUT", c.Provider.FetchTimeout)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Redis.TTL = getEnvAsDuration("PROBLEM_CACHE_TTL", c.Redis.TTL)

	c.Kafka.Brokers = getEnvAsSlice("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	if c.Room.GracePeriod <= 0 {
		errs = append(errs, fmt.Errorf("room grace period must be positive, got %s", c.Room.GracePeriod))
	}
	if c.Judge.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("judge timeout must be positive, got %s", c.Judge.Timeout))
	}
	if c.Judge.Workers <= 0 {
		errs = append(errs, fmt.Errorf("judge workers must be positive, got %d", c.Judge.Workers))
	}
	if c.Judge.URL == "" {
		errs = append(errs, errors.New("judge url is required"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", valueStr)
		return fallback
	}
	return value
}

// getEnvAsDuration accepts Go durations ("15s") or plain seconds ("15").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("invalid duration in environment, using default", "key", key, "value", valueStr)
	return fallback
}

func getEnvAsSlice(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
