// Package config loads the enumerated configuration options from spec §6:
// env vars win over an optional TOML file, which wins over built-in
// defaults. Missing required options surface as errs.MissingConfig so
// callers can map them to the exit code 2 mandated by spec §6.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/octostatus/estate-reporter/internal/errs"
)

// StatusModelBackend enumerates status_model.backend.
type StatusModelBackend string

const (
	BackendMock           StatusModelBackend = "mock"
	BackendChatCompletion StatusModelBackend = "chat_completion"
)

// Config holds every recognised option from spec §6.
type Config struct {
	DatabaseURL string

	ReportingWindowDays int
	ValidationMaxAttempts int

	StatusModelBackend    StatusModelBackend
	StatusModelAPIKey     string
	StatusModelEndpoint   string
	StatusModelModel      string
	StatusModelTemperature float64
	StatusModelMaxTokens  int

	IngestionStalledThresholdSeconds int
	IngestionMaxEventsPerRun         int
	RemoteSourceToken                string

	ReportSinkBasePath string
	ReportSinkS3Bucket string

	RedisAddr  string
	KafkaBrokers []string

	HTTPAddr  string
	JWTSecret string
}

// fileOverlay mirrors the subset of Config that may be supplied via TOML,
// using the on-disk key names of the file Load reads from configPath.
type fileOverlay struct {
	Database struct {
		URL string `toml:"url"`
	} `toml:"database"`
	Reporting struct {
		WindowDays int `toml:"window_days"`
	} `toml:"reporting"`
	Validation struct {
		MaxAttempts int `toml:"max_attempts"`
	} `toml:"validation"`
	StatusModel struct {
		Backend     string  `toml:"backend"`
		APIKey      string  `toml:"api_key"`
		Endpoint    string  `toml:"endpoint"`
		Model       string  `toml:"model"`
		Temperature float64 `toml:"temperature"`
		MaxTokens   int     `toml:"max_tokens"`
	} `toml:"status_model"`
	Ingestion struct {
		StalledThresholdSeconds int `toml:"stalled_threshold_seconds"`
		MaxEventsPerRun         int `toml:"max_events_per_run"`
	} `toml:"ingestion"`
	ReportSink struct {
		BasePath string `toml:"base_path"`
		S3Bucket string `toml:"s3_bucket"`
	} `toml:"report_sink"`
	Redis struct {
		Addr string `toml:"addr"`
	} `toml:"redis"`
	Kafka struct {
		Brokers []string `toml:"brokers"`
	} `toml:"kafka"`
	HTTP struct {
		Addr      string `toml:"addr"`
		JWTSecret string `toml:"jwt_secret"`
	} `toml:"http"`
}

const (
	defaultReportingWindowDays      = 7
	defaultValidationMaxAttempts    = 2
	defaultIngestionStalledSeconds  = 3600
	defaultIngestionMaxEventsPerRun = 200
	defaultHTTPAddr                 = ":8080"
)

// Load reads .env (if present), an optional TOML file at configPath (if
// non-empty and present), then overlays environment variables, which always
// win. database_url is always mandatory; with the chat_completion backend,
// status_model.endpoint and status_model.api_key are mandatory as well.
func Load(configPath string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ReportingWindowDays:              defaultReportingWindowDays,
		ValidationMaxAttempts:            defaultValidationMaxAttempts,
		StatusModelBackend:               BackendMock,
		IngestionStalledThresholdSeconds: defaultIngestionStalledSeconds,
		IngestionMaxEventsPerRun:         defaultIngestionMaxEventsPerRun,
		HTTPAddr:                         defaultHTTPAddr,
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			var overlay fileOverlay
			if _, err := toml.DecodeFile(configPath, &overlay); err != nil {
				return Config{}, errs.Wrap(errs.MissingConfig, err, "parse config file "+configPath)
			}
			applyOverlay(&cfg, overlay)
		}
	}

	applyEnv(&cfg)

	if cfg.DatabaseURL == "" {
		return Config{}, errs.New(errs.MissingConfig, "database_url is required")
	}
	if cfg.StatusModelBackend == BackendChatCompletion {
		if cfg.StatusModelEndpoint == "" {
			return Config{}, errs.New(errs.MissingConfig, "status_model.endpoint is required for chat_completion backend")
		}
		if cfg.StatusModelAPIKey == "" {
			return Config{}, errs.New(errs.MissingConfig, "status_model.api_key is required for chat_completion backend")
		}
	}
	return cfg, nil
}

func applyOverlay(cfg *Config, o fileOverlay) {
	if o.Database.URL != "" {
		cfg.DatabaseURL = o.Database.URL
	}
	if o.Reporting.WindowDays != 0 {
		cfg.ReportingWindowDays = o.Reporting.WindowDays
	}
	if o.Validation.MaxAttempts != 0 {
		cfg.ValidationMaxAttempts = o.Validation.MaxAttempts
	}
	if o.StatusModel.Backend != "" {
		cfg.StatusModelBackend = StatusModelBackend(o.StatusModel.Backend)
	}
	cfg.StatusModelAPIKey = firstNonEmpty(o.StatusModel.APIKey, cfg.StatusModelAPIKey)
	cfg.StatusModelEndpoint = firstNonEmpty(o.StatusModel.Endpoint, cfg.StatusModelEndpoint)
	cfg.StatusModelModel = firstNonEmpty(o.StatusModel.Model, cfg.StatusModelModel)
	if o.StatusModel.Temperature != 0 {
		cfg.StatusModelTemperature = o.StatusModel.Temperature
	}
	if o.StatusModel.MaxTokens != 0 {
		cfg.StatusModelMaxTokens = o.StatusModel.MaxTokens
	}
	if o.Ingestion.StalledThresholdSeconds != 0 {
		cfg.IngestionStalledThresholdSeconds = o.Ingestion.StalledThresholdSeconds
	}
	if o.Ingestion.MaxEventsPerRun != 0 {
		cfg.IngestionMaxEventsPerRun = o.Ingestion.MaxEventsPerRun
	}
	cfg.ReportSinkBasePath = firstNonEmpty(o.ReportSink.BasePath, cfg.ReportSinkBasePath)
	cfg.ReportSinkS3Bucket = firstNonEmpty(o.ReportSink.S3Bucket, cfg.ReportSinkS3Bucket)
	cfg.RedisAddr = firstNonEmpty(o.Redis.Addr, cfg.RedisAddr)
	if len(o.Kafka.Brokers) > 0 {
		cfg.KafkaBrokers = o.Kafka.Brokers
	}
	cfg.HTTPAddr = firstNonEmpty(o.HTTP.Addr, cfg.HTTPAddr)
	cfg.JWTSecret = firstNonEmpty(o.HTTP.JWTSecret, cfg.JWTSecret)
}

func applyEnv(cfg *Config) {
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.ReportingWindowDays = getInt("REPORTING_WINDOW_DAYS", cfg.ReportingWindowDays)
	cfg.ValidationMaxAttempts = getInt("VALIDATION_MAX_ATTEMPTS", cfg.ValidationMaxAttempts)

	if v := os.Getenv("STATUS_MODEL_BACKEND"); v != "" {
		cfg.StatusModelBackend = StatusModelBackend(v)
	}
	cfg.StatusModelAPIKey = getEnv("STATUS_MODEL_API_KEY", cfg.StatusModelAPIKey)
	cfg.StatusModelEndpoint = getEnv("STATUS_MODEL_ENDPOINT", cfg.StatusModelEndpoint)
	cfg.StatusModelModel = getEnv("STATUS_MODEL_MODEL", cfg.StatusModelModel)
	cfg.StatusModelTemperature = getFloat("STATUS_MODEL_TEMPERATURE", cfg.StatusModelTemperature)
	cfg.StatusModelMaxTokens = getInt("STATUS_MODEL_MAX_TOKENS", cfg.StatusModelMaxTokens)

	cfg.IngestionStalledThresholdSeconds = getInt("INGESTION_STALLED_THRESHOLD_SECONDS", cfg.IngestionStalledThresholdSeconds)
	cfg.IngestionMaxEventsPerRun = getInt("INGESTION_MAX_EVENTS_PER_RUN", cfg.IngestionMaxEventsPerRun)
	cfg.RemoteSourceToken = getEnv("REMOTE_SOURCE_TOKEN", cfg.RemoteSourceToken)

	cfg.ReportSinkBasePath = getEnv("REPORT_SINK_BASE_PATH", cfg.ReportSinkBasePath)
	cfg.ReportSinkS3Bucket = getEnv("REPORT_SINK_S3_BUCKET", cfg.ReportSinkS3Bucket)

	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitCSV(v)
	}
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.JWTSecret = getEnv("HTTP_JWT_SECRET", cfg.JWTSecret)
}

// StalledThreshold returns the configured stall threshold as a duration.
func (c Config) StalledThreshold() time.Duration {
	return time.Duration(c.IngestionStalledThresholdSeconds) * time.Second
}

// ReportingWindow returns the default reporting window as a duration.
func (c Config) ReportingWindow() time.Duration {
	return time.Duration(c.ReportingWindowDays) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	return out
}
