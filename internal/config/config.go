// Package config loads and validates ingestion service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Dart    DartConfig    `mapstructure:"dart"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Storage StorageConfig `mapstructure:"storage"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Polling PollingConfig `mapstructure:"polling"`
	Health  HealthConfig  `mapstructure:"health"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// DartConfig identifies the provider API. MockMode swaps the real client
// for a generator of sample disclosures so the service runs without a key.
type DartConfig struct {
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	MockMode bool   `mapstructure:"mock_mode"`
}

// HTTPConfig configures HTTP client retry behavior toward the provider and
// the downstream dependencies.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxRetries     int     `mapstructure:"max_retries"`
	BackoffFactor  float64 `mapstructure:"backoff_factor"`
}

// StorageConfig selects and parameterizes the object store provider.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// QueueConfig selects and parameterizes the task queue provider.
type QueueConfig struct {
	Provider        string `mapstructure:"provider"`
	BrokerURL       string `mapstructure:"broker_url"`
	TaskName        string `mapstructure:"task_name"`
	QueueName       string `mapstructure:"queue_name"`
	PubSubProjectID string `mapstructure:"pubsub_project_id"`
	PubSubTopic     string `mapstructure:"pubsub_topic"`
}

// PollingConfig governs the polling loop cadence and failure policy.
type PollingConfig struct {
	IntervalSeconds int    `mapstructure:"interval_seconds"`
	TargetDate      string `mapstructure:"target_date"`
	MaxFail         int    `mapstructure:"max_fail"`
	FailedLogDir    string `mapstructure:"failed_log_dir"`
}

// HealthConfig controls the health/metrics HTTP endpoint.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dart.base_url", "https://opendart.fss.or.kr/api")
	v.SetDefault("dart.mock_mode", false)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 5)
	v.SetDefault("http.backoff_factor", 1.2)
	v.SetDefault("storage.provider", "minio")
	v.SetDefault("storage.bucket", "dart-disclosures")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("queue.provider", "rabbitmq")
	v.SetDefault("queue.task_name", "tasks.process_disclosure")
	v.SetDefault("queue.queue_name", "celery")
	v.SetDefault("polling.interval_seconds", 300)
	v.SetDefault("polling.max_fail", 3)
	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8001)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Dart.APIKey == "" && !c.Dart.MockMode {
		return fmt.Errorf("dart.api_key must be set")
	}
	if c.Dart.BaseURL == "" {
		return fmt.Errorf("dart.base_url must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Polling.IntervalSeconds < 10 {
		return fmt.Errorf("polling.interval_seconds must be at least 10")
	}
	if c.Polling.MaxFail < 1 {
		return fmt.Errorf("polling.max_fail must be >= 1")
	}
	if d := c.Polling.TargetDate; d != "" {
		if len(d) != 8 {
			return fmt.Errorf("polling.target_date must be YYYYMMDD, got %q", d)
		}
		for _, r := range d {
			if r < '0' || r > '9' {
				return fmt.Errorf("polling.target_date must be YYYYMMDD, got %q", d)
			}
		}
	}
	switch c.Storage.Provider {
	case "minio":
		if c.Storage.Endpoint == "" || c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("storage.endpoint, storage.access_key and storage.secret_key must be set for the minio provider")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	switch c.Queue.Provider {
	case "rabbitmq":
		if c.Queue.BrokerURL == "" {
			return fmt.Errorf("queue.broker_url must be set for the rabbitmq provider")
		}
		if !strings.HasPrefix(c.Queue.BrokerURL, "amqp://") && !strings.HasPrefix(c.Queue.BrokerURL, "amqps://") {
			return fmt.Errorf("queue.broker_url must start with amqp:// or amqps://")
		}
	case "pubsub":
		if c.Queue.PubSubProjectID == "" || c.Queue.PubSubTopic == "" {
			return fmt.Errorf("queue.pubsub_project_id and queue.pubsub_topic must be set for the pubsub provider")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown queue provider: %s", c.Queue.Provider)
	}
	if c.Health.Enabled && (c.Health.Port < 1 || c.Health.Port > 65535) {
		return fmt.Errorf("health.port must be 1-65535")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout config into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PollInterval converts the polling interval config into a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}
