package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime knobs for the reconciler.
// The mapstructure tags are used by Viper to unmarshal the data.
type Config struct {
	// AWS wiring
	AWSRegion string `mapstructure:"aws_region"`
	TableName string `mapstructure:"table_name"`
	StreamARN string `mapstructure:"stream_arn"`
	QueueURL  string `mapstructure:"queue_url"`
	KMSKeyID  string `mapstructure:"kms_key_id"`

	// TTL policy
	TTLSeconds           int64         `mapstructure:"ttl_seconds"`
	GracePeriod          time.Duration `mapstructure:"grace_period"`
	TTLAutomationEnabled bool          `mapstructure:"ttl_automation_enabled"`

	// Stream consumption
	BatchSize        int           `mapstructure:"batch_size"`
	MaxRetryAttempts int           `mapstructure:"max_retry_attempts"`
	MaxRecordAge     time.Duration `mapstructure:"max_record_age"`
	ConcurrencyLimit int           `mapstructure:"concurrency_limit"`
	HandleTimeout    time.Duration `mapstructure:"handle_timeout"`

	// Alarming
	AlarmWindow    time.Duration `mapstructure:"alarm_window"`
	AlarmThreshold int           `mapstructure:"alarm_threshold"`

	// Dead-letter spool fallback
	SpoolPath         string `mapstructure:"spool_path"`
	SinkRetryAttempts int    `mapstructure:"sink_retry_attempts"`

	// HTTP surface (metrics + health)
	HTTPListenAddr string `mapstructure:"http_listen_addr"`
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetDefault("aws_region", "us-east-1")
	viper.SetDefault("ttl_seconds", 3600)
	viper.SetDefault("grace_period", "300s")
	viper.SetDefault("ttl_automation_enabled", true)
	viper.SetDefault("batch_size", 100)
	viper.SetDefault("max_retry_attempts", 5)
	viper.SetDefault("max_record_age", "600s")
	viper.SetDefault("concurrency_limit", 2)
	viper.SetDefault("handle_timeout", "30s")
	viper.SetDefault("alarm_window", "300s")
	viper.SetDefault("alarm_threshold", 1)
	viper.SetDefault("spool_path", "./data/deadletter-spool.db")
	viper.SetDefault("sink_retry_attempts", 3)
	viper.SetDefault("http_listen_addr", ":8080")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("lockttl")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// no config file is fine, defaults and env vars cover everything
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.TTLSeconds <= 0 {
		return fmt.Errorf("ttl_seconds must be positive, got %d", c.TTLSeconds)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.ConcurrencyLimit <= 0 {
		return fmt.Errorf("concurrency_limit must be positive, got %d", c.ConcurrencyLimit)
	}
	if c.MaxRetryAttempts < 0 {
		return fmt.Errorf("max_retry_attempts must not be negative, got %d", c.MaxRetryAttempts)
	}
	if c.GracePeriod > time.Duration(c.TTLSeconds)*time.Second {
		return fmt.Errorf("grace_period %s exceeds ttl of %ds, every event would rewrite", c.GracePeriod, c.TTLSeconds)
	}
	return nil
}
