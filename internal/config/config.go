package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type WorkerConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	BatchSize         int           `mapstructure:"batch_size"`
	FanoutConcurrency int           `mapstructure:"fanout_concurrency"`
}

type GatewayConfig struct {
	URL         string        `mapstructure:"url"`
	AccessToken string        `mapstructure:"access_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type PresenceConfig struct {
	ActiveWindow time.Duration `mapstructure:"active_window"`
}

type RetentionConfig struct {
	TokenIdleDays int `mapstructure:"token_idle_days"`
	QueueDays     int `mapstructure:"queue_days"`
	LogDays       int `mapstructure:"log_days"`
}

type Config struct {
	DatabaseURL string          `mapstructure:"database_url"`
	ServerPort  string          `mapstructure:"server_port"`
	JWTSecret   string          `mapstructure:"jwt_secret"`
	Worker      WorkerConfig    `mapstructure:"worker"`
	Gateway     GatewayConfig   `mapstructure:"gateway"`
	Presence    PresenceConfig  `mapstructure:"presence"`
	Retention   RetentionConfig `mapstructure:"retention"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}

	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}

	if config.Gateway.URL == "" {
		log.Fatal("Push gateway URL must be set in the config file")
	}

	if config.Worker.PollInterval == 0 {
		config.Worker.PollInterval = 5 * time.Second
	}
	if config.Worker.BatchSize == 0 {
		config.Worker.BatchSize = 25
	}
	if config.Worker.FanoutConcurrency == 0 {
		config.Worker.FanoutConcurrency = 4
	}
	if config.Gateway.Timeout == 0 {
		config.Gateway.Timeout = 30 * time.Second
	}
	if config.Presence.ActiveWindow == 0 {
		config.Presence.ActiveWindow = 2 * time.Minute
	}
	if config.Retention.TokenIdleDays == 0 {
		config.Retention.TokenIdleDays = 90
	}
	if config.Retention.QueueDays == 0 {
		config.Retention.QueueDays = 30
	}
	if config.Retention.LogDays == 0 {
		config.Retention.LogDays = 90
	}

	return &config
}
