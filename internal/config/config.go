package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"brandguard/internal/mentions"
)

type Config struct {
	HTTP struct {
		Port          string `mapstructure:"port"`
		SessionCookie string `mapstructure:"session_cookie"`
		SecureCookies bool   `mapstructure:"secure_cookies"`
	} `mapstructure:"http"`
	Data struct {
		Mentions string                 `mapstructure:"mentions"`
		Users    string                 `mapstructure:"users"`
		Columns  mentions.ColumnMapping `mapstructure:"columns"`
	} `mapstructure:"data"`
	Model struct {
		Vectorizer string `mapstructure:"vectorizer"`
		Classifier string `mapstructure:"classifier"`
	} `mapstructure:"model"`
	Session struct {
		Store       string        `mapstructure:"store"`
		TTL         time.Duration `mapstructure:"ttl"`
		HistorySize int           `mapstructure:"history_size"`
		Redis       struct {
			Address  string `mapstructure:"address"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
	} `mapstructure:"session"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	Queue struct {
		RequestURL  string        `mapstructure:"request_url"`
		ResponseURL string        `mapstructure:"response_url"`
		WaitSeconds int64         `mapstructure:"wait_seconds"`
		Workers     int           `mapstructure:"workers"`
		Timeout     time.Duration `mapstructure:"timeout"`
	} `mapstructure:"queue"`
	Kafka struct {
		Brokers string `mapstructure:"brokers"`
		Topic   string `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Stream struct {
		BatchSize  int           `mapstructure:"batch_size"`
		Interval   time.Duration `mapstructure:"interval"`
		Iterations int           `mapstructure:"iterations"`
		Window     int           `mapstructure:"window"`
		Threshold  float64       `mapstructure:"threshold"`
	} `mapstructure:"stream"`
	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`

	// File is the config file that was read, empty when running on defaults
	// and environment variables only.
	File string `mapstructure:"-"`
}

var defaults = map[string]any{
	"http.port":           "5000",
	"http.session_cookie": "brandguard_session",
	"http.secure_cookies": false,

	"data.mentions":          "data/twitter_validation.csv",
	"data.users":             "data/users.csv",
	"data.columns.id":        "",
	"data.columns.text":      "",
	"data.columns.brand":     "",
	"data.columns.sentiment": "",

	"model.vectorizer": "models/vectorizer.json",
	"model.classifier": "models/classifier.json",

	"session.store":          "memory",
	"session.ttl":            time.Duration(0),
	"session.history_size":   50,
	"session.redis.address":  "",
	"session.redis.password": "",
	"session.redis.db":       0,

	"aws.region": "us-east-1",

	"queue.request_url":  "",
	"queue.response_url": "",
	"queue.wait_seconds": 10,
	"queue.workers":      4,
	"queue.timeout":      30 * time.Second,

	"kafka.brokers": "",
	"kafka.topic":   "prediction_events",

	"stream.batch_size": 25,
	"stream.interval":   3 * time.Second,
	"stream.iterations": 50,
	"stream.window":     20,
	"stream.threshold":  25.0,

	"log.level":       "info",
	"log.development": false,
}

// Load reads path, or config.yml from the working directory or ./config when
// path is empty, and overlays environment variables (HTTP_PORT, QUEUE_TIMEOUT...).
// A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	return &cfg, nil
}

// Validate checks settings shared by every binary.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port == "" {
		errs = append(errs, errors.New("http.port is required"))
	}
	if c.Data.Mentions == "" {
		errs = append(errs, errors.New("data.mentions is required"))
	}
	if c.Data.Users == "" {
		errs = append(errs, errors.New("data.users is required"))
	}
	if c.Model.Vectorizer == "" || c.Model.Classifier == "" {
		errs = append(errs, errors.New("model.vectorizer and model.classifier are required"))
	}
	switch c.Session.Store {
	case "memory":
	case "redis":
		if c.Session.Redis.Address == "" {
			errs = append(errs, errors.New("session.redis.address is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session.store %q", c.Session.Store))
	}
	if c.Session.TTL < 0 {
		errs = append(errs, errors.New("session.ttl must not be negative"))
	}
	if c.Session.HistorySize < 0 {
		errs = append(errs, errors.New("session.history_size must not be negative"))
	}
	if c.Stream.BatchSize < 1 || c.Stream.Window < 1 || c.Stream.Iterations < 1 {
		errs = append(errs, errors.New("stream.batch_size, stream.window and stream.iterations must be at least 1"))
	}
	if c.Stream.Interval <= 0 {
		errs = append(errs, errors.New("stream.interval must be positive"))
	}
	if c.Stream.Threshold < 0 || c.Stream.Threshold > 100 {
		errs = append(errs, errors.New("stream.threshold must be within 0..100"))
	}
	return errors.Join(errs...)
}

// ValidateQueue checks the settings the web and app tiers need to talk over SQS.
func (c *Config) ValidateQueue() error {
	var errs []error
	if c.Queue.RequestURL == "" || c.Queue.ResponseURL == "" {
		errs = append(errs, errors.New("queue.request_url and queue.response_url are required"))
	}
	if c.Queue.WaitSeconds < 0 || c.Queue.WaitSeconds > 20 {
		errs = append(errs, errors.New("queue.wait_seconds must be within 0..20"))
	}
	if c.Queue.Timeout <= 0 {
		errs = append(errs, errors.New("queue.timeout must be positive"))
	}
	if c.AWS.Region == "" {
		errs = append(errs, errors.New("aws.region is required"))
	}
	return errors.Join(errs...)
}
