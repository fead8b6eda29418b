package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// MQTT is the broker shared by the gateway and the service bridge.
	MQTT struct {
		Broker      string        `yaml:"broker"`
		Username    string        `yaml:"username"`
		Password    string        `yaml:"password"`
		ClientID    string        `yaml:"client_id"`
		Bridge      bool          `yaml:"bridge"`
		TopicPrefix string        `yaml:"topic_prefix"`
		Timeout     time.Duration `yaml:"request_timeout"`
	} `yaml:"mqtt"`
	Gateway struct {
		ClientID    string        `yaml:"client_id"`
		TopicPrefix string        `yaml:"topic_prefix"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"gateway"`
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Bind struct {
		BindableOnly bool `yaml:"bindable_only"`
	} `yaml:"bind"`
	Automation struct {
		Enabled        bool          `yaml:"enabled"`
		HandlerTimeout time.Duration `yaml:"handler_timeout"`
		QueueSize      int           `yaml:"queue_size"`
	} `yaml:"automation"`
	SchemasDir string `yaml:"schemas_dir"`
	ScriptsDir string `yaml:"scripts_dir"`
}

func (c *Config) validate() error {
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if c.MQTT.Bridge && c.MQTT.TopicPrefix == c.Gateway.TopicPrefix {
		return fmt.Errorf("mqtt.topic_prefix and gateway.topic_prefix must differ, both are %q", c.MQTT.TopicPrefix)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Automation.QueueSize < 0 {
		return fmt.Errorf("automation.queue_size must not be negative")
	}
	return nil
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	cfg.MQTT.Bridge = true
	cfg.Automation.Enabled = true
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "zha"
	}
	if cfg.Gateway.TopicPrefix == "" {
		cfg.Gateway.TopicPrefix = "zigbee"
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "zha.db"
	}
	if cfg.SchemasDir == "" {
		cfg.SchemasDir = "schemas"
	}
	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = "scripts"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
