// Package config assembles runtime configuration. Precedence is defaults,
// then an optional YAML file (COMPANION_CONFIG), then environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/kapu/chesslink-companion/internal/protocol"
)

type AppConfig struct {
	// Device selection. The UUIDs default to the Chess_RPi firmware values
	// and only need overriding for custom builds.
	DeviceName         string `env:"DEVICE_NAME" yaml:"device_name"`
	ServiceUUID        string `env:"SERVICE_UUID" yaml:"service_uuid"`
	CharacteristicUUID string `env:"CHARACTERISTIC_UUID" yaml:"characteristic_uuid"`

	ScanWindow     time.Duration `env:"SCAN_WINDOW" yaml:"scan_window"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" yaml:"connect_timeout"`

	// Local view surface.
	HTTPAddr   string `env:"HTTP_ADDR" yaml:"http_addr"`
	StreamAddr string `env:"STREAM_ADDR" yaml:"stream_addr"`

	// Optional durable archive backends. Postgres wins when both are set.
	RedisURL    string `env:"REDIS_URL" yaml:"redis_url"`
	DatabaseURL string `env:"DATABASE_URL" yaml:"database_url"`
}

func defaults() AppConfig {
	return AppConfig{
		DeviceName:         protocol.DeviceName,
		ServiceUUID:        protocol.ServiceUUID,
		CharacteristicUUID: protocol.CharacteristicUUID,
		ScanWindow:         4 * time.Second,
		ConnectTimeout:     10 * time.Second,
		HTTPAddr:           ":8700",
		StreamAddr:         ":8701",
	}
}

func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("COMPANION_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.ScanWindow <= 0 {
		return fmt.Errorf("scan window must be positive, got %s", c.ScanWindow)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got %s", c.ConnectTimeout)
	}
	if strings.TrimSpace(c.ServiceUUID) == "" || strings.TrimSpace(c.CharacteristicUUID) == "" {
		return fmt.Errorf("service and characteristic UUIDs are required")
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	return nil
}
