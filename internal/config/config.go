// Package config loads LiveBoard settings from defaults, an optional YAML
// file and LIVEBOARD_* environment variables, in that order of priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures the board server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Advertise publishes the server over mDNS.
	Advertise bool `yaml:"advertise"`
	// Service is the mDNS service type.
	Service string `yaml:"service"`
	// SendBuffer is the number of outbound frames queued per connection
	// before the connection is dropped.
	SendBuffer int `yaml:"send_buffer"`
	// ReadLimit is the maximum inbound frame size in bytes.
	ReadLimit    int64         `yaml:"read_limit"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

// ClientConfig configures the drawing client.
type ClientConfig struct {
	Width            float64       `yaml:"width"`
	Palette          []string      `yaml:"palette"`
	ReconnectInitial time.Duration `yaml:"reconnect_initial"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8888,
			Service:      "_liveboard._tcp",
			SendBuffer:   256,
			ReadLimit:    64 * 1024,
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
		},
		Client: ClientConfig{
			Width: 3,
			Palette: []string{
				"#22c55e",
				"#3b82f6",
				"#ec4899",
				"#f97316",
				"#eab308",
				"#a855f7",
			},
			ReconnectInitial: 500 * time.Millisecond,
			ReconnectMax:     10 * time.Second,
		},
		Log: LogConfig{Level: "INFO"},
	}
}

// Load builds a configuration. A missing file at path is not an error; an
// empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("LIVEBOARD_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LIVEBOARD_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LIVEBOARD_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("LIVEBOARD_ADVERTISE"); v != "" {
		advertise, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LIVEBOARD_ADVERTISE: %w", err)
		}
		cfg.Server.Advertise = advertise
	}
	if v := os.Getenv("LIVEBOARD_WIDTH"); v != "" {
		width, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LIVEBOARD_WIDTH: %w", err)
		}
		cfg.Client.Width = width
	}
	if v := os.Getenv("LIVEBOARD_PALETTE"); v != "" {
		cfg.Client.Palette = strings.Split(v, ",")
	}
	if v := os.Getenv("LIVEBOARD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// Validate checks values that would make the server or client unusable.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.SendBuffer <= 0 {
		return fmt.Errorf("server.send_buffer must be positive")
	}
	if c.Client.Width <= 0 {
		return fmt.Errorf("client.width must be positive")
	}
	if len(c.Client.Palette) == 0 {
		return fmt.Errorf("client.palette must not be empty")
	}
	return nil
}

// Addr returns the listen address of the server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
