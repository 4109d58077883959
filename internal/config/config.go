package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ServerConfig stores HTTP server specific configurations.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"SERVER_ADDR"`
}

// ReconnectConfig bounds the session reconnect backoff loop.
type ReconnectConfig struct {
	BaseInterval time.Duration `yaml:"base_interval" env:"RECONNECT_BASE_INTERVAL"`
	MaxInterval  time.Duration `yaml:"max_interval"  env:"RECONNECT_MAX_INTERVAL"`
}

// VoiceConfig stores voice and audio playback configurations.
type VoiceConfig struct {
	JoinTimeout   time.Duration `yaml:"join_timeout"   env:"VOICE_JOIN_TIMEOUT"`
	FrameDuration time.Duration `yaml:"frame_duration" env:"VOICE_FRAME_DURATION"`
}

// Config stores the application configuration.
type Config struct {
	Server           ServerConfig    `yaml:"server"`
	Reconnect        ReconnectConfig `yaml:"reconnect"`
	Voice            VoiceConfig     `yaml:"voice"`
	MessageCacheSize int             `yaml:"message_cache_size" env:"MESSAGE_CACHE_SIZE"`
	LogLevel         string          `yaml:"log_level"          env:"LOG_LEVEL"`
}

// Defaults applied before the file and environment are read.
const (
	DefaultAddr             = ":3000"
	DefaultBaseInterval     = time.Second
	DefaultMaxInterval      = 30 * time.Second
	DefaultJoinTimeout      = 10 * time.Second
	DefaultFrameDuration    = 20 * time.Millisecond
	DefaultMessageCacheSize = 128
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr: DefaultAddr,
		},
		Reconnect: ReconnectConfig{
			BaseInterval: DefaultBaseInterval,
			MaxInterval:  DefaultMaxInterval,
		},
		Voice: VoiceConfig{
			JoinTimeout:   DefaultJoinTimeout,
			FrameDuration: DefaultFrameDuration,
		},
		MessageCacheSize: DefaultMessageCacheSize,
		LogLevel:         "info",
	}
}

// LoadConfig loads the configuration from the given file path, then
// applies environment variable overrides. A missing file is not an
// error; defaults plus environment are used.
func LoadConfig(filePath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(filePath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", filePath, err)
		}
	case os.IsNotExist(err):
		// Environment-only configuration.
	default:
		return nil, err
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr must not be empty")
	}
	if c.Reconnect.BaseInterval <= 0 || c.Reconnect.MaxInterval < c.Reconnect.BaseInterval {
		return fmt.Errorf("invalid reconnect intervals: base=%s max=%s",
			c.Reconnect.BaseInterval, c.Reconnect.MaxInterval)
	}
	if c.Voice.JoinTimeout <= 0 {
		return fmt.Errorf("voice join timeout must be positive")
	}
	if c.Voice.FrameDuration <= 0 {
		return fmt.Errorf("voice frame duration must be positive")
	}
	if c.MessageCacheSize <= 0 {
		return fmt.Errorf("message cache size must be positive")
	}

	return nil
}
