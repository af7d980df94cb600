// Package config loads server configuration from an optional YAML file and CHESS_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// AllowedOrigin is the single origin allowed by CORS; "*" allows any origin.
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

// Addr returns the "host:port" listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is "json" or "console".
	Format string `mapstructure:"format"`
}

// GameConfig holds clock and move-acceptance settings.
type GameConfig struct {
	// DefaultBudgetSeconds is each side's starting clock.
	DefaultBudgetSeconds int64 `mapstructure:"default_budget_seconds"`
	// ValidateMoves makes the relay apply from/to/promotion server-side instead of
	// trusting the submitted board state.
	ValidateMoves bool `mapstructure:"validate_moves"`
}

type RegistryConfig struct {
	// RoomTTL is the idle time after which a room is evicted. Zero disables eviction.
	RoomTTL       time.Duration `mapstructure:"room_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type WebsocketConfig struct {
	WriteWait  time.Duration `mapstructure:"write_wait"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
	ReadLimit  int64         `mapstructure:"read_limit"`
}

// PubSubConfig selects how room broadcasts reach subscribers.
type PubSubConfig struct {
	// Driver is "local" (in-process hub) or "redis".
	Driver        string `mapstructure:"driver"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
	// PublishTimeout bounds one publish. Moves are published under the room lock, so this
	// is also the longest a slow Redis can stall a room.
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Game      GameConfig      `mapstructure:"game"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Websocket WebsocketConfig `mapstructure:"websocket"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, fn := range []func() error{
		func() error { return validateServer(c.Server) },
		func() error { return validateLogging(c.Logging) },
		func() error { return validateGame(c.Game) },
		func() error { return validateRegistry(c.Registry) },
		func() error { return validateWebsocket(c.Websocket) },
		func() error { return validatePubSub(c.PubSub) },
	} {
		if err := fn(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", s.Port)
	}
	if s.AllowedOrigin != "*" && !strings.HasPrefix(s.AllowedOrigin, "http://") && !strings.HasPrefix(s.AllowedOrigin, "https://") {
		return fmt.Errorf("server.allowed_origin must be \"*\" or an http(s) origin, got %q", s.AllowedOrigin)
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateGame(g GameConfig) error {
	if g.DefaultBudgetSeconds < 1 {
		return fmt.Errorf("game.default_budget_seconds must be >= 1, got %d", g.DefaultBudgetSeconds)
	}
	return nil
}

func validateRegistry(r RegistryConfig) error {
	if r.RoomTTL < 0 {
		return errors.New("registry.room_ttl must not be negative")
	}
	if r.RoomTTL > 0 && r.SweepInterval <= 0 {
		return errors.New("registry.sweep_interval must be positive when room_ttl is set")
	}
	return nil
}

func validateWebsocket(w WebsocketConfig) error {
	var errs []string
	if w.WriteWait <= 0 {
		errs = append(errs, "websocket.write_wait must be positive")
	}
	if w.PongWait <= 0 {
		errs = append(errs, "websocket.pong_wait must be positive")
	}
	if w.PingPeriod <= 0 || w.PingPeriod >= w.PongWait {
		errs = append(errs, "websocket.ping_period must be positive and shorter than pong_wait")
	}
	if w.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("websocket.send_buffer must be >= 1, got %d", w.SendBuffer))
	}
	if w.ReadLimit < 1 {
		errs = append(errs, fmt.Sprintf("websocket.read_limit must be >= 1, got %d", w.ReadLimit))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validatePubSub(p PubSubConfig) error {
	switch p.Driver {
	case "local":
		return nil
	case "redis":
		if p.RedisAddr == "" {
			return errors.New("pubsub.redis_addr must not be empty when driver is redis")
		}
		if p.ChannelPrefix == "" {
			return errors.New("pubsub.channel_prefix must not be empty when driver is redis")
		}
		if p.PublishTimeout <= 0 {
			return fmt.Errorf("pubsub.publish_timeout must be positive when driver is redis, got %s", p.PublishTimeout)
		}
		return nil
	default:
		return fmt.Errorf("pubsub.driver must be one of [local, redis], got %q", p.Driver)
	}
}

// Load reads configuration from path (skipped when empty), applies CHESS_ environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9090)
	v.SetDefault("server.allowed_origin", "*")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("game.default_budget_seconds", 600)
	v.SetDefault("game.validate_moves", false)

	v.SetDefault("registry.room_ttl", "2h")
	v.SetDefault("registry.sweep_interval", "5m")

	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.ping_period", "54s")
	v.SetDefault("websocket.send_buffer", 64)
	v.SetDefault("websocket.read_limit", 4096)

	v.SetDefault("pubsub.driver", "local")
	v.SetDefault("pubsub.redis_addr", "localhost:6379")
	v.SetDefault("pubsub.redis_db", 0)
	v.SetDefault("pubsub.channel_prefix", "chess:room:")
	v.SetDefault("pubsub.publish_timeout", "500ms")
}
