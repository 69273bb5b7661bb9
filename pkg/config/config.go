// Package config handles application configuration using Viper. Values
// come from an optional YAML file with environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"
)

const envPrefix = "TRAILSTOP"

// Config holds the full service configuration
type Config struct {
	Log      LogConfig
	Server   ServerConfig
	Feed     FeedConfig
	Storage  StorageConfig
	Telegram TelegramConfig
}

// LogConfig controls the console logger
type LogConfig struct {
	Level      string
	TimeLayout string
	Colored    bool
	JSON       bool
}

// ServerConfig controls the HTTP chart server
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FeedConfig selects and tunes the candle source
type FeedConfig struct {
	Source        string
	CacheTTL      time.Duration
	BinanceKey    string
	BinanceSecret string
}

// StorageConfig points the candle cache at a file. Empty means in-memory.
type StorageConfig struct {
	Path string
}

// TelegramConfig controls the Telegram notifier
type TelegramConfig struct {
	Enabled bool
	Token   string
	Users   []int64
}

// Load reads the configuration file when it exists and applies the
// TRAILSTOP_* environment overrides. Durations accept day and week units
// such as "1d" or "2w".
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.time_layout", "2006-01-02 15:04:05")
	v.SetDefault("log.colored", true)
	v.SetDefault("log.json", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("feed.source", "yahoo")
	v.SetDefault("feed.cache_ttl", "12h")
	v.SetDefault("storage.path", "")
	v.SetDefault("telegram.enabled", false)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
		}
	}

	cacheTTL, err := parseDuration(v.GetString("feed.cache_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid feed.cache_ttl: %w", err)
	}
	readTimeout, err := parseDuration(v.GetString("server.read_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid server.read_timeout: %w", err)
	}
	writeTimeout, err := parseDuration(v.GetString("server.write_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid server.write_timeout: %w", err)
	}

	source := v.GetString("feed.source")
	if source != "yahoo" && source != "binance" {
		return nil, fmt.Errorf("unknown feed.source %q", source)
	}

	config := &Config{
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			TimeLayout: v.GetString("log.time_layout"),
			Colored:    v.GetBool("log.colored"),
			JSON:       v.GetBool("log.json"),
		},
		Server: ServerConfig{
			Port:         v.GetInt("server.port"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		Feed: FeedConfig{
			Source:        source,
			CacheTTL:      cacheTTL,
			BinanceKey:    v.GetString("feed.binance_key"),
			BinanceSecret: v.GetString("feed.binance_secret"),
		},
		Storage: StorageConfig{
			Path: v.GetString("storage.path"),
		},
		Telegram: TelegramConfig{
			Enabled: v.GetBool("telegram.enabled"),
			Token:   v.GetString("telegram.token"),
			Users:   toInt64s(v.GetIntSlice("telegram.users")),
		},
	}

	return config, nil
}

// parseDuration understands the extended day and week units on top of the
// standard ones
func parseDuration(value string) (time.Duration, error) {
	return str2duration.ParseDuration(value)
}

func toInt64s(values []int) []int64 {
	result := make([]int64, len(values))
	for i, v := range values {
		result[i] = int64(v)
	}
	return result
}
