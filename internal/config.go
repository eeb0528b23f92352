package internal

import (
	"fmt"

	"github.com/spf13/viper"
)

type MoonSqlConfig struct {
	DataDir string `mapstructure:"data_dir"`

	BufferPool struct {
		Capacity int    `mapstructure:"capacity"`
		Policy   string `mapstructure:"policy"` // "lru" or "fifo"
	} `mapstructure:"buffer_pool"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// DefaultConfig is what you get with no config file: ./data, 64
// frames, LRU.
func DefaultConfig() *MoonSqlConfig {
	cfg := &MoonSqlConfig{DataDir: "./data"}
	cfg.BufferPool.Capacity = 64
	cfg.BufferPool.Policy = "lru"
	cfg.Log.Level = "info"
	return cfg
}

// LoadConfig reads a YAML config file; path == "" returns defaults.
func LoadConfig(path string) (*MoonSqlConfig, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("buffer_pool.capacity", cfg.BufferPool.Capacity)
	v.SetDefault("buffer_pool.policy", cfg.BufferPool.Policy)
	v.SetDefault("log.level", cfg.Log.Level)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
