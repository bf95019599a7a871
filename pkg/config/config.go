package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config - корневая структура конфигурации приложения
type Config struct {
	Logger LoggerConfig `yaml:"logger"`
	Server ServerConfig `yaml:"http-server"`
	DB     `yaml:"db"`
}

type ServerConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

type DB struct {
	WAL      WALConfig      `yaml:"wal"`
	Memtable MemtableConfig `yaml:"memtable"`
}

type WALConfig struct {
	Dir string `yaml:"dir"`
}

type MemtableConfig struct {
	// FlushThresholdBytes is advisory: the store only reports when it is exceeded.
	FlushThresholdBytes int64 `yaml:"flush_threshold"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "DEBUG",
			JSON:  false,
		},
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: time.Second,
		},
		DB: DB{
			WAL: WALConfig{
				Dir: "./data/wal",
			},
			Memtable: MemtableConfig{
				FlushThresholdBytes: 4 * 1024 * 1024,
			},
		},
	}
}

// Load reads a YAML config on top of Default. A missing file yields Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("config file not found, using default config", "path", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: http-server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.DB.WAL.Dir == "" {
		return fmt.Errorf("%w: db.wal.dir is required", ErrInvalidConfig)
	}
	if c.DB.Memtable.FlushThresholdBytes < 1 {
		return fmt.Errorf("%w: db.memtable.flush_threshold must be positive", ErrInvalidConfig)
	}
	if _, err := c.Logger.SlogLevel(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// SlogLevel parses Level, accepting DEBUG/INFO/WARN/ERROR in any case.
func (l LoggerConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return level, fmt.Errorf("logger.level %q: %w", l.Level, err)
	}
	return level, nil
}
