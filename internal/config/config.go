// Package config loads wormtable settings from an optional YAML file,
// WORMTABLE_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tuannm99/wormtable"
	"github.com/tuannm99/wormtable/internal/index"
	"github.com/tuannm99/wormtable/internal/schema"
	"github.com/tuannm99/wormtable/internal/writer"
)

const EnvPrefix = "WORMTABLE"

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Table struct {
		CacheSize     ByteSize `mapstructure:"cache_size"`
		ReadCacheSize ByteSize `mapstructure:"read_cache_size"`
	} `mapstructure:"table"`

	Writer struct {
		BufferSize ByteSize `mapstructure:"buffer_size"`
		MaxRows    int      `mapstructure:"max_rows"`
	} `mapstructure:"writer"`

	Index struct {
		CacheSize        ByteSize `mapstructure:"cache_size"`
		SortBufferSize   ByteSize `mapstructure:"sort_buffer_size"`
		ProgressInterval uint64   `mapstructure:"progress_interval"`
		TempDir          string   `mapstructure:"temp_dir"`
	} `mapstructure:"index"`

	Limits struct {
		MaxRowSize     int `mapstructure:"max_row_size"`
		MaxNumElements int `mapstructure:"max_num_elements"`
	} `mapstructure:"limits"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("table.cache_size", ByteSize(wormtable.DefaultCacheSize).String())
	v.SetDefault("table.read_cache_size", ByteSize(wormtable.DefaultReadCacheSize).String())
	v.SetDefault("writer.buffer_size", ByteSize(writer.DefaultBufferSize).String())
	v.SetDefault("writer.max_rows", writer.DefaultMaxRows)
	v.SetDefault("index.cache_size", ByteSize(wormtable.DefaultReadCacheSize).String())
	v.SetDefault("index.sort_buffer_size", ByteSize(index.DefaultSortBufferSize).String())
	v.SetDefault("index.progress_interval", index.DefaultProgressInterval)
	v.SetDefault("index.temp_dir", "")
	v.SetDefault("limits.max_row_size", schema.MaxRowSize)
	v.SetDefault("limits.max_num_elements", schema.MaxNumElements)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// FlagKeys maps command line flag names to config keys. Only flags present
// in the set passed to Load are bound.
var FlagKeys = map[string]string{
	"cache-size":       "table.cache_size",
	"read-cache-size":  "table.read_cache_size",
	"buffer-size":      "writer.buffer_size",
	"max-rows":         "writer.max_rows",
	"index-cache-size": "index.cache_size",
	"sort-buffer-size": "index.sort_buffer_size",
	"progress":         "index.progress_interval",
	"temp-dir":         "index.temp_dir",
	"log-level":        "log.level",
	"log-format":       "log.format",
}

// Load reads path (skipped when empty), then the environment, then any
// flag in fs that was set. Later sources win.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range FlagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		ByteSizeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) limits() schema.Limits {
	return schema.Limits{
		MaxRowSize:     c.Limits.MaxRowSize,
		MaxNumElements: c.Limits.MaxNumElements,
	}
}

func (c *Config) Validate() error {
	if err := c.limits().Validate(); err != nil {
		return err
	}
	wc := writer.Config{BufferSize: int(c.Writer.BufferSize), MaxRows: c.Writer.MaxRows}
	if err := wc.Validate(c.limits()); err != nil {
		return err
	}
	for key, b := range map[string]ByteSize{
		"table.cache_size":       c.Table.CacheSize,
		"table.read_cache_size":  c.Table.ReadCacheSize,
		"index.cache_size":       c.Index.CacheSize,
		"index.sort_buffer_size": c.Index.SortBufferSize,
	} {
		if b <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalid, key)
		}
	}
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	return l, nil
}

// Options converts the config to table options.
func (c *Config) Options() wormtable.Options {
	return wormtable.Options{
		CacheSize:     int64(c.Table.CacheSize),
		ReadCacheSize: int64(c.Table.ReadCacheSize),
		BufferSize:    int(c.Writer.BufferSize),
		MaxRows:       c.Writer.MaxRows,
		Limits:        c.limits(),
		Index: wormtable.IndexOptions{
			CacheSize:        int64(c.Index.CacheSize),
			SortBufferSize:   int64(c.Index.SortBufferSize),
			TempDir:          c.Index.TempDir,
			ProgressInterval: c.Index.ProgressInterval,
		},
	}
}

// NewLogger builds a text or JSON logger writing to w at the configured
// level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := c.level()
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
