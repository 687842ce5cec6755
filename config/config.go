// Package config loads workspace settings from an optional file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"writing_workspace/taskstore"
)

// Config holds application configuration.
type Config struct {
	ServerAddr    string
	DataDir       string
	ScenariosPath string
	Verbose       bool
	Storage       StorageConfig
	LLM           LLMConfig
	Stream        StreamConfig
}

// StorageConfig selects the task store backend.
type StorageConfig struct {
	Driver   string // file or sqlite
	Key      string
	Capacity int
}

// LLMConfig holds provider settings.
type LLMConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// StreamConfig tunes the generation reveal.
type StreamConfig struct {
	ChunkSize  int
	IntervalMS int
}

// Interval returns IntervalMS as a duration.
func (s StreamConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMS) * time.Millisecond
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "writing-workspace")
	}
	return ".writing"
}

// Load reads configuration from path (or writing.yaml in the working
// directory when path is empty) and the environment. A missing file leaves
// the defaults in place.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("server_addr", ":8080")
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("scenarios_path", "")
	v.SetDefault("verbose", false)
	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.key", "nexus_writing_tasks")
	v.SetDefault("storage.capacity", 50)
	v.SetDefault("llm.provider", "qwen")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("stream.chunk_size", 10)
	v.SetDefault("stream.interval_ms", 50)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("writing")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WRITING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", "QWEN_API_KEY", "WRITING_LLM_API_KEY")
	_ = v.BindEnv("llm.base_url", "QWEN_BASE_URL", "WRITING_LLM_BASE_URL")
	_ = v.BindEnv("llm.model", "QWEN_MODEL", "WRITING_LLM_MODEL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	c := Config{
		ServerAddr:    v.GetString("server_addr"),
		DataDir:       v.GetString("data_dir"),
		ScenariosPath: v.GetString("scenarios_path"),
		Verbose:       v.GetBool("verbose"),
		Storage: StorageConfig{
			Driver:   strings.ToLower(v.GetString("storage.driver")),
			Key:      v.GetString("storage.key"),
			Capacity: v.GetInt("storage.capacity"),
		},
		LLM: LLMConfig{
			Provider: v.GetString("llm.provider"),
			Model:    v.GetString("llm.model"),
			APIKey:   v.GetString("llm.api_key"),
			BaseURL:  v.GetString("llm.base_url"),
		},
		Stream: StreamConfig{
			ChunkSize:  v.GetInt("stream.chunk_size"),
			IntervalMS: v.GetInt("stream.interval_ms"),
		},
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks for values the workspace cannot run with.
func (c Config) Validate() error {
	var errs []string
	switch c.Storage.Driver {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("storage.driver %q is invalid, must be file or sqlite", c.Storage.Driver))
	}
	if !taskstore.ValidKey(c.Storage.Key) {
		errs = append(errs, fmt.Sprintf("storage.key %q is invalid, use letters, digits, '_', '.' or '-'", c.Storage.Key))
	}
	if c.Storage.Capacity <= 0 {
		errs = append(errs, fmt.Sprintf("storage.capacity must be positive, got %d", c.Storage.Capacity))
	}
	if c.Stream.ChunkSize <= 0 {
		errs = append(errs, fmt.Sprintf("stream.chunk_size must be positive, got %d", c.Stream.ChunkSize))
	}
	if c.Stream.IntervalMS <= 0 {
		errs = append(errs, fmt.Sprintf("stream.interval_ms must be positive, got %d", c.Stream.IntervalMS))
	}
	if c.DataDir == "" {
		errs = append(errs, "data_dir must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
