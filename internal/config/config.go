// Package config loads console configuration from a YAML file and the
// environment. Environment values override file values, file values
// override defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/errs"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/storage"
	"go.yaml.in/yaml/v3"
)

// Config holds every tunable of the console.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Download DownloadConfig `yaml:"download"`
	Preview  PreviewConfig  `yaml:"preview"`
}

// StorageConfig selects and parameterises the storage backend.
type StorageConfig struct {
	Provider      string `yaml:"provider"` // minio | s3
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Region        string `yaml:"region"`
	UseSSL        bool   `yaml:"use_ssl"`
	DefaultBucket string `yaml:"default_bucket"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DownloadConfig holds batch download settings.
type DownloadConfig struct {
	Dir string `yaml:"dir"`
}

// PreviewConfig bounds preview fetching.
type PreviewConfig struct {
	// MaxBytes caps how much of an object is read for its preview.
	MaxBytes int64 `yaml:"max_bytes"`

	// Workers bounds the per-file enrichment and preview fan-out.
	Workers int `yaml:"workers"`
}

// Default returns the local-dev defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Provider: string(storage.ProviderMinIO),
			Endpoint: "localhost:9000",
		},
		Server: ServerConfig{
			Listen: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Download: DownloadConfig{
			Dir: "downloads",
		},
		Preview: PreviewConfig{
			MaxBytes: 8 << 20,
			Workers:  4,
		},
	}
}

// Load builds the configuration. An empty path skips the file step.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to parse config file", err)
		}
	}

	applyEnv(cfg)

	if cfg.Preview.Workers < 1 {
		cfg.Preview.Workers = Default().Preview.Workers
	}
	if cfg.Preview.MaxBytes < 1 {
		cfg.Preview.MaxBytes = Default().Preview.MaxBytes
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations no component could run with.
func (c *Config) Validate() error {
	switch storage.Provider(c.Storage.Provider) {
	case storage.ProviderMinIO, storage.ProviderS3:
	default:
		return errs.New(errs.ErrKindInvalidInput,
			fmt.Sprintf("unknown storage provider %q (want minio or s3)", c.Storage.Provider))
	}
	return nil
}

// applyEnv overlays GG_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setStr("GG_PROVIDER", &cfg.Storage.Provider)
	setStr("GG_ENDPOINT", &cfg.Storage.Endpoint)
	setStr("GG_ACCESS_KEY", &cfg.Storage.AccessKey)
	setStr("GG_SECRET_KEY", &cfg.Storage.SecretKey)
	setStr("GG_REGION", &cfg.Storage.Region)
	setStr("GG_BUCKET", &cfg.Storage.DefaultBucket)
	setStr("GG_LISTEN", &cfg.Server.Listen)
	setStr("GG_LOG_LEVEL", &cfg.Log.Level)
	setStr("GG_LOG_FORMAT", &cfg.Log.Format)
	setStr("GG_DOWNLOAD_DIR", &cfg.Download.Dir)

	if v := os.Getenv("GG_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Storage.UseSSL = b
		}
	}
}
