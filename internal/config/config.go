// Package config loads the gallery configuration from defaults, an optional
// file, FUTURIZE_* environment variables and command-line flags.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log" validate:"required"`
	Executor ExecutorConfig `mapstructure:"executor" validate:"required"`
	Imaging  ImagingConfig  `mapstructure:"imaging" validate:"required"`
	Fetch    FetchConfig    `mapstructure:"fetch" validate:"required"`
	Gallery  GalleryConfig  `mapstructure:"gallery" validate:"required"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ExecutorConfig selects where task workers run. Kind "go" starts one
// goroutine per task; "pool" uses a bounded futurize.Pool.
type ExecutorConfig struct {
	Kind          string `mapstructure:"kind" validate:"required,oneof=go pool"`
	Workers       int    `mapstructure:"workers" validate:"min=1,max=1024"`
	QueueCapacity int    `mapstructure:"queue_capacity" validate:"min=0"`
}

// ImagingConfig selects the decoding backend.
type ImagingConfig struct {
	Backend    string `mapstructure:"backend" validate:"required"`
	VectorSize int    `mapstructure:"vector_size" validate:"min=16,max=8192"`
}

// FetchConfig configures the download client.
type FetchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"min=1"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"min=1,max=10"`
	ChunkSize         int           `mapstructure:"chunk_size" validate:"min=512"`
	MaxBytes          int64         `mapstructure:"max_bytes" validate:"min=1024"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// GalleryConfig configures the demo loop. With Dir set, images are loaded
// from disk instead of the network.
type GalleryConfig struct {
	Images       int           `mapstructure:"images" validate:"min=1,max=1000"`
	Width        int           `mapstructure:"width" validate:"min=1,max=5000"`
	Height       int           `mapstructure:"height" validate:"min=1,max=5000"`
	Seed         int           `mapstructure:"seed" validate:"min=0"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	Dir          string        `mapstructure:"dir"`
	Watch        bool          `mapstructure:"watch"`
}
