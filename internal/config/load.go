package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FUTURIZE"

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level": "log.level",
	"executor":  "executor.kind",
	"workers":   "executor.workers",
	"backend":   "imaging.backend",
	"images":    "gallery.images",
	"seed":      "gallery.seed",
	"dir":       "gallery.dir",
	"watch":     "gallery.watch",
}

// RegisterFlags defines the flags Load understands on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML, TOML or JSON config file")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("executor", "go", "task executor (go, pool)")
	fs.Int("workers", 4, "pool workers when --executor=pool")
	fs.String("backend", "std", "image backend")
	fs.Int("images", 12, "number of images in the gallery")
	fs.Int("seed", 0, "seed of the first image")
	fs.String("dir", "", "load images from this directory instead of the network")
	fs.Bool("watch", false, "reload images changed in --dir")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("executor.kind", "go")
	v.SetDefault("executor.workers", 4)
	v.SetDefault("executor.queue_capacity", 64)

	v.SetDefault("imaging.backend", "std")
	v.SetDefault("imaging.vector_size", 512)

	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.requests_per_second", 4.0)
	v.SetDefault("fetch.burst", 4)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.chunk_size", 32<<10)
	v.SetDefault("fetch.max_bytes", 32<<20)
	v.SetDefault("fetch.user_agent", "futurize-gallery/1.0")

	v.SetDefault("gallery.images", 12)
	v.SetDefault("gallery.width", 640)
	v.SetDefault("gallery.height", 480)
	v.SetDefault("gallery.seed", 0)
	v.SetDefault("gallery.poll_interval", 50*time.Millisecond)
	v.SetDefault("gallery.dir", "")
	v.SetDefault("gallery.watch", false)
}

// Load builds a Config. Precedence, lowest first: defaults, the file named
// by the --config flag, FUTURIZE_* environment variables, flags set on the
// command line. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", f.Value.String(), err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: invalid %s: %w", strings.Join(fields, ", "), err)
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
