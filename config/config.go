// vodgrab/config/config.go
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"vodgrab/media"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	OutputDir string `mapstructure:"OUTPUT_DIR"`
	InputFile string `mapstructure:"INPUT_FILE"`

	ProbeBase string  `mapstructure:"PROBE_BASE"`
	ProbeRate float64 `mapstructure:"PROBE_RATE"`
	Quality   string  `mapstructure:"QUALITY"`

	SegmentConcurrency int           `mapstructure:"SEGMENT_CONCURRENCY"`
	SegmentAttempts    int           `mapstructure:"SEGMENT_ATTEMPTS"`
	SegmentRetryDelay  time.Duration `mapstructure:"SEGMENT_RETRY_DELAY"`
	HTTPTimeout        time.Duration `mapstructure:"HTTP_TIMEOUT"`
	UserAgent          string        `mapstructure:"USER_AGENT"`

	FFBin       string        `mapstructure:"FF_BIN"`
	FFEnable    bool          `mapstructure:"FF_ENABLE"`
	FFTimeout   time.Duration `mapstructure:"FF_TIMEOUT"`
	FFExtraArgs string        `mapstructure:"FF_EXTRA_ARGS"`

	ThrottleCPU      float64 `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64   `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64   `mapstructure:"THROTTLE_FREEDISK"`

	ScrapeCourseClass string `mapstructure:"SCRAPE_COURSE_CLASS"`
	ScrapeTitleClass  string `mapstructure:"SCRAPE_TITLE_CLASS"`

	MaxConcurrency int           `mapstructure:"MAX_CONCURRENCY"`
	TaskRetention  time.Duration `mapstructure:"TASK_RETENTION"`
	AuthEnable     bool          `mapstructure:"AUTH_ENABLE"`
	AuthKey        string        `mapstructure:"AUTH_KEY"`
	Port           string        `mapstructure:"PORT"`

	Progress      bool   `mapstructure:"PROGRESS"`
	LogFile       string `mapstructure:"LOG_FILE"`
	LogMaxSizeMB  int    `mapstructure:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `mapstructure:"LOG_MAX_BACKUPS"`

	// QualityOrder is Quality parsed into probe order.
	QualityOrder []media.QualityTier `mapstructure:"-"`
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"config":      "",
	"output":      "OUTPUT_DIR",
	"quality":     "QUALITY",
	"concurrency": "SEGMENT_CONCURRENCY",
	"no-ffmpeg":   "",
	"port":        "PORT",
	"progress":    "PROGRESS",
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

// Load builds the configuration from defaults, an optional yaml file,
// VODGRAB_* environment variables and, when fs is non-nil, command line flags.
func Load(fs *pflag.FlagSet) (*Config, error) {
	vp := viper.New()

	vp.SetDefault("OUTPUT_DIR", ".")
	vp.SetDefault("INPUT_FILE", "inputs.txt")
	vp.SetDefault("PROBE_BASE", "https://www.skill-capped.com")
	vp.SetDefault("PROBE_RATE", 0.0)
	vp.SetDefault("QUALITY", "best")
	vp.SetDefault("SEGMENT_CONCURRENCY", 10)
	vp.SetDefault("SEGMENT_ATTEMPTS", 3)
	vp.SetDefault("SEGMENT_RETRY_DELAY", "1s")
	vp.SetDefault("HTTP_TIMEOUT", "30s")
	vp.SetDefault("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("FF_ENABLE", true)
	vp.SetDefault("FF_TIMEOUT", "30m")
	vp.SetDefault("FF_EXTRA_ARGS", "")
	vp.SetDefault("THROTTLE_CPU", 0.0)
	vp.SetDefault("THROTTLE_FREEMEM", "0B")
	vp.SetDefault("THROTTLE_FREEDISK", "200MB")
	vp.SetDefault("SCRAPE_COURSE_CLASS", "css-1rwlwny")
	vp.SetDefault("SCRAPE_TITLE_CLASS", "css-1juj8ih")
	vp.SetDefault("MAX_CONCURRENCY", 1)
	vp.SetDefault("TASK_RETENTION", "1h23m")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "123456")
	vp.SetDefault("PORT", "8080")
	vp.SetDefault("PROGRESS", true)
	vp.SetDefault("LOG_FILE", "")
	vp.SetDefault("LOG_MAX_SIZE_MB", 10)
	vp.SetDefault("LOG_MAX_BACKUPS", 3)

	configFile := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
	}

	if configFile != "" {
		vp.SetConfigFile(configFile)
		if err := vp.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		vp.SetConfigName("vodgrab_config")
		vp.SetConfigType("yaml")
		vp.AddConfigPath(".")
		vp.AddConfigPath("/etc/vodgrab/")

		if err := vp.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	vp.SetEnvPrefix("VODGRAB")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil || key == "" {
				continue
			}
			if err := vp.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
		// --no-ffmpeg only ever turns muxing off; it never forces it on.
		if f := fs.Lookup("no-ffmpeg"); f != nil && f.Changed && f.Value.String() == "true" {
			vp.Set("FF_ENABLE", false)
		}
	}

	var cfg Config
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and parses the quality preference.
func (c *Config) Validate() error {
	order, err := media.ParseQualityOrder(c.Quality)
	if err != nil {
		return fmt.Errorf("QUALITY: %w", err)
	}
	c.QualityOrder = order

	if c.SegmentConcurrency < 1 {
		return fmt.Errorf("SEGMENT_CONCURRENCY must be at least 1, got %d", c.SegmentConcurrency)
	}
	if c.SegmentAttempts < 1 {
		return fmt.Errorf("SEGMENT_ATTEMPTS must be at least 1, got %d", c.SegmentAttempts)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("MAX_CONCURRENCY must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.ProbeRate < 0 {
		return fmt.Errorf("PROBE_RATE cannot be negative")
	}
	if c.ProbeBase == "" {
		return fmt.Errorf("PROBE_BASE is required")
	}
	c.ProbeBase = strings.TrimSuffix(c.ProbeBase, "/")
	return nil
}
