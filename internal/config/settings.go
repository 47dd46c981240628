package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/handiism/naip-downloader/internal/box"
	"github.com/handiism/naip-downloader/internal/http"
	"github.com/handiism/naip-downloader/internal/model"
)

// EnvPrefix is prepended to every environment variable, e.g. NAIP_DOWNLOAD_OUTPUT_DIR.
const EnvPrefix = "NAIP"

// DefaultConfigName is the config file looked up in the working directory
// when no path is given.
const DefaultConfigName = "naip.yaml"

// Settings holds all configuration options.
type Settings struct {
	Box      BoxSettings      `mapstructure:"box" yaml:"box"`
	HTTP     HTTPSettings     `mapstructure:"http" yaml:"http"`
	Download DownloadSettings `mapstructure:"download" yaml:"download"`
	Logging  LoggingSettings  `mapstructure:"logging" yaml:"logging"`
}

// BoxSettings locates the shared folder.
type BoxSettings struct {
	BaseURL      string `mapstructure:"base_url" yaml:"base_url"`
	VanityName   string `mapstructure:"vanity_name" yaml:"vanity_name"`
	RootFolderID string `mapstructure:"root_folder_id" yaml:"root_folder_id"`
}

// HTTPSettings configures the HTTP client.
type HTTPSettings struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
	MaxRetries    int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryCooldown time.Duration `mapstructure:"retry_cooldown" yaml:"retry_cooldown"`
	RetryExponent float64       `mapstructure:"retry_exponent" yaml:"retry_exponent"`
}

// DownloadSettings controls where and how files are written.
type DownloadSettings struct {
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	Overwrite bool   `mapstructure:"overwrite" yaml:"overwrite"`
	Unzip     bool   `mapstructure:"unzip" yaml:"unzip"`
	CIROnly   bool   `mapstructure:"cir_only" yaml:"cir_only"`
	RGBOnly   bool   `mapstructure:"rgb_only" yaml:"rgb_only"`

	// ListingCacheSize is the number of listing pages kept in memory. 0 disables the cache.
	ListingCacheSize int `mapstructure:"listing_cache_size" yaml:"listing_cache_size"`
}

// LoggingSettings configures the operator log.
type LoggingSettings struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // console, json
	File   string `mapstructure:"file" yaml:"file"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	endpoints := box.DefaultEndpoints()
	httpOpts := http.DefaultOptions()

	return &Settings{
		Box: BoxSettings{
			BaseURL:      endpoints.BaseURL,
			VanityName:   endpoints.VanityName,
			RootFolderID: endpoints.RootFolderID,
		},
		HTTP: HTTPSettings{
			Timeout:       httpOpts.Timeout,
			UserAgent:     httpOpts.UserAgent,
			MaxRetries:    httpOpts.MaxRetries,
			RetryCooldown: httpOpts.RetryCooldown,
			RetryExponent: httpOpts.RetryExponent,
		},
		Download: DownloadSettings{
			OutputDir: "data",
			Overwrite: false,
			Unzip:     true,
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "console",
		},
	}
}

// Defaults registers the default value of every key on v.
func Defaults(v *viper.Viper) {
	d := DefaultSettings()

	v.SetDefault("box.base_url", d.Box.BaseURL)
	v.SetDefault("box.vanity_name", d.Box.VanityName)
	v.SetDefault("box.root_folder_id", d.Box.RootFolderID)

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)
	v.SetDefault("http.max_retries", d.HTTP.MaxRetries)
	v.SetDefault("http.retry_cooldown", d.HTTP.RetryCooldown)
	v.SetDefault("http.retry_exponent", d.HTTP.RetryExponent)

	v.SetDefault("download.output_dir", d.Download.OutputDir)
	v.SetDefault("download.overwrite", d.Download.Overwrite)
	v.SetDefault("download.unzip", d.Download.Unzip)
	v.SetDefault("download.cir_only", d.Download.CIROnly)
	v.SetDefault("download.rgb_only", d.Download.RGBOnly)
	v.SetDefault("download.listing_cache_size", d.Download.ListingCacheSize)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
}

// LoadDotEnv loads environment variables from the given .env files (".env"
// when none are given). Missing files are ignored; variables already set in
// the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load builds Settings from, in increasing priority: defaults, the config
// file, NAIP_* environment variables and any flags already bound to v.
//
// When configPath is empty, ./naip.yaml is read if it exists. An explicit
// configPath must exist.
func Load(v *viper.Viper, configPath string) (*Settings, error) {
	Defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if _, err := os.Stat(DefaultConfigName); err == nil {
		v.SetConfigFile(DefaultConfigName)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return &settings, nil
}

// Validate checks the settings for invalid or conflicting values.
// Every failure is a *model.ValidationError.
func (s *Settings) Validate() error {
	if _, err := s.FilterMode(); err != nil {
		return err
	}

	u, err := url.Parse(s.Box.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &model.ValidationError{Field: "box.base_url", Message: fmt.Sprintf("invalid URL %q", s.Box.BaseURL)}
	}
	if s.Box.VanityName == "" {
		return &model.ValidationError{Field: "box.vanity_name", Message: "must not be empty"}
	}
	if s.Box.RootFolderID == "" {
		return &model.ValidationError{Field: "box.root_folder_id", Message: "must not be empty"}
	}

	if s.HTTP.Timeout <= 0 {
		return &model.ValidationError{Field: "http.timeout", Message: "must be positive"}
	}
	if s.HTTP.MaxRetries < 1 {
		return &model.ValidationError{Field: "http.max_retries", Message: "must be at least 1"}
	}
	if s.HTTP.RetryCooldown < 0 {
		return &model.ValidationError{Field: "http.retry_cooldown", Message: "must not be negative"}
	}
	if s.HTTP.RetryExponent < 1 {
		return &model.ValidationError{Field: "http.retry_exponent", Message: "must be at least 1"}
	}

	if s.Download.OutputDir == "" {
		return &model.ValidationError{Field: "download.output_dir", Message: "must not be empty"}
	}
	if s.Download.ListingCacheSize < 0 {
		return &model.ValidationError{Field: "download.listing_cache_size", Message: "must not be negative"}
	}

	if _, err := zerolog.ParseLevel(s.Logging.Level); err != nil {
		return &model.ValidationError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", s.Logging.Level)}
	}
	switch s.Logging.Format {
	case "console", "json":
	default:
		return &model.ValidationError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q (want console or json)", s.Logging.Format)}
	}

	return nil
}

// Save writes settings to a YAML file, creating parent directories.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// FilterMode returns the composite filter selected by cir_only/rgb_only.
func (s *Settings) FilterMode() (model.FilterMode, error) {
	return model.NewFilterMode(s.Download.CIROnly, s.Download.RGBOnly)
}

// ToEndpoints converts settings to box.Endpoints.
func (s *Settings) ToEndpoints() box.Endpoints {
	return box.Endpoints{
		BaseURL:      s.Box.BaseURL,
		VanityName:   s.Box.VanityName,
		RootFolderID: s.Box.RootFolderID,
	}
}

// ToHTTPOptions converts settings to http.Options.
func (s *Settings) ToHTTPOptions() http.Options {
	return http.Options{
		Timeout:       s.HTTP.Timeout,
		UserAgent:     s.HTTP.UserAgent,
		MaxRetries:    s.HTTP.MaxRetries,
		RetryCooldown: s.HTTP.RetryCooldown,
		RetryExponent: s.HTTP.RetryExponent,
	}
}
