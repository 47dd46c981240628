package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handiism/naip-downloader/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	settings, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "https://nrcs.app.box.com", settings.Box.BaseURL)
	assert.Equal(t, "naip", settings.Box.VanityName)
	assert.Equal(t, "17936490251", settings.Box.RootFolderID)
	assert.Equal(t, 60*time.Second, settings.HTTP.Timeout)
	assert.Equal(t, "data", settings.Download.OutputDir)
	assert.True(t, settings.Download.Unzip)
	assert.False(t, settings.Download.Overwrite)
	assert.Equal(t, 0, settings.Download.ListingCacheSize)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "naip.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
download:
  output_dir: /mnt/naip
  unzip: false
http:
  timeout: 2m
  max_retries: 5
`), 0644))

	t.Setenv("NAIP_HTTP_MAX_RETRIES", "9")
	t.Setenv("NAIP_DOWNLOAD_CIR_ONLY", "true")

	settings, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/mnt/naip", settings.Download.OutputDir)
	assert.False(t, settings.Download.Unzip)
	assert.Equal(t, 2*time.Minute, settings.HTTP.Timeout)
	assert.Equal(t, 9, settings.HTTP.MaxRetries)

	mode, err := settings.FilterMode()
	require.NoError(t, err)
	assert.Equal(t, model.FilterCIROnly, mode)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_ConflictingFilters(t *testing.T) {
	v := viper.New()
	v.Set("download.cir_only", true)
	v.Set("download.rgb_only", true)

	_, err := Load(v, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		field  string
	}{
		{"bad base url", func(s *Settings) { s.Box.BaseURL = "nrcs.app.box.com" }, "box.base_url"},
		{"empty root", func(s *Settings) { s.Box.RootFolderID = "" }, "box.root_folder_id"},
		{"zero timeout", func(s *Settings) { s.HTTP.Timeout = 0 }, "http.timeout"},
		{"no attempts", func(s *Settings) { s.HTTP.MaxRetries = 0 }, "http.max_retries"},
		{"shrinking cooldown", func(s *Settings) { s.HTTP.RetryExponent = 0.5 }, "http.retry_exponent"},
		{"negative cache", func(s *Settings) { s.Download.ListingCacheSize = -1 }, "download.listing_cache_size"},
		{"unknown level", func(s *Settings) { s.Logging.Level = "loud" }, "logging.level"},
		{"unknown format", func(s *Settings) { s.Logging.Format = "xml" }, "logging.format"},
	}

	require.NoError(t, DefaultSettings().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)

			err := s.Validate()
			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "naip.yaml")

	s := DefaultSettings()
	s.Download.OutputDir = "/srv/naip"
	s.HTTP.RetryCooldown = 1500 * time.Millisecond
	s.Download.ListingCacheSize = 256
	require.NoError(t, s.Save(path))

	loaded, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestConversions(t *testing.T) {
	s := DefaultSettings()
	s.Box.BaseURL = "http://127.0.0.1:8080"

	endpoints := s.ToEndpoints()
	assert.Equal(t, "http://127.0.0.1:8080/v/naip/folder/1?page=1", endpoints.ListingURL("1", 1))

	opts := s.ToHTTPOptions()
	assert.Equal(t, s.HTTP.Timeout, opts.Timeout)
	assert.Equal(t, s.HTTP.MaxRetries, opts.MaxRetries)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("NAIP_LOGGING_LEVEL=debug\n"), 0644))

	t.Setenv("NAIP_LOGGING_LEVEL", "")
	os.Unsetenv("NAIP_LOGGING_LEVEL")

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "debug", os.Getenv("NAIP_LOGGING_LEVEL"))
}
