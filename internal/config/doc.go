// Package config provides configuration management for naip-downloader.
//
// This package handles:
//   - Default configuration values
//   - Loading settings with Viper from a YAML file, .env files, NAIP_* environment variables and bound flags
//   - Validation of conflicting or invalid values
//   - Saving settings as YAML
//   - Conversion to box.Endpoints and http.Options for other packages
//
// # Loading
//
//	_ = config.LoadDotEnv()
//	v := viper.New()
//	_ = v.BindPFlag("download.output_dir", cmd.Flags().Lookup("output"))
//	settings, err := config.Load(v, "") // reads ./naip.yaml if present
//
// # Environment
//
// Every key can be set from the environment with the NAIP_ prefix and dots
// replaced by underscores:
//
//	NAIP_DOWNLOAD_OUTPUT_DIR=/mnt/naip NAIP_HTTP_TIMEOUT=2m naip-dl --year 2021 --state MS
//
// # Saving Settings
//
//	err := config.DefaultSettings().Save("naip.yaml")
package config
