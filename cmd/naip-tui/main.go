package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/handiism/naip-downloader/internal/config"
	"github.com/handiism/naip-downloader/internal/logging"
	"github.com/handiism/naip-downloader/internal/tui"
)

func main() {
	configFlag := flag.StringP("config", "c", "", "path to config file (default is ./naip.yaml if present)")
	flag.Parse()

	if err := run(*configFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	settings, err := config.Load(viper.New(), configPath)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI: log only when a file is configured.
	logger := zerolog.Nop()
	if settings.Logging.File != "" {
		l, closer, err := logging.New(settings.Logging, io.Discard)
		if err != nil {
			return err
		}
		defer closer.Close()
		logger = l
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	return tui.Run(ctx, settings, logger)
}
