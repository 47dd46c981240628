package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/handiism/naip-downloader/internal/config"
)

// Set with -ldflags "-X main.version=...".
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "naip-dl %s (commit: %s, built: %s)\n", version, gitCommit, buildDate)
			fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newInitConfigCmd() *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init-config PATH",
		Short: "Write a configuration file with the default settings",
		Long: `Write a YAML configuration file holding every setting at its default value.

Every key can also be set from the environment with the NAIP_ prefix,
e.g. NAIP_DOWNLOAD_OUTPUT_DIR or NAIP_HTTP_TIMEOUT.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !overwrite {
				return fmt.Errorf("configuration file already exists: %s (use --overwrite to replace it)", path)
			}

			if err := config.DefaultSettings().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing file")
	return cmd
}
