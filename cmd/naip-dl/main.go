package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/handiism/naip-downloader/internal/config"
	"github.com/handiism/naip-downloader/internal/download"
	"github.com/handiism/naip-downloader/internal/logging"
	"github.com/handiism/naip-downloader/internal/model"
)

// options holds the flags that are not configuration keys.
type options struct {
	configFile string
	year       int
	state      string
	force      bool
	listYears  bool
	listStates bool
	noUnzip    bool
	verbose    bool
}

// flagKeys maps flags onto the configuration keys they override.
var flagKeys = map[string]string{
	"output":    "download.output_dir",
	"overwrite": "download.overwrite",
	"cir-only":  "download.cir_only",
	"rgb-only":  "download.rgb_only",
	"log-level": "logging.level",
	"timeout":   "http.timeout",
}

var errFailed = errors.New("download finished with errors")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "naip-dl",
		Short: "Download NAIP imagery from the NRCS Box folder",
		Long: `naip-dl downloads National Agriculture Imagery Program composites published
by USDA NRCS on Box, laid out as <output>/<year>/<STATE>/<composite>/.

Files already on disk are skipped, so an interrupted run can simply be
started again.`,
		Example: `  naip-dl --year 2025 --state ms    Download MS data for 2025
  naip-dl --state ms                Download MS data for all years
  naip-dl --year 2025               Download all states for 2025
  naip-dl --force                   Download all data without confirmation
  naip-dl --output ./downloads      Specify custom output directory
  naip-dl --list-years              List all available years
  naip-dl --list-years MS           List years available for MS
  naip-dl --list-states 2020        List states available for 2020
  naip-dl --no-unzip --year 2020    Download 2020 data but keep zip files`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, v, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.year, "year", 0, "year to download (if not specified, downloads all available years)")
	flags.StringVar(&opts.state, "state", "", "state abbreviation to download (if not specified, downloads all available states)")
	flags.StringP("output", "o", "", "output directory for downloaded files (default \"data\")")
	flags.BoolVar(&opts.force, "force", false, "skip confirmation prompt when downloading all available data")
	flags.BoolVar(&opts.listYears, "list-years", false, "list available years; pass a STATE argument to see years for that state")
	flags.BoolVar(&opts.listStates, "list-states", false, "list available states; pass a YEAR argument to see states for that year")
	flags.BoolVar(&opts.noUnzip, "no-unzip", false, "do not automatically unzip downloaded files")
	flags.Bool("overwrite", false, "overwrite existing files in the output directory")
	flags.Bool("cir-only", false, "download only CIR composites (<state>_c folders), superseded by <state>_m if it exists")
	flags.Bool("rgb-only", false, "download only RGB composites (<state>_n folders), superseded by <state>_m if it exists")
	flags.Duration("timeout", 0, "HTTP timeout for listings and for stalled downloads (default 1m0s)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "show every file event")

	persistent := cmd.PersistentFlags()
	persistent.StringVar(&opts.configFile, "config", "", "config file (default is ./naip.yaml if present)")
	persistent.String("log-level", "", "log level (debug, info, warn, error, disabled)")

	cmd.MarkFlagsMutuallyExclusive("cir-only", "rgb-only")
	cmd.MarkFlagsMutuallyExclusive("list-years", "list-states")

	cmd.AddCommand(newVersionCmd(), newInitConfigCmd())
	return cmd
}

// loadSettings reads .env, the config file, the environment and the flags.
func loadSettings(cmd *cobra.Command, v *viper.Viper, opts *options) (*config.Settings, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	for name, key := range flagKeys {
		if err := bindFlag(v, key, cmd.Flags().Lookup(name)); err != nil {
			return nil, err
		}
	}

	settings, err := config.Load(v, opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.noUnzip {
		settings.Download.Unzip = false
	}
	return settings, nil
}

func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) error {
	if flag == nil || !flag.Changed {
		return nil
	}
	return v.BindPFlag(key, flag)
}

func run(cmd *cobra.Command, v *viper.Viper, opts *options, args []string) error {
	out := cmd.OutOrStdout()

	settings, err := loadSettings(cmd, v, opts)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(settings.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := download.NewManager(settings, logger, progressPrinter(out, opts.verbose))
	if err != nil {
		return err
	}

	switch {
	case opts.listYears:
		return listYears(ctx, manager, out, args)
	case opts.listStates:
		return listStates(ctx, manager, out, args)
	case len(args) > 0:
		return fmt.Errorf("unexpected argument %q", args[0])
	}

	var year *int
	if cmd.Flags().Changed("year") {
		year = &opts.year
	}

	if year == nil && opts.state == "" && !opts.force {
		if !confirm(cmd.InOrStdin(), out) {
			fmt.Fprintln(out, "Download cancelled.")
			return nil
		}
	}

	fmt.Fprintf(out, "Output directory: %s\n", settings.Download.OutputDir)
	if opts.state == "" {
		fmt.Fprintln(out, "No state specified. Downloading all available states...")
	}

	report, err := manager.Download(ctx, year, opts.state)
	if report != nil {
		printSummary(out, report)
	}

	if ctx.Err() != nil {
		fmt.Fprintln(out, "\nDownload interrupted by user.")
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("error during download: %w", err)
	}
	if len(report.Errors()) > 0 || report.Totals().FailedCount() > 0 {
		logger.Warn().
			Int("targets_failed", len(report.Errors())).
			Int("files_failed", report.Totals().FailedCount()).
			Msg("run finished with failures")
		return errFailed
	}
	return nil
}

func listYears(ctx context.Context, manager *download.Manager, out io.Writer, args []string) error {
	if len(args) == 0 {
		years, err := manager.AvailableYears(ctx, "")
		if err != nil {
			return err
		}
		if len(years) == 0 {
			fmt.Fprintln(out, "No years found")
			return nil
		}
		fmt.Fprintln(out, "Available years:")
		for _, y := range years {
			fmt.Fprintf(out, "  %d\n", y)
		}
		return nil
	}

	state := model.NormalizeState(args[0])
	fmt.Fprintf(out, "Getting available years for state %s...\n", state)

	years, err := manager.AvailableYears(ctx, state)
	if err != nil {
		return err
	}
	if len(years) == 0 {
		fmt.Fprintf(out, "No years found for state %s\n", state)
		return nil
	}

	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = strconv.Itoa(y)
	}
	fmt.Fprintf(out, "Found %d years: %s\n", len(years), strings.Join(parts, ", "))
	return nil
}

func listStates(ctx context.Context, manager *download.Manager, out io.Writer, args []string) error {
	var year *int
	if len(args) > 0 {
		y, err := parseYear(args[0])
		if err != nil {
			return err
		}
		year = &y
	}

	states, err := manager.AvailableStates(ctx, year)
	if err != nil {
		return err
	}

	switch {
	case len(states) == 0 && year != nil:
		fmt.Fprintf(out, "No states found for year %d\n", *year)
	case len(states) == 0:
		fmt.Fprintln(out, "No states found")
	default:
		if year != nil {
			fmt.Fprintf(out, "Available states for %d:\n", *year)
		} else {
			fmt.Fprintln(out, "Available states:")
		}
		for _, s := range states {
			fmt.Fprintf(out, "  %s\n", s)
		}
	}
	return nil
}

func parseYear(arg string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || y <= 0 {
		return 0, fmt.Errorf("invalid year: %s", arg)
	}
	return y, nil
}

// confirm asks before downloading everything. It keeps asking until the
// answer is y or n; end of input counts as n.
func confirm(in io.Reader, out io.Writer) bool {
	fmt.Fprintln(out, "\nWARNING: You are about to download ALL available NAIP imagery in NRCS's Box repo!")
	fmt.Fprintln(out, "This could be a very large amount of data and may take a significant amount of time.")
	fmt.Fprintln(out, "Are you sure you want to proceed?")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Type 'y' to continue or 'n' to cancel: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return false
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y":
			return true
		case "n":
			return false
		default:
			fmt.Fprintln(out, "Please enter 'y' or 'n'.")
		}
	}
}

func progressPrinter(out io.Writer, verbose bool) func(download.ProgressEvent) {
	return func(event download.ProgressEvent) {
		if event.Level == download.LevelVerbose && !verbose {
			return
		}

		prefix := ""
		switch event.Level {
		case download.LevelError:
			prefix = "❌ "
		case download.LevelWarning:
			prefix = "⚠️  "
		case download.LevelSuccess:
			prefix = "✅ "
		case download.LevelInfo:
			prefix = "ℹ️  "
		default:
			prefix = "   "
		}

		fmt.Fprintln(out, prefix+event.Message)
	}
}

func printSummary(out io.Writer, report *download.RunReport) {
	totals := report.Totals()

	fmt.Fprintln(out)
	fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(out, "✨ Run %s: %d targets, %d downloaded (%s), %d skipped, %d extracted, %d failed\n",
		report.RunID, len(report.Targets), totals.Downloaded, humanize.Bytes(uint64(totals.Bytes)),
		totals.Skipped, totals.Extracted, totals.FailedCount())

	for _, t := range report.Targets {
		for _, c := range t.Composites {
			for _, f := range c.Failed {
				fmt.Fprintf(out, "   failed: %d/%s/%s/%s: %v\n", t.Year, t.State, c.Folder.Name, f.File.Name, f.Err)
			}
		}
	}
	for _, err := range report.Errors() {
		fmt.Fprintf(out, "   error: %v\n", err)
	}
}
