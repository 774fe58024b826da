package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/terror/dsync/internal/config"
	"github.com/terror/dsync/internal/delta"
	"github.com/terror/dsync/internal/engine"
	"github.com/terror/dsync/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		strategyName string
		blockSize    int
		dryRun       bool
		verbose      bool
		quiet        bool
		bwLimitStr   string
		verifyFlag   bool
		showVersion  bool
	)

	rootCmd := &cobra.Command{
		Use:   "dsync <source> <destination>",
		Short: "Synchronise two local directories, transferring only what changed",
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "dsync %s\n", version)
				return nil
			}

			source, dest := args[0], args[1]

			// Load optional config file and apply defaults for flags not
			// explicitly set on the CLI.
			cfg, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "error", err)
			}
			if !cmd.Flags().Changed("strategy") && cfg.Defaults.Strategy != nil {
				strategyName = *cfg.Defaults.Strategy
			}
			if !cmd.Flags().Changed("block-size") && cfg.Defaults.BlockSize != nil {
				blockSize = *cfg.Defaults.BlockSize
			}
			if !cmd.Flags().Changed("bwlimit") && cfg.Defaults.BWLimit != nil {
				bwLimitStr = *cfg.Defaults.BWLimit
			}
			if !cmd.Flags().Changed("verify") && cfg.Defaults.Verify != nil {
				verifyFlag = *cfg.Defaults.Verify
			}
			if !cmd.Flags().Changed("verbose") && cfg.Defaults.Verbose != nil {
				verbose = *cfg.Defaults.Verbose
			}

			// Configure logging.
			logLevel := slog.LevelWarn
			if verbose {
				logLevel = slog.LevelDebug
			} else if quiet {
				logLevel = slog.LevelError
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			})))

			var limiter *rate.Limiter
			if bwLimitStr != "" {
				bytesPerSec, err := parseSize(bwLimitStr)
				if err != nil {
					return usageErr(fmt.Errorf("invalid --bwlimit: %w", err))
				}
				limiter = engine.NewBWLimiter(bytesPerSec)
			}

			strategy, deltaStrategy, err := buildStrategy(
				strategyName, blockSize, cmd.Flags().Changed("block-size"), limiter)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// The printer is active for previews and verbose runs; an
			// interactive terminal gets a transient progress bar instead.
			var reporter engine.Reporter
			if !quiet && (dryRun || verbose) {
				reporter = ui.NewPrinter(os.Stdout, dest, dryRun).Report
			}

			var progress *ui.ProgressBar
			if !quiet && !dryRun && !verbose && ui.IsInteractive(os.Stdout) {
				progress = ui.NewProgressBar(ui.CountSourceFiles(source), reporter)
				reporter = progress.Report
			}

			runErr := engine.Run(ctx, engine.Config{
				Source:   source,
				Dest:     dest,
				Strategy: strategy,
				DryRun:   dryRun,
				Verbose:  verbose,
				Verify:   verifyFlag,
				Reporter: reporter,
			})
			if progress != nil {
				progress.Wait()
			}
			if runErr != nil {
				return runErr
			}

			if dryRun {
				if !quiet {
					fmt.Fprintln(os.Stdout, "dry run complete; no changes were made")
				}
				return nil
			}
			if deltaStrategy != nil && !quiet {
				ui.PrintDeltaSummary(os.Stdout, dest, deltaStrategy.Stats())
			}
			return nil
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&strategyName, "strategy", "copy", "sync strategy: copy or delta")
	flags.IntVar(&blockSize, "block-size", 0, "block size in bytes for the delta strategy (default 65536)")
	flags.BoolVar(&dryRun, "dry-run", false, "preview sync actions without modifying the destination")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log each action, including skips")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	flags.StringVar(&bwLimitStr, "bwlimit", "", "limit destination write bandwidth (e.g. 10M)")
	flags.BoolVar(&verifyFlag, "verify", false, "verify destination checksums after syncing")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dsync: %v\n", err)
		return exitCode(err)
	}
	return 0
}

// buildStrategy validates the strategy flags and constructs the strategy
// object. blockSizeSet records whether --block-size was given on the
// command line: an explicit value is passed through untouched so that an
// explicit 0 is rejected rather than silently replaced by the default.
// The second return value is non-nil when the delta strategy is in use,
// for the post-run summary.
func buildStrategy(name string, blockSize int, blockSizeSet bool, limiter *rate.Limiter) (engine.Strategy, *engine.DeltaStrategy, error) {
	switch name {
	case "copy":
		if blockSizeSet {
			return nil, nil, usageErr(errors.New("--block-size can only be used with --strategy delta"))
		}
		return engine.NewCopier(limiter), nil, nil

	case "delta":
		if !blockSizeSet && blockSize == 0 {
			blockSize = delta.DefaultBlockSize
		}
		ds, err := engine.NewDeltaStrategy(engine.DeltaConfig{
			BlockSize: blockSize,
			Limiter:   limiter,
		})
		if err != nil {
			return nil, nil, err
		}
		return ds, ds, nil

	default:
		return nil, nil, usageErr(fmt.Errorf("unknown strategy %q (want copy or delta)", name))
	}
}

// usageErr marks an error as an argument problem for exit-code mapping.
func usageErr(err error) error {
	return &engine.SyncError{Kind: engine.ErrArgument, Err: err}
}

// exitCode maps a failure to the documented exit codes: 1 for argument
// errors, 2 for IO and strategy failures.
func exitCode(err error) int {
	var syncErr *engine.SyncError
	if errors.As(err, &syncErr) {
		if syncErr.Kind == engine.ErrArgument {
			return 1
		}
		return 2
	}
	// Cobra usage errors and anything unclassified.
	return 1
}

// parseSize parses a byte count with an optional K/M/G suffix.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size")
	}

	multiplier := int64(1)
	switch s[len(s)-1] {
	case 'k', 'K':
		multiplier = 1 << 10
		s = s[:len(s)-1]
	case 'm', 'M':
		multiplier = 1 << 20
		s = s[:len(s)-1]
	case 'g', 'G':
		multiplier = 1 << 30
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("size must be positive")
	}
	return n * multiplier, nil
}
