package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Config describes a synchronization run.
type Config struct {
	Source   string
	Dest     string
	Strategy Strategy // nil means whole-file copy
	DryRun   bool
	Verbose  bool
	Verify   bool
	Reporter Reporter
}

// Run brings cfg.Dest into byte agreement with cfg.Source, reporting
// each action as it completes. Actions are executed one at a time in
// planner order; the first failure aborts the run. In dry-run mode the
// destination is never touched: no temp files, no renames, no mkdir.
func Run(ctx context.Context, cfg Config) error {
	srcInfo, err := os.Stat(cfg.Source)
	if err != nil {
		return argErr(cfg.Source, fmt.Errorf("source: %w", err))
	}
	if !srcInfo.IsDir() {
		return argErr(cfg.Source, fmt.Errorf("source is not a directory"))
	}
	if dstInfo, err := os.Stat(cfg.Dest); err == nil {
		if !dstInfo.IsDir() {
			return argErr(cfg.Dest, fmt.Errorf("destination is not a directory"))
		}
	} else if !os.IsNotExist(err) {
		return destErr(cfg.Dest, err)
	}

	strategy := cfg.Strategy
	if strategy == nil {
		strategy = NewCopier(nil)
	}
	updateKind := CopyFile
	if _, ok := strategy.(*DeltaStrategy); ok {
		updateKind = DeltaFile
	}

	defer sweepTmpFiles()

	planner := NewPlanner(cfg.Source, cfg.Dest, updateKind)
	err = planner.Walk(ctx, func(step Step) error {
		if !cfg.DryRun {
			if err := execute(ctx, step, strategy); err != nil {
				return err
			}
		}
		report(cfg, step)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return asSyncError(err, sourceErr, cfg.Source)
	}

	if cfg.Verify && !cfg.DryRun {
		slog.Debug("verifying destination tree", "source", cfg.Source, "dest", cfg.Dest)
		if err := verifyTree(ctx, cfg.Source, cfg.Dest); err != nil {
			return err
		}
	}
	return nil
}

func execute(ctx context.Context, step Step, strategy Strategy) error {
	switch step.Kind {
	case CreateDir:
		if err := os.MkdirAll(step.DstPath, step.Mode.Perm()); err != nil {
			return destErr(step.DstPath, err)
		}
		return nil
	case CreateFile, CopyFile, DeltaFile:
		if err := strategy.SyncFile(ctx, step.SrcPath, step.DstPath); err != nil {
			return asSyncError(err, strategyErr, step.DstPath)
		}
		return nil
	case SkipDir, SkipFile:
		return nil
	default:
		return internalErr(step.DstPath, fmt.Errorf("unknown step kind %d", step.Kind))
	}
}

func report(cfg Config, step Step) {
	if cfg.Reporter == nil {
		return
	}
	if step.Kind.IsSkip() && !cfg.Verbose {
		return
	}
	cfg.Reporter(Action{Kind: step.Kind, Path: step.DstPath, Reason: step.Reason})
}
