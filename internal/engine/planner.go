package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Step is one planned action, carrying both endpoints of the entry it
// concerns. Mode is populated for directory creation steps.
type Step struct {
	Kind    Kind
	SrcPath string
	DstPath string
	Reason  string
	Mode    os.FileMode
}

// Planner enumerates the source tree depth-first with siblings in
// lexicographic order and classifies each entry against the destination.
// It never mutates either tree, so the same plan is computed in dry-run
// mode.
type Planner struct {
	srcRoot    string
	dstRoot    string
	updateKind Kind // CopyFile or DeltaFile, per the configured strategy
}

// NewPlanner returns a planner rooted at srcRoot/dstRoot. updateKind is
// the action planned for files that exist on both sides but differ.
func NewPlanner(srcRoot, dstRoot string, updateKind Kind) *Planner {
	return &Planner{srcRoot: srcRoot, dstRoot: dstRoot, updateKind: updateKind}
}

// Walk yields every planned step to fn in traversal order: a directory's
// step precedes its children, children are visited in sorted name order.
// Walk stops at the first error.
func (p *Planner) Walk(ctx context.Context, fn func(Step) error) error {
	srcInfo, err := os.Stat(p.srcRoot)
	if err != nil {
		return sourceErr(p.srcRoot, err)
	}

	rootStep, err := p.classifyDir(p.srcRoot, p.dstRoot, srcInfo.Mode())
	if err != nil {
		return err
	}
	if err := fn(rootStep); err != nil {
		return err
	}
	return p.walkDir(ctx, p.srcRoot, p.dstRoot, fn)
}

func (p *Planner) walkDir(ctx context.Context, srcDir, dstDir string, fn func(Step) error) error {
	entries, err := os.ReadDir(srcDir) // sorted by name
	if err != nil {
		return sourceErr(srcDir, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		srcPath := filepath.Join(srcDir, entry.Name())
		dstPath := filepath.Join(dstDir, entry.Name())

		// Follow symlinks: entries are classified by their referents.
		info, err := os.Stat(srcPath)
		if err != nil {
			if entry.Type()&os.ModeSymlink != 0 {
				// Dangling link; nothing to transfer.
				if err := fn(Step{Kind: SkipFile, SrcPath: srcPath, DstPath: dstPath, Reason: "unsupported"}); err != nil {
					return err
				}
				continue
			}
			return sourceErr(srcPath, err)
		}

		switch {
		case info.IsDir():
			step, err := p.classifyDir(srcPath, dstPath, info.Mode())
			if err != nil {
				return err
			}
			if err := fn(step); err != nil {
				return err
			}
			if err := p.walkDir(ctx, srcPath, dstPath, fn); err != nil {
				return err
			}

		case info.Mode().IsRegular():
			step, err := p.classifyFile(srcPath, dstPath, info)
			if err != nil {
				return err
			}
			if err := fn(step); err != nil {
				return err
			}

		default:
			// Devices, sockets, fifos.
			if err := fn(Step{Kind: SkipFile, SrcPath: srcPath, DstPath: dstPath, Reason: "unsupported"}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Planner) classifyDir(srcPath, dstPath string, mode os.FileMode) (Step, error) {
	dstInfo, err := os.Stat(dstPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Step{Kind: CreateDir, SrcPath: srcPath, DstPath: dstPath, Mode: mode}, nil
		}
		return Step{}, destErr(dstPath, err)
	}
	if !dstInfo.IsDir() {
		return Step{}, destErr(dstPath, fmt.Errorf("not a directory"))
	}
	return Step{Kind: SkipDir, SrcPath: srcPath, DstPath: dstPath}, nil
}

func (p *Planner) classifyFile(srcPath, dstPath string, srcInfo os.FileInfo) (Step, error) {
	dstInfo, err := os.Stat(dstPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Step{Kind: CreateFile, SrcPath: srcPath, DstPath: dstPath}, nil
		}
		return Step{}, destErr(dstPath, err)
	}
	if dstInfo.IsDir() {
		return Step{}, destErr(dstPath, fmt.Errorf("is a directory, expected file"))
	}

	// mtime is compared at 1-second resolution so trees restored by
	// tools with coarser timestamps still skip cleanly.
	if srcInfo.Size() == dstInfo.Size() &&
		srcInfo.ModTime().Unix() == dstInfo.ModTime().Unix() {
		return Step{Kind: SkipFile, SrcPath: srcPath, DstPath: dstPath}, nil
	}
	return Step{Kind: p.updateKind, SrcPath: srcPath, DstPath: dstPath}, nil
}
