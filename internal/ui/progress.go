package ui

import (
	"io/fs"
	"path/filepath"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/terror/dsync/internal/engine"
)

// ProgressBar renders a transient bar that advances once per file
// action. It composes with another reporter so actions still reach the
// verbose printer when both are active.
type ProgressBar struct {
	container *mpb.Progress
	bar       *mpb.Bar
	next      engine.Reporter
}

// NewProgressBar creates a bar sized to total file actions. next may be
// nil. Call Wait after the run to let the bar finish rendering.
func NewProgressBar(total int64, next engine.Reporter) *ProgressBar {
	container := mpb.New(
		mpb.WithWidth(60),
		mpb.WithRefreshRate(150*time.Millisecond),
	)
	bar := container.AddBar(total,
		mpb.PrependDecorators(
			decor.Name("Syncing", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
		),
		mpb.BarRemoveOnComplete(),
	)
	return &ProgressBar{container: container, bar: bar, next: next}
}

// Report implements engine.Reporter.
func (p *ProgressBar) Report(a engine.Action) {
	if a.Kind.IsFile() {
		p.bar.Increment()
	}
	if p.next != nil {
		p.next(a)
	}
}

// Wait completes the bar and blocks until rendering finishes.
func (p *ProgressBar) Wait() {
	p.bar.SetTotal(-1, true)
	p.container.Wait()
}

// CountSourceFiles returns the number of entries under root that will
// produce file actions, used to size the progress bar. Errors during the
// count are ignored; the real walk surfaces them.
func CountSourceFiles(root string) int64 {
	var count int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count
}
