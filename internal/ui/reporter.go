// Package ui renders sync actions, progress, and delta summaries for the
// command line.
package ui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/terror/dsync/internal/engine"
)

// Printer writes one line per action, with paths shown relative to the
// destination root.
type Printer struct {
	w       io.Writer
	dstRoot string
	prefix  string
}

// NewPrinter returns a printer for actions under dstRoot. In dry-run
// mode every line is prefixed so preview output cannot be mistaken for a
// real run.
func NewPrinter(w io.Writer, dstRoot string, dryRun bool) *Printer {
	prefix := ""
	if dryRun {
		prefix = "DRY RUN: "
	}
	return &Printer{w: w, dstRoot: dstRoot, prefix: prefix}
}

// Report implements engine.Reporter.
func (p *Printer) Report(a engine.Action) {
	line := fmt.Sprintf("%s%s: %s", p.prefix, a.Kind, relativeTo(p.dstRoot, a.Path))
	if a.Reason != "" {
		line += fmt.Sprintf(" (%s)", a.Reason)
	}
	fmt.Fprintln(p.w, line)
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return path
	}
	return rel
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
