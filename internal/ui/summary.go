package ui

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/terror/dsync/internal/stats"
)

// PrintDeltaSummary writes a per-file table of delta transfer accounting
// followed by run totals. Paths are shown relative to dstRoot.
func PrintDeltaSummary(w io.Writer, dstRoot string, entries map[string]stats.FileStats) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "delta transfer stats: no files processed")
		return
	}

	paths := make([]string, 0, len(entries))
	for path := range entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var total, transferred, reused int64

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tTRANSFERRED\tREUSED\tSAVED")
	for _, path := range paths {
		fs := entries[path]
		total += fs.TotalBytes
		transferred += fs.BytesTransferred
		reused += fs.MatchedBytes

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			relativeTo(dstRoot, path),
			stats.FormatBytes(fs.BytesTransferred),
			stats.FormatBytes(fs.MatchedBytes),
			stats.FormatBytes(fs.BytesSaved()),
		)
	}
	tw.Flush()

	saved := total - transferred
	if saved < 0 {
		saved = 0
	}
	fmt.Fprintf(w, "total: transferred %s | reused %s | saved %s\n",
		stats.FormatBytes(transferred), stats.FormatBytes(reused), stats.FormatBytes(saved))
}
