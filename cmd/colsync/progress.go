package main

import (
	"fmt"
	"io"
	"time"

	"colsync/internal/collection"

	"github.com/dustin/go-humanize"
)

// progressPrinter writes scan progress as plain lines.
type progressPrinter struct {
	w       io.Writer
	total   int
	scanned int
	started time.Time
}

var _ collection.ProgressListener = (*progressPrinter)(nil)

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) StartCompleteScan() {
	p.started = time.Now()
	fmt.Fprintln(p.w, "Starting complete scan")
}

func (p *progressPrinter) FinishedCompleteScan() {
	fmt.Fprintf(p.w, "Complete scan finished in %s\n", time.Since(p.started).Truncate(time.Millisecond))
}

func (p *progressPrinter) Cancelled() {
	fmt.Fprintln(p.w, "Scan cancelled")
}

func (p *progressPrinter) TotalFilesToScan(count int) {
	p.total = count
	fmt.Fprintf(p.w, "%s files to scan\n", humanize.Comma(int64(count)))
}

func (p *progressPrinter) ScannedFiles(count int) {
	p.scanned += count
}

func (p *progressPrinter) StartScanningForStaleAlbums() {
	fmt.Fprintln(p.w, "Looking for stale albums")
}

func (p *progressPrinter) FinishedScanningForStaleAlbums() {}

func (p *progressPrinter) StartScanningAlbumRoots() {}

func (p *progressPrinter) StartScanningAlbumRoot(rootPath string) {
	fmt.Fprintf(p.w, "Scanning %s\n", rootPath)
}

func (p *progressPrinter) FinishedScanningAlbumRoot(rootPath string) {}

func (p *progressPrinter) StartScanningAlbum(rootPath, album string) {}

func (p *progressPrinter) FinishedScanningAlbum(rootPath, album string, filesCount int) {
	if p.total > 0 {
		fmt.Fprintf(p.w, "  %s (%d files) [%d%%]\n", album, filesCount, min(100, p.scanned*100/p.total))
		return
	}
	fmt.Fprintf(p.w, "  %s (%d files)\n", album, filesCount)
}
