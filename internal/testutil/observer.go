package testutil

import (
	"fmt"
	"sync"

	"colsync/internal/collection"
)

// StopAfter returns an observer that allows n checkpoints and then asks
// the scan to stop.
func StopAfter(n int) collection.Observer {
	var mu sync.Mutex
	calls := 0
	return collection.ObserverFunc(func() bool {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return calls <= n
	})
}

// RecordingProgress records progress events as strings.
type RecordingProgress struct {
	mu     sync.Mutex
	events []string
}

func NewRecordingProgress() *RecordingProgress {
	return &RecordingProgress{}
}

func (p *RecordingProgress) record(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, fmt.Sprintf(format, args...))
}

// Events returns a copy of the recorded events.
func (p *RecordingProgress) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// Count returns how often an event was recorded.
func (p *RecordingProgress) Count(event string) int {
	n := 0
	for _, e := range p.Events() {
		if e == event {
			n++
		}
	}
	return n
}

func (p *RecordingProgress) StartCompleteScan()     { p.record("start-complete") }
func (p *RecordingProgress) FinishedCompleteScan()  { p.record("finished-complete") }
func (p *RecordingProgress) Cancelled()             { p.record("cancelled") }
func (p *RecordingProgress) TotalFilesToScan(n int) { p.record("total %d", n) }
func (p *RecordingProgress) ScannedFiles(n int)     { p.record("scanned %d", n) }
func (p *RecordingProgress) StartScanningForStaleAlbums() {
	p.record("start-stale")
}
func (p *RecordingProgress) FinishedScanningForStaleAlbums() {
	p.record("finished-stale")
}
func (p *RecordingProgress) StartScanningAlbumRoots() { p.record("start-roots") }
func (p *RecordingProgress) StartScanningAlbumRoot(root string) {
	p.record("start-root %s", root)
}
func (p *RecordingProgress) FinishedScanningAlbumRoot(root string) {
	p.record("finished-root %s", root)
}
func (p *RecordingProgress) StartScanningAlbum(root, album string) {
	p.record("start-album %s%s", root, album)
}
func (p *RecordingProgress) FinishedScanningAlbum(root, album string, files int) {
	p.record("finished-album %s%s", root, album)
}

var _ collection.ProgressListener = (*RecordingProgress)(nil)
