package collection

import "context"

// Observer is polled at every scan checkpoint. Returning false stops the
// current top-level call.
type Observer interface {
	ContinueQuery() bool
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func() bool

func (f ObserverFunc) ContinueQuery() bool { return f() }

// ContextObserver continues until ctx is done.
func ContextObserver(ctx context.Context) Observer {
	return ObserverFunc(func() bool {
		return ctx.Err() == nil
	})
}

// ProgressListener receives scan progress. For each album root, the root
// start always precedes its album events, which precede the root finish.
type ProgressListener interface {
	StartCompleteScan()
	FinishedCompleteScan()
	Cancelled()
	TotalFilesToScan(count int)
	ScannedFiles(count int)
	StartScanningForStaleAlbums()
	FinishedScanningForStaleAlbums()
	StartScanningAlbumRoots()
	StartScanningAlbumRoot(rootPath string)
	FinishedScanningAlbumRoot(rootPath string)
	StartScanningAlbum(rootPath, album string)
	FinishedScanningAlbum(rootPath, album string, filesCount int)
}

// NopProgress ignores all progress events.
type NopProgress struct{}

func (NopProgress) StartCompleteScan() {}
func (NopProgress) FinishedCompleteScan() {}
func (NopProgress) Cancelled() {}
func (NopProgress) TotalFilesToScan(int) {}
func (NopProgress) ScannedFiles(int) {}
func (NopProgress) StartScanningForStaleAlbums() {}
func (NopProgress) FinishedScanningForStaleAlbums() {}
func (NopProgress) StartScanningAlbumRoots() {}
func (NopProgress) StartScanningAlbumRoot(string) {}
func (NopProgress) FinishedScanningAlbumRoot(string) {}
func (NopProgress) StartScanningAlbum(string, string) {}
func (NopProgress) FinishedScanningAlbum(string, string, int) {}

var _ ProgressListener = NopProgress{}
