// Package watch turns filesystem events below album roots into partial
// scans of the affected albums.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"colsync/internal/collection"
)

// DefaultDebounce is used when New is given a non-positive debounce.
const DefaultDebounce = 500 * time.Millisecond

// ScanFunc scans the album in directory dir.
type ScanFunc func(dir string) error

// Watcher watches every album directory of a set of roots. fsnotify is not
// recursive, so directories created later are added as they appear.
type Watcher struct {
	fsw      *fsnotify.Watcher
	roots    []string
	ignore   collection.Matcher
	debounce time.Duration
	logger   collection.Logger
	scan     ScanFunc
}

// New creates a watcher and registers all existing album directories.
// ignore may be nil.
func New(roots []string, ignore collection.Matcher, debounce time.Duration, logger collection.Logger, scan ScanFunc) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w := &Watcher{
		fsw:      fsw,
		debounce: debounce,
		ignore:   ignore,
		logger:   logger,
		scan:     scan,
	}
	for _, root := range roots {
		root = filepath.Clean(root)
		w.roots = append(w.roots, root)
		if err := w.addTree(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// root returns the album root containing p, or "".
func (w *Watcher) root(p string) string {
	best := ""
	for _, r := range w.roots {
		if (p == r || strings.HasPrefix(p, r+string(filepath.Separator))) && len(r) > len(best) {
			best = r
		}
	}
	return best
}

// skip reports whether directory or file p is hidden or ignored.
func (w *Watcher) skip(p string) bool {
	root := w.root(p)
	if root == "" {
		return true
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, elem := range strings.Split(rel, "/") {
		if strings.HasPrefix(elem, ".") {
			return true
		}
	}
	return w.ignore != nil && w.ignore.Match(rel)
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return fmt.Errorf("watching %s: %w", dir, err)
			}
			w.logger.Warn("cannot read directory", "path", p, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.skip(p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

// Run delivers debounced scans until ctx is done. Scan errors are logged
// and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			dir, ok := w.albumDir(event)
			if !ok {
				continue
			}
			pending[dir] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			dirs := make([]string, 0, len(pending))
			for d := range pending {
				dirs = append(dirs, d)
			}
			clear(pending)
			for _, dir := range pruneDirs(dirs) {
				w.logger.Debug("change detected", "album", dir)
				if err := w.scan(dir); err != nil {
					w.logger.Error("partial scan failed", "album", dir, "error", err)
				}
			}
		}
	}
}

// albumDir maps an event to the directory whose album must be rescanned.
func (w *Watcher) albumDir(event fsnotify.Event) (string, bool) {
	if event.Op == fsnotify.Chmod {
		return "", false
	}
	name := filepath.Clean(event.Name)
	if w.skip(name) {
		return "", false
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			if err := w.addTree(name); err != nil {
				w.logger.Warn("cannot watch new directory", "path", name, "error", err)
			}
		}
	}
	dir := filepath.Dir(name)
	if w.root(dir) == "" {
		// The root directory itself changed.
		return name, true
	}
	return dir, true
}

// pruneDirs sorts dirs and drops those inside another listed directory;
// a partial scan covers sub-albums.
func pruneDirs(dirs []string) []string {
	sort.Strings(dirs)
	var out []string
	for _, d := range dirs {
		if n := len(out); n > 0 {
			last := out[n-1]
			if d == last || strings.HasPrefix(d, last+string(filepath.Separator)) {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}
