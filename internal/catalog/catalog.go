package catalog

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"audiencelens/internal/errs"
	"audiencelens/internal/logging"
	"audiencelens/internal/models"
)

// Catalog owns the current Snapshot behind a pointer swap: readers take the
// pointer once and use it for the lifetime of their request, so a reload
// that completes mid-request never changes what that request sees (§5,
// "Catalog snapshots provide read-consistent views").
type Catalog struct {
	ptr atomic.Pointer[Snapshot]

	path            string
	csvFallbackPath string
	embeddingsPath  string

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	onChange func() // test/observability hook, never auto-reloads
}

// New constructs a Catalog and performs the initial load. A load failure is
// fatal to startup (CatalogLoadError), matching §7's exit-code-1 policy —
// callers at cmd/ level are expected to abort the process on error.
func New(path, csvFallbackPath, embeddingsPath string) (*Catalog, error) {
	snap, err := Load(path, csvFallbackPath, embeddingsPath)
	if err != nil {
		return nil, err
	}
	c := &Catalog{path: path, csvFallbackPath: csvFallbackPath, embeddingsPath: embeddingsPath}
	c.ptr.Store(snap)
	return c, nil
}

// Snapshot returns the currently published snapshot. Safe for concurrent
// use; the returned pointer is stable even across a concurrent Reload.
func (c *Catalog) Snapshot() *Snapshot {
	return c.ptr.Load()
}

// Reload builds a brand new snapshot fully before publishing it, so readers
// never observe a half-built catalog. Honors ctx cancellation during the
// (potentially slow) file read.
func (c *Catalog) Reload(ctx context.Context) error {
	type result struct {
		snap *Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		snap, err := Load(c.path, c.csvFallbackPath, c.embeddingsPath)
		done <- result{snap, err}
	}()

	select {
	case <-ctx.Done():
		return errs.Wrap(errs.KindTimeout, "catalog reload cancelled", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		c.ptr.Store(r.snap)
		logging.Catalog("reloaded catalog: %d variables (%s)", r.snap.Count(), r.snap.SourceFormat)
		return nil
	}
}

// WatchForChanges starts an fsnotify watcher on the catalog's source files.
// It never calls Reload itself — "real-time index updates" is an explicit
// non-goal — it only logs that a reload is available and invokes onChange,
// if set, so an operator or metrics exporter can be notified.
func (c *Catalog) WatchForChanges(onChange func()) error {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, p := range []string{c.path, c.csvFallbackPath, c.embeddingsPath} {
		if p == "" {
			continue
		}
		if err := w.Add(p); err != nil {
			logging.Get(logging.CategoryCatalog).Warn("could not watch %s: %v", p, err)
		}
	}
	c.watcher = w
	c.onChange = onChange

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					logging.Catalog("catalog source changed on disk (%s); call Reload to pick it up", ev.Name)
					if c.onChange != nil {
						c.onChange()
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logging.Get(logging.CategoryCatalog).Warn("catalog watcher error: %v", err)
			}
		}
	}()
	return nil
}

// StopWatching closes the fsnotify watcher, if one was started.
func (c *Catalog) StopWatching() error {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	if c.watcher == nil {
		return nil
	}
	err := c.watcher.Close()
	c.watcher = nil
	return err
}

// Get looks up a variable by code in the current snapshot.
func (c *Catalog) Get(code string) (*models.Variable, bool) {
	v := c.Snapshot().Get(code)
	return v, v != nil
}
