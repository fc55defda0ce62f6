package content

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces bursts of writes to one tenant directory
// (editors and atomic renames fire several events per save).
const debounceWindow = 500 * time.Millisecond

// Watcher observes the content root and reports which tenant's files
// changed, debounced per tenant.
type Watcher struct {
	store    *FileStore
	onChange func(tenantID int64)

	mu      sync.Mutex
	pending map[int64]*time.Timer
}

// NewWatcher creates a watcher over the store's root. onChange is
// invoked from a timer goroutine once per debounce window per tenant.
func NewWatcher(store *FileStore, onChange func(tenantID int64)) *Watcher {
	return &Watcher{
		store:    store,
		onChange: onChange,
		pending:  map[int64]*time.Timer{},
	}
}

// Run watches until ctx is cancelled. Watch errors are logged and
// non-fatal; hot reload degrades to explicit reload commands.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.store.Root()); err != nil {
		return err
	}
	ids, err := w.store.TenantIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		dir := filepath.Join(w.store.Root(), strconv.FormatInt(id, 10))
		if err := fw.Add(dir); err != nil {
			slog.Warn("cannot watch tenant directory", "tenant", id, "error", err)
			continue
		}
		// helpers live one level deeper
		_ = fw.Add(filepath.Join(dir, dirHelpers))
	}

	slog.Info("content watcher started", "root", w.store.Root())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if id, ok := w.tenantOf(ev.Name); ok {
				w.schedule(id)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("content watcher error", "error", err)
		}
	}
}

// tenantOf maps an event path back to the owning tenant id: the first
// path element under the content root.
func (w *Watcher) tenantOf(path string) (int64, bool) {
	rel, err := filepath.Rel(w.store.Root(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return 0, false
	}
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	id, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (w *Watcher) schedule(tenantID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[tenantID]; ok {
		t.Reset(debounceWindow)
		return
	}
	w.pending[tenantID] = time.AfterFunc(debounceWindow, func() {
		w.mu.Lock()
		delete(w.pending, tenantID)
		w.mu.Unlock()
		w.onChange(tenantID)
	})
}
