package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/izo/unwebarchiver/internal/bplist"
	"github.com/izo/unwebarchiver/internal/models"
	"github.com/izo/unwebarchiver/internal/storage"
)

// Event kinds passed to EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change. The change
// kind is one of EventCreated, EventUpdated, EventDeleted.
type EventCallback func(change models.ArchiveChange)

type watcher struct {
	db     ArchiveIndex
	store  storage.Provider
	root   string
	logger *slog.Logger
	cb     EventCallback
	opts   []bplist.Option
}

// Watch starts an fsnotify watcher on the library root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each successful index mutation.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// index entries whose files no longer exist on disk.
func Watch(ctx context.Context, db ArchiveIndex, store storage.Provider, root string, logger *slog.Logger, cb EventCallback, opts ...bplist.Option) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, root); err != nil {
		return err
	}

	w := &watcher{db: db, store: store, root: root, logger: logger, cb: cb, opts: opts}
	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			w.reconcile()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(fw, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					w.indexNewDir(absPath)
					continue
				}
			}

			base := filepath.Base(absPath)
			if strings.HasPrefix(base, ".") || !storage.IsArchive(base) {
				continue
			}
			rel, ok := w.rel(absPath)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind := EventUpdated
				if ev.Op&fsnotify.Create != 0 {
					kind = EventCreated
				}
				w.index(rel, kind, "watcher")

			case ev.Op&fsnotify.Remove != 0:
				w.remove(rel, "watcher")

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the old path only; the new path
				// arrives as a Create if it stays inside a watched dir.
				w.remove(rel, "watcher")
				scheduleReconcile()
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *watcher) rel(abs string) (string, bool) {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *watcher) index(rel, kind, source string) {
	data, err := w.store.Read(rel)
	if err != nil {
		w.logger.Warn(source+": read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	summary, err := IndexArchive(w.db, rel, data, time.Now(), w.opts...)
	if err != nil {
		w.logger.Warn(source+": index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug(source+": indexed", slog.String("path", rel), slog.String("op", kind),
		slog.Int("resources", summary.ResourceCount))
	if w.cb != nil {
		w.cb(models.ArchiveChange{Kind: kind, Path: rel, Summary: &summary})
	}
}

func (w *watcher) remove(rel, source string) {
	if err := w.db.DeleteArchive(rel); err != nil {
		w.logger.Warn(source+": delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug(source+": deleted", slog.String("path", rel))
	if w.cb != nil {
		w.cb(models.ArchiveChange{Kind: EventDeleted, Path: rel})
	}
}

// reconcile removes index entries without a file on disk and indexes
// on-disk archives that are missing or changed.
func (w *watcher) reconcile() {
	checksums, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			w.remove(p, "reconcile")
		}
	}
	for p, cs := range disk {
		if checksums[p] != cs {
			w.index(p, EventCreated, "reconcile")
		}
	}
}

// indexNewDir indexes archives already present in a newly created directory.
func (w *watcher) indexNewDir(dirPath string) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasPrefix(d.Name(), ".") || !storage.IsArchive(d.Name()) {
			return nil
		}
		if rel, ok := w.rel(path); ok {
			w.index(rel, EventCreated, "watcher")
		}
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
