package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

)

// DefaultDebounce is how long a file must stay quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-ingests files under a directory when they are written.
// Deleting a file does not remove its document; old versions age out through
// expiry.
type Watcher struct {
	batch    *Batch
	root     string
	opts     Options
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
	// results receives every ingestion outcome when non-nil.
	results chan<- FileResult
}

// NewWatcher watches root using batch for ingestion.
func NewWatcher(batch *Batch, root string, opts Options, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		batch:    batch,
		root:     filepath.Clean(root),
		opts:     opts,
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
	}
}

// Notify sends every ingestion outcome to ch. Call before Run.
func (w *Watcher) Notify(ch chan<- FileResult) {
	w.results = ch
}

// Run watches until ctx is done. It does not ingest existing files; run a
// Batch first for that.
func (w *Watcher) Run(ctx context.Context) error {
	if err := ValidatePatterns(w.opts.Include); err != nil {
		return fmt.Errorf("include: %w", err)
	}
	if err := ValidatePatterns(w.opts.Exclude); err != nil {
		return fmt.Errorf("exclude: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	m := matcher{include: w.opts.Include, exclude: w.opts.Exclude}
	if err := w.addTree(fw, m, w.root); err != nil {
		return err
	}
	w.batch.logger.Info(ctx, "watching for changes", zap.String("root", w.root), zap.Duration("debounce", w.debounce))

	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.batch.logger.Error(ctx, "fsnotify error", zap.Error(err))
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fw, m, ev)
		}
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, m matcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root {
			rel, _ := filepath.Rel(w.root, p)
			if defaultSkipDirs[d.Name()] || m.excludesDir(filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
		}
		if err := fw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, m matcher, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if ev.Has(fsnotify.Create) {
			if err := w.addTree(fw, m, ev.Name); err != nil {
				w.batch.logger.Warn(ctx, "cannot watch new directory", zap.String("path", ev.Name), zap.Error(err))
			}
		}
		return
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	// A changed sidecar re-ingests its document.
	target := ev.Name
	if strings.HasSuffix(rel, SidecarSuffix) {
		target = strings.TrimSuffix(ev.Name, SidecarSuffix)
		rel = strings.TrimSuffix(rel, SidecarSuffix)
	}
	if !info.Mode().IsRegular() || !m.matches(rel) {
		return
	}
	w.schedule(ctx, target, rel)
}

// schedule ingests path once it has been quiet for the debounce interval.
func (w *Watcher) schedule(ctx context.Context, path, rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.debounce)
		return
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.ingest(ctx, path, rel)
	})
	w.pending[path] = t
}

func (w *Watcher) ingest(ctx context.Context, path, rel string) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return
	}
	source := path
	if w.opts.SourcePrefix != "" {
		source = strings.TrimSuffix(w.opts.SourcePrefix, "/") + "/" + rel
	}
	fr := w.batch.ingestFile(ctx, w.batch.readerFor(w.opts), path, source, w.opts)
	w.batch.logger.Info(ctx, "file change ingested",
		zap.String("source", source),
		zap.String("action", string(fr.Action)),
		zap.Int("version", fr.Version),
		zap.String("error", fr.Error),
	)
	if w.results != nil {
		select {
		case w.results <- fr:
		case <-ctx.Done():
		}
	}
}

// stop cancels pending timers and waits for running ingestions.
func (w *Watcher) stop() {
	w.mu.Lock()
	for p, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, p)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
