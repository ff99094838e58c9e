package leadimport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	processedDir    = "processed"
	failedDir       = "failed"
	defaultDebounce = 500 * time.Millisecond
)

type csvImporter interface {
	Import(ctx context.Context, r io.Reader, source string) (int, error)
}

// Watcher imports .csv files dropped into an inbox directory. Each file is imported once it has
// been quiet for the debounce window, then moved to processed/ or failed/.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	importer csvImporter
	dir      string
	debounce time.Duration
	pending  map[string]time.Time
	logger   *zap.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

func NewWatcher(dir string, importer csvImporter, logger *zap.Logger) (*Watcher, error) {
	for _, sub := range []string{"", processedDir, failedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create inbox dir: %w", err)
		}
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		watcher:  fw,
		importer: importer,
		dir:      dir,
		debounce: defaultDebounce,
		pending:  make(map[string]time.Time),
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start watches the inbox and queues files already sitting in it. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}
	w.mu.Lock()
	for _, e := range entries {
		if !e.IsDir() && isCSV(e.Name()) {
			w.pending[filepath.Join(w.dir, e.Name())] = time.Time{}
		}
	}
	w.mu.Unlock()

	w.logger.Info("watching import inbox", zap.String("dir", w.dir))
	go w.run(ctx)
	return nil
}

// Stop ends the event loop and releases the fsnotify watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("close inbox watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox watcher error", zap.Error(err))
		case <-ticker.C:
			w.processDue(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !isCSV(event.Name) || filepath.Dir(event.Name) != filepath.Clean(w.dir) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processDue(ctx context.Context) {
	now := time.Now()
	var due []string
	w.mu.Lock()
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			due = append(due, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range due {
		w.importFile(ctx, path)
	}
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		w.logger.Warn("open import file", zap.String("path", path), zap.Error(err))
		return
	}
	n, importErr := w.importer.Import(ctx, f, filepath.Base(path))
	f.Close()

	dest := processedDir
	if importErr != nil {
		dest = failedDir
		w.logger.Warn("import file failed", zap.String("path", path), zap.Error(importErr))
	} else {
		w.logger.Info("import file done", zap.String("path", path), zap.Int("inserted", n))
	}
	target := filepath.Join(w.dir, dest, time.Now().UTC().Format("20060102T150405")+"-"+filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		w.logger.Warn("move import file", zap.String("path", path), zap.String("target", target), zap.Error(err))
	}
}

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}
