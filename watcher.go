// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package visbuffer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/visbuffer/internal/logging"
	"github.com/gogpu/visbuffer/pipeline"
)

// ErrWatcherClosed is returned by a closed ShaderWatcher.
var ErrWatcherClosed = errors.New("visbuffer: shader watcher closed")

// LoadShaderDir registers the files of dir that name a known shader,
// replacing the built-in source. Missing files are skipped. It returns the
// number of shaders loaded.
func LoadShaderDir(dir string, files map[string]pipeline.ShaderHandle, registry *pipeline.ShaderRegistry) (int, error) {
	n := 0
	for name, h := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("load shader %s: %w", name, err)
		}
		registry.Register(h, string(data))
		n++
	}
	return n, nil
}

// ShaderWatcher watches a shader directory and reloads changed files.
//
// File events only mark shaders pending; Apply reloads them, so changes
// land at a frame boundary chosen by the caller. Every effective reload
// notifies the registry's listeners, which invalidate pipeline caches.
type ShaderWatcher struct {
	fs       *fsnotify.Watcher
	dir      string
	files    map[string]pipeline.ShaderHandle
	registry *pipeline.ShaderRegistry

	mu      sync.Mutex
	pending map[string]struct{}
	closed  bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewShaderWatcher starts watching dir for changes to files.
func NewShaderWatcher(dir string, files map[string]pipeline.ShaderHandle, registry *pipeline.ShaderRegistry) (*ShaderWatcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("shader watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("shader watcher: watch %s: %w", dir, err)
	}
	w := &ShaderWatcher{
		fs:       fs,
		dir:      dir,
		files:    files,
		registry: registry,
		pending:  make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	logging.Logger().Info("visbuffer: watching shaders", "dir", dir, "files", len(files))
	return w, nil
}

func (w *ShaderWatcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.fs.Events:
			if !ok {
				return
			}
			// Editors often replace files, so Create counts as a change.
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.mark(filepath.Base(e.Name))
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Logger().Warn("visbuffer: shader watcher error", "err", err)
		case <-w.done:
			return
		}
	}
}

func (w *ShaderWatcher) mark(name string) {
	if _, ok := w.files[name]; !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[name] = struct{}{}
}

// Pending returns the names of changed files not yet applied, sorted.
func (w *ShaderWatcher) Pending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.pending))
	for name := range w.pending {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Apply reloads every pending shader. It returns the number of shaders
// read; files that fail to read stay unchanged and are reported.
func (w *ShaderWatcher) Apply() (int, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return 0, ErrWatcherClosed
	}
	pending := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	slices.Sort(names)

	var errs []error
	n := 0
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(w.dir, name))
		if err != nil {
			errs = append(errs, fmt.Errorf("reload shader %s: %w", name, err))
			continue
		}
		h := w.files[name]
		if err := w.registry.Reload(h, string(data)); err != nil {
			errs = append(errs, fmt.Errorf("reload shader %s: %w", name, err))
			continue
		}
		logging.Logger().Info("visbuffer: shader reloaded", "shader", h)
		n++
	}
	return n, errors.Join(errs...)
}

// Close stops watching. Pending changes are discarded.
func (w *ShaderWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	return w.fs.Close()
}
