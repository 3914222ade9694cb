// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const fileDebounce = 150 * time.Millisecond

// FileProvider reads a YAML document from disk.
type FileProvider struct {
	path string

	mu       sync.Mutex
	watchers []*fsnotify.Watcher
	closed   bool
}

// NewFileProvider resolves path and returns a provider for it.
// The file does not need to exist yet.
func NewFileProvider(path string) (*FileProvider, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %s: %w", path, err)
	}
	return &FileProvider{path: abs}, nil
}

func (p *FileProvider) Type() Type { return TypeFile }

// Path returns the absolute file path.
func (p *FileProvider) Path() string { return p.path }

func (p *FileProvider) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", p.path, err)
	}
	return data, nil
}

// Watch observes the parent directory so editors that replace the file
// (write to temp, rename over) are still seen.
func (p *FileProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("file provider is closed")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(p.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	p.watchers = append(p.watchers, w)

	out := make(chan struct{}, 1)
	go p.loop(ctx, w, out)
	slog.Debug("Watching config file", "path", p.path)
	return out, nil
}

func (p *FileProvider) loop(ctx context.Context, w *fsnotify.Watcher, out chan<- struct{}) {
	defer close(out)

	name := filepath.Base(p.path)
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(fileDebounce)
			} else {
				timer.Reset(fileDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if _, err := os.Stat(p.path); err != nil {
				// Mid-replace; the following Create will trigger again.
				continue
			}
			notify(out)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "path", p.path, "error", err)
		}
	}
}

func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var first error
	for _, w := range p.watchers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	p.watchers = nil
	return first
}

var _ Provider = (*FileProvider)(nil)
