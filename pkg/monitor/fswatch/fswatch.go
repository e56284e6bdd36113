// Copyright 2025 walteh LLC
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

// Package fswatch feeds operating system file events into a monitor.
package fswatch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/walteh/shelf/pkg/monitor"
	"gitlab.com/tozd/go/errors"
)

// Submitter receives translated events; *monitor.Monitor satisfies it.
type Submitter interface {
	Submit(ctx context.Context, ev monitor.Event) error
}

// 👁️ Watcher watches a directory tree recursively
type Watcher struct {
	root    string
	watcher *fsnotify.Watcher
	skip    func(path string) bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSkip excludes directories (and their subtrees) for which fn returns true.
func WithSkip(fn func(path string) bool) Option {
	return func(w *Watcher) { w.skip = fn }
}

// 🏭 New starts watching root and every directory below it
func New(ctx context.Context, root string, opts ...Option) (*Watcher, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Errorf("making root absolute: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{root: root, watcher: fw, skip: func(string) bool { return false }}
	for _, o := range opts {
		o(w)
	}
	if _, err := w.addTree(ctx, root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and its subdirectories and returns the files found.
func (w *Watcher) addTree(ctx context.Context, dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("path", path).Msg("skipping unreadable path")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if d.Type().IsRegular() {
				files = append(files, path)
			}
			return nil
		}
		if path != w.root && w.skip(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return errors.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
	return files, err
}

// 🔄 Run translates events until ctx is done or the watcher closes
func (w *Watcher) Run(ctx context.Context, sink Submitter) error {
	logger := zerolog.Ctx(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("watcher error")
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			for _, out := range w.translate(ctx, ev) {
				if err := sink.Submit(ctx, out); err != nil {
					return err
				}
			}
		}
	}
}

// translate maps one OS event to monitor events. A new directory is watched
// and every file already inside it is reported as created.
func (w *Watcher) translate(ctx context.Context, ev fsnotify.Event) []monitor.Event {
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return []monitor.Event{{Kind: monitor.EventDeleted, Path: ev.Name}}

	case ev.Has(fsnotify.Create):
		info, err := os.Lstat(ev.Name)
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return []monitor.Event{{Kind: monitor.EventCreated, Path: ev.Name}}
		}
		if w.skip(ev.Name) {
			return nil
		}
		files, err := w.addTree(ctx, ev.Name)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("dir", ev.Name).Msg("could not watch new directory")
		}
		out := make([]monitor.Event, 0, len(files))
		for _, f := range files {
			out = append(out, monitor.Event{Kind: monitor.EventCreated, Path: f})
		}
		return out

	case ev.Has(fsnotify.Write):
		return []monitor.Event{{Kind: monitor.EventModified, Path: ev.Name}}
	}
	return nil
}

// Close stops the OS watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
