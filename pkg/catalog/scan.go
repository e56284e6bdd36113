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

package catalog

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 🔍 Scan replaces the catalog contents with a fresh walk of the root
func (c *Catalog) Scan(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	start := time.Now()

	info, err := os.Stat(c.root)
	if err != nil {
		return errors.Errorf("reading source root: %w", err)
	}
	if !info.IsDir() {
		return errors.Errorf("source root %s is not a directory", c.root)
	}

	c.mu.Lock()
	c.files = make(map[string]*FileRecord)
	c.dirs = make(map[string]*Dir)
	c.errs = nil
	c.mu.Unlock()

	paths, err := c.walk(ctx)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	records := make(map[string]*FileRecord, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for _, p := range paths {
		p := p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fi, err := os.Lstat(p)
			if err != nil {
				c.addError(ctx, p, err)
				return nil
			}
			if !c.admitsInfo(fi) {
				return nil
			}
			rec := newRecord(c.root, p, fi)
			mu.Lock()
			records[p] = rec
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Errorf("scanning %s: %w", c.root, err)
	}

	c.mu.Lock()
	c.files = records
	c.mu.Unlock()

	logger.Debug().
		Str("root", c.root).
		Int("files", len(records)).
		Int("skipped", len(c.Errors())).
		Dur("took", time.Since(start)).
		Msg("scan complete")
	return nil
}

// walk lists directories breadth-first and returns candidate file paths.
func (c *Catalog) walk(ctx context.Context) ([]string, error) {
	var files []string
	queue := []string{c.root}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errors.Errorf("scanning %s: %w", c.root, err)
		}
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			c.addError(ctx, dir, err)
			continue
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)
		if c.opts.FlagFile != "" && containsName(names, c.opts.FlagFile) {
			zerolog.Ctx(ctx).Debug().Str("dir", dir).Msg("flag file present, skipping subtree")
			continue
		}

		rel, _ := filepath.Rel(c.root, dir)
		c.mu.Lock()
		c.dirs[dir] = &Dir{Path: dir, RelPath: filepath.ToSlash(rel), Names: names}
		c.mu.Unlock()

		for _, e := range entries {
			full := filepath.Join(dir, e.Name())
			relChild, _ := filepath.Rel(c.root, full)
			relChild = filepath.ToSlash(relChild)
			if !c.admitsPath(relChild) {
				continue
			}
			if e.IsDir() {
				if c.skipDir(full) {
					continue
				}
				queue = append(queue, full)
				continue
			}
			if e.Type().IsRegular() {
				files = append(files, full)
			}
		}
	}
	return files, nil
}

func (c *Catalog) skipDir(dir string) bool {
	for _, s := range c.opts.SkipDirs {
		if dir == s {
			return true
		}
	}
	return false
}

// admitsPath applies the hidden-file and exclude-pattern filters.
func (c *Catalog) admitsPath(rel string) bool {
	if !c.opts.IncludeHidden {
		for _, seg := range strings.Split(rel, "/") {
			if strings.HasPrefix(seg, ".") {
				return false
			}
		}
	}
	base := path.Base(rel)
	for _, pattern := range c.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return false
		}
	}
	return true
}

func (c *Catalog) admitsInfo(fi os.FileInfo) bool {
	if !fi.Mode().IsRegular() {
		return false
	}
	if fi.Size() < c.opts.MinSize {
		return false
	}
	if c.opts.MaxSize > 0 && fi.Size() > c.opts.MaxSize {
		return false
	}
	return true
}

// flaggedAncestor reports whether a directory between path and the root holds the flag file.
func (c *Catalog) flaggedAncestor(p string) bool {
	if c.opts.FlagFile == "" {
		return false
	}
	for dir := filepath.Dir(p); ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, c.opts.FlagFile)); err == nil {
			return true
		}
		if dir == c.root || dir == filepath.Dir(dir) {
			return false
		}
		if c.skipDir(dir) {
			return true
		}
	}
}

func containsName(sorted []string, name string) bool {
	i := sort.SearchStrings(sorted, name)
	return i < len(sorted) && sorted[i] == name
}
