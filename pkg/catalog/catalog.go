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
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// DefaultFlagFile marks a directory (and its subtree) as off limits.
const DefaultFlagFile = ".noclassify"

// 📄 FileRecord is one regular file known to the catalog
type FileRecord struct {
	Path    string    `json:"path"`     // absolute path, the identity
	RelPath string    `json:"rel_path"` // slash separated, relative to the root
	Dir     string    `json:"dir"`      // absolute parent directory
	Name    string    `json:"name"`
	Stem    string    `json:"stem"`
	Ext     string    `json:"ext"` // lower-cased, with the dot
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Digest  string    `json:"digest,omitempty"`   // empty until computed
	GroupID string    `json:"group_id,omitempty"` // set after association detection
}

// 📂 Dir is a scanned directory and the names of its direct children
type Dir struct {
	Path    string   `json:"path"`
	RelPath string   `json:"rel_path"`
	Names   []string `json:"names"`
}

// Has reports whether the directory has a child with the given name.
func (d Dir) Has(name string) bool {
	i := sort.SearchStrings(d.Names, name)
	return i < len(d.Names) && d.Names[i] == name
}

// ⚙️ Options controls what a scan admits
type Options struct {
	Exclude       []string // doublestar patterns, matched against rel path and base name
	MinSize       int64
	MaxSize       int64 // 0 means unlimited
	FlagFile      string
	IncludeHidden bool
	SkipDirs      []string // absolute directories never entered
	Workers       int
}

func (o Options) withDefaults() Options {
	if o.FlagFile == "" {
		o.FlagFile = DefaultFlagFile
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	skip := make([]string, 0, len(o.SkipDirs))
	for _, d := range o.SkipDirs {
		if abs, err := filepath.Abs(d); err == nil {
			skip = append(skip, filepath.Clean(abs))
		}
	}
	o.SkipDirs = skip
	return o
}

// ✅ Validate checks the exclusion patterns
func (o Options) Validate() error {
	for _, p := range o.Exclude {
		if !doublestar.ValidatePattern(p) {
			return errors.Errorf("invalid exclude pattern %q", p)
		}
	}
	if o.MaxSize > 0 && o.MinSize > o.MaxSize {
		return errors.Errorf("min size %d is larger than max size %d", o.MinSize, o.MaxSize)
	}
	return nil
}

// ❌ ReadError is a path the catalog could not read; it is skipped, not fatal
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// 🗂️ Catalog owns the records for one source root
type Catalog struct {
	root string
	opts Options

	mu    sync.RWMutex
	files map[string]*FileRecord
	dirs  map[string]*Dir
	errs  []*ReadError
}

// 🏭 New creates an empty catalog for root
func New(root string, opts Options) (*Catalog, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.Errorf("validating scan options: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Errorf("resolving root: %w", err)
	}
	return &Catalog{
		root:  filepath.Clean(abs),
		opts:  opts.withDefaults(),
		files: make(map[string]*FileRecord),
		dirs:  make(map[string]*Dir),
	}, nil
}

// 🔍 Scan creates a catalog for root and fills it
func Scan(ctx context.Context, root string, opts Options) (*Catalog, error) {
	c, err := New(root, opts)
	if err != nil {
		return nil, err
	}
	if err := c.Scan(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Root returns the absolute source root.
func (c *Catalog) Root() string {
	return c.root
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}

// Errors returns the read errors collected so far, sorted by path.
func (c *Catalog) Errors() []*ReadError {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := append([]*ReadError(nil), c.errs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Get returns a copy of the record for path.
func (c *Catalog) Get(path string) (FileRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.files[filepath.Clean(path)]
	if !ok {
		return FileRecord{}, false
	}
	return *rec, true
}

// 📸 Snapshot returns copies of all records sorted by relative path
func (c *Catalog) Snapshot() []FileRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]FileRecord, 0, len(c.files))
	for _, rec := range c.files {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}

// Dirs returns copies of all scanned directories sorted by relative path.
func (c *Catalog) Dirs() []Dir {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Dir, 0, len(c.dirs))
	for _, d := range c.dirs {
		cp := *d
		cp.Names = append([]string(nil), d.Names...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}

// AssignGroups records the association group of each path.
func (c *Catalog) AssignGroups(byPath map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p, rec := range c.files {
		rec.GroupID = byPath[p]
	}
}

// 🔄 Upsert refreshes a single path. It reports whether the path is now cataloged.
func (c *Catalog) Upsert(ctx context.Context, path string) (FileRecord, bool, error) {
	path = filepath.Clean(path)
	rel, err := filepath.Rel(c.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return FileRecord{}, false, errors.Errorf("path %s is outside %s", path, c.root)
	}

	info, err := os.Lstat(path)
	if err != nil {
		c.Remove(path)
		if os.IsNotExist(err) {
			return FileRecord{}, false, nil
		}
		c.addError(ctx, path, err)
		return FileRecord{}, false, nil
	}
	if info.IsDir() {
		return FileRecord{}, false, nil
	}
	if !c.admitsPath(filepath.ToSlash(rel)) || c.flaggedAncestor(path) || !c.admitsInfo(info) {
		c.Remove(path)
		return FileRecord{}, false, nil
	}

	rec := newRecord(c.root, path, info)

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.files[path]; ok {
		rec.GroupID = old.GroupID
		if old.Size == rec.Size && old.ModTime.Equal(rec.ModTime) {
			rec.Digest = old.Digest
		}
	}
	c.files[path] = rec
	c.addName(filepath.Dir(path), filepath.Base(path))
	return *rec, true, nil
}

// Remove drops path (a file, or every file below a directory). It reports whether anything was removed.
func (c *Catalog) Remove(path string) bool {
	path = filepath.Clean(path)
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := false
	if _, ok := c.files[path]; ok {
		delete(c.files, path)
		removed = true
	}
	prefix := path + string(filepath.Separator)
	for p := range c.files {
		if strings.HasPrefix(p, prefix) {
			delete(c.files, p)
			removed = true
		}
	}
	for p := range c.dirs {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(c.dirs, p)
		}
	}
	if parent, ok := c.dirs[filepath.Dir(path)]; ok {
		name := filepath.Base(path)
		i := sort.SearchStrings(parent.Names, name)
		if i < len(parent.Names) && parent.Names[i] == name {
			parent.Names = append(parent.Names[:i], parent.Names[i+1:]...)
		}
	}
	return removed
}

func (c *Catalog) addName(dir, name string) {
	d, ok := c.dirs[dir]
	if !ok {
		rel, _ := filepath.Rel(c.root, dir)
		d = &Dir{Path: dir, RelPath: filepath.ToSlash(rel)}
		c.dirs[dir] = d
	}
	i := sort.SearchStrings(d.Names, name)
	if i < len(d.Names) && d.Names[i] == name {
		return
	}
	d.Names = append(d.Names, "")
	copy(d.Names[i+1:], d.Names[i:])
	d.Names[i] = name
}

func (c *Catalog) addError(ctx context.Context, path string, err error) {
	zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("skipping unreadable path")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, &ReadError{Path: path, Err: err})
}

func newRecord(root, path string, info os.FileInfo) *FileRecord {
	rel, _ := filepath.Rel(root, path)
	name := info.Name()
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem, ext = name, ""
	}
	return &FileRecord{
		Path:    path,
		RelPath: filepath.ToSlash(rel),
		Dir:     filepath.Dir(path),
		Name:    name,
		Stem:    stem,
		Ext:     strings.ToLower(ext),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}
