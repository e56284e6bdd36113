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

// Package recommend inspects a catalog and suggests cleanups. It never moves
// or deletes anything; its items can be turned into a review plan.
package recommend

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/walteh/shelf/pkg/catalog"
	"gitlab.com/tozd/go/errors"
)

// 🏷️ Kind is the sort of recommendation
type Kind string

const (
	KindClutter   Kind = "clutter-alert"
	KindDuplicate Kind = "duplicate"
	KindStale     Kind = "stale"
)

// 🔎 Evidence backs an item
type Evidence struct {
	Paths         []string      `json:"paths,omitempty"`
	Original      string        `json:"original,omitempty"`
	Size          int64         `json:"size,omitempty"`
	Age           time.Duration `json:"age,omitempty"`
	Score         float64       `json:"score,omitempty"`
	Files         int           `json:"files,omitempty"`
	Extensions    int           `json:"extensions,omitempty"`
	Pattern       string        `json:"pattern,omitempty"`
	LastOrganized *time.Time    `json:"last_organized,omitempty"`
}

// 💡 Item is one non-binding suggestion; (Kind, Subject) identifies it
type Item struct {
	Kind       Kind     `json:"kind"`
	Subject    string   `json:"subject"`
	Evidence   Evidence `json:"evidence"`
	Suggestion string   `json:"suggestion"`
}

// ⚙️ Config holds the analysis thresholds
type Config struct {
	DuplicateMinSize int64         `json:"duplicate_min_size" yaml:"duplicate_min_size"`
	StaleAfter       time.Duration `json:"stale_after" yaml:"stale_after"`
	TempFolders      []string      `json:"temp_folders,omitempty" yaml:"temp_folders,omitempty"`
	TempExtensions   []string      `json:"temp_extensions,omitempty" yaml:"temp_extensions,omitempty"`
	TempPrefixes     []string      `json:"temp_prefixes,omitempty" yaml:"temp_prefixes,omitempty"`
	ClutterCeiling   float64       `json:"clutter_ceiling" yaml:"clutter_ceiling"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		DuplicateMinSize: 1024,
		StaleAfter:       30 * 24 * time.Hour,
		TempFolders:      []string{"temp", "tmp", "cache", ".cache", "backup", "backups", "trash", ".trash", "$recycle.bin"},
		TempExtensions:   []string{".tmp", ".temp", ".bak", ".backup", ".old", ".orig", ".cache"},
		TempPrefixes:     []string{"~", ".~", "temp_", "tmp_", "backup_"},
		ClutterCeiling:   200,
	}
}

// Validate fills unset fields with defaults.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.DuplicateMinSize < 0 {
		return errors.Errorf("duplicate_min_size must not be negative, got %d", c.DuplicateMinSize)
	}
	if c.DuplicateMinSize == 0 {
		c.DuplicateMinSize = def.DuplicateMinSize
	}
	if c.StaleAfter < 0 {
		return errors.Errorf("stale_after must not be negative, got %s", c.StaleAfter)
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = def.StaleAfter
	}
	if c.ClutterCeiling <= 0 {
		c.ClutterCeiling = def.ClutterCeiling
	}
	if len(c.TempFolders) == 0 {
		c.TempFolders = def.TempFolders
	}
	if len(c.TempExtensions) == 0 {
		c.TempExtensions = def.TempExtensions
	}
	if len(c.TempPrefixes) == 0 {
		c.TempPrefixes = def.TempPrefixes
	}
	return nil
}

// Digester computes content digests for many paths at once.
type Digester interface {
	DigestAll(ctx context.Context, paths []string) (map[string]string, error)
}

// History answers when a directory was last organized.
type History interface {
	LastOrganized(ctx context.Context, dir string) (time.Time, bool)
}

// 🧠 Recommender runs the read-only analyses
type Recommender struct {
	cfg     Config
	folders map[string]bool
	exts    map[string]bool
	now     func() time.Time
}

// Option configures a Recommender.
type Option func(*Recommender)

// WithClock sets the clock used for ages.
func WithClock(now func() time.Time) Option {
	return func(r *Recommender) { r.now = now }
}

// 🏭 New validates cfg and returns a Recommender
func New(cfg Config, opts ...Option) (*Recommender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating recommend config: %w", err)
	}
	r := &Recommender{
		cfg:     cfg,
		folders: lowerSet(cfg.TempFolders),
		exts:    lowerSet(cfg.TempExtensions),
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// 📊 Analyze returns every recommendation for files, sorted by (kind, subject)
func (r *Recommender) Analyze(ctx context.Context, files []catalog.FileRecord, dg Digester, hist History) ([]Item, error) {
	dups, err := r.duplicates(ctx, files, dg)
	if err != nil {
		return nil, err
	}

	items := append(dups, r.stale(files)...)
	items = append(items, r.clutter(ctx, files, hist)...)

	sort.Slice(items, func(i, j int) bool {
		if items[i].Kind != items[j].Kind {
			return items[i].Kind < items[j].Kind
		}
		return items[i].Subject < items[j].Subject
	})

	zerolog.Ctx(ctx).Debug().Int("files", len(files)).Int("items", len(items)).Msg("recommendations computed")
	return items, nil
}

// duplicates narrows candidates by size before digesting them.
func (r *Recommender) duplicates(ctx context.Context, files []catalog.FileRecord, dg Digester) ([]Item, error) {
	bySize := map[int64][]catalog.FileRecord{}
	for _, f := range files {
		if f.Size >= r.cfg.DuplicateMinSize {
			bySize[f.Size] = append(bySize[f.Size], f)
		}
	}

	var candidates []string
	for _, group := range bySize {
		if len(group) < 2 {
			continue
		}
		for _, f := range group {
			candidates = append(candidates, f.Path)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Strings(candidates)

	digests, err := dg.DigestAll(ctx, candidates)
	if err != nil {
		return nil, errors.Errorf("digesting duplicate candidates: %w", err)
	}

	byDigest := map[string][]catalog.FileRecord{}
	for _, group := range bySize {
		if len(group) < 2 {
			continue
		}
		for _, f := range group {
			d, ok := digests[f.Path]
			if !ok || d == "" {
				continue
			}
			key := fmt.Sprintf("%d:%s", f.Size, d)
			byDigest[key] = append(byDigest[key], f)
		}
	}

	var items []Item
	for _, group := range byDigest {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if !group[i].ModTime.Equal(group[j].ModTime) {
				return group[i].ModTime.After(group[j].ModTime)
			}
			return group[i].Path < group[j].Path
		})
		original := group[0]
		paths := make([]string, 0, len(group))
		for _, f := range group {
			paths = append(paths, f.Path)
		}
		sort.Strings(paths)
		for _, dup := range group[1:] {
			items = append(items, Item{
				Kind:    KindDuplicate,
				Subject: dup.Path,
				Evidence: Evidence{
					Paths:    paths,
					Original: original.Path,
					Size:     dup.Size,
				},
				Suggestion: fmt.Sprintf("same content as %s; removing it frees %s", original.Name, humanize.IBytes(uint64(dup.Size))),
			})
		}
	}
	return items, nil
}

func (r *Recommender) stale(files []catalog.FileRecord) []Item {
	now := r.now()
	var items []Item
	for _, f := range files {
		age := now.Sub(f.ModTime)
		if age < r.cfg.StaleAfter {
			continue
		}
		pattern, ok := r.tempLike(f)
		if !ok {
			continue
		}
		items = append(items, Item{
			Kind:    KindStale,
			Subject: f.Path,
			Evidence: Evidence{
				Size:    f.Size,
				Age:     age,
				Pattern: pattern,
			},
			Suggestion: fmt.Sprintf("temporary file untouched since %s (%s)", humanize.RelTime(f.ModTime, now, "ago", "from now"), humanize.IBytes(uint64(f.Size))),
		})
	}
	return items
}

// tempLike reports the first temp or cache pattern f matches.
func (r *Recommender) tempLike(f catalog.FileRecord) (string, bool) {
	for _, seg := range strings.Split(filepath.ToSlash(filepath.Dir(f.RelPath)), "/") {
		if r.folders[strings.ToLower(seg)] {
			return "folder " + seg, true
		}
	}
	if r.exts[f.Ext] {
		return "extension " + f.Ext, true
	}
	for _, p := range r.cfg.TempPrefixes {
		if strings.HasPrefix(f.Name, p) {
			return "prefix " + p, true
		}
	}
	return "", false
}

// clutter scores each directory by distinct extensions times file count.
func (r *Recommender) clutter(ctx context.Context, files []catalog.FileRecord, hist History) []Item {
	type dirStats struct {
		files int
		exts  map[string]bool
	}
	byDir := map[string]*dirStats{}
	for _, f := range files {
		s, ok := byDir[f.Dir]
		if !ok {
			s = &dirStats{exts: map[string]bool{}}
			byDir[f.Dir] = s
		}
		s.files++
		s.exts[f.Ext] = true
	}

	var items []Item
	for dir, s := range byDir {
		score := float64(len(s.exts) * s.files)
		if score <= r.cfg.ClutterCeiling {
			continue
		}
		ev := Evidence{Score: score, Files: s.files, Extensions: len(s.exts)}
		suggestion := fmt.Sprintf("%d files with %d kinds of extension; run an organize pass", s.files, len(s.exts))
		if hist != nil {
			if when, ok := hist.LastOrganized(ctx, dir); ok {
				ev.LastOrganized = &when
				suggestion = fmt.Sprintf("%s (last organized %s)", suggestion, humanize.RelTime(when, r.now(), "ago", "from now"))
			}
		}
		items = append(items, Item{Kind: KindClutter, Subject: dir, Evidence: ev, Suggestion: suggestion})
	}
	return items
}

func lowerSet(vals []string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[strings.ToLower(v)] = true
	}
	return m
}
