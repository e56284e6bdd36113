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

// Package bucket splits crowded categories into sub-buckets.
package bucket

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/shelf/pkg/catalog"
	"github.com/walteh/shelf/pkg/category"
	"gitlab.com/tozd/go/errors"
)

// 📏 Dimension is a way of splitting a category
type Dimension string

const (
	DimensionPurpose Dimension = "purpose"
	DimensionDate    Dimension = "date"
	DimensionSize    Dimension = "size"
)

// 📅 Granularity controls date keys
type Granularity string

const (
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
)

// GeneralPurpose is the purpose key for items without a subtype.
const GeneralPurpose = "general"

// ⚙️ Config holds the bucketing thresholds
type Config struct {
	Threshold     int            `json:"threshold" yaml:"threshold"`
	MinBucketSize int            `json:"min_bucket_size" yaml:"min_bucket_size"`
	MaxDepth      int            `json:"max_depth" yaml:"max_depth"`
	Dimensions    []Dimension    `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Granularity   Granularity    `json:"granularity,omitempty" yaml:"granularity,omitempty"`
	MiscName      string         `json:"misc_name,omitempty" yaml:"misc_name,omitempty"`
	Location      *time.Location `json:"-" yaml:"-"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		Threshold:     50,
		MinBucketSize: 5,
		MaxDepth:      4,
		Dimensions:    []Dimension{DimensionPurpose, DimensionDate, DimensionSize},
		Granularity:   GranularityMonth,
		MiscName:      "misc",
		Location:      time.UTC,
	}
}

// Validate fills unset fields with defaults and rejects impossible values.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.Threshold <= 0 {
		c.Threshold = def.Threshold
	}
	if c.MinBucketSize < 0 {
		return errors.Errorf("min_bucket_size must not be negative, got %d", c.MinBucketSize)
	}
	if c.MaxDepth <= 0 {
		return errors.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if len(c.Dimensions) == 0 {
		c.Dimensions = def.Dimensions
	}
	seen := map[Dimension]bool{}
	for _, d := range c.Dimensions {
		switch d {
		case DimensionPurpose, DimensionDate, DimensionSize:
		default:
			return errors.Errorf("unknown dimension %q", d)
		}
		if seen[d] {
			return errors.Errorf("dimension %q listed twice", d)
		}
		seen[d] = true
	}
	switch c.Granularity {
	case "":
		c.Granularity = def.Granularity
	case GranularityMonth, GranularityQuarter, GranularityYear:
	default:
		return errors.Errorf("unknown granularity %q", c.Granularity)
	}
	if c.MiscName == "" {
		c.MiscName = def.MiscName
	}
	if category.Sanitize(c.MiscName) != c.MiscName {
		return errors.Errorf("misc_name %q is not a valid path segment", c.MiscName)
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return nil
}

// 📦 Item is one group placed in a base category
type Item struct {
	GroupID string
	Primary catalog.FileRecord
	Subtype string
}

// Bucketer assigns final categories; it holds no per-call state.
type Bucketer struct {
	cfg Config
}

// 🏭 New validates cfg and returns a Bucketer
func New(cfg Config) (*Bucketer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating bucket config: %w", err)
	}
	return &Bucketer{cfg: cfg}, nil
}

// Config returns the validated configuration.
func (b *Bucketer) Config() Config {
	return b.cfg
}

// 🗂️ Assign decides the final category of every item in base, keyed by group id
func (b *Bucketer) Assign(ctx context.Context, base category.Category, items []Item) map[string]category.Category {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Primary.RelPath != sorted[j].Primary.RelPath {
			return sorted[i].Primary.RelPath < sorted[j].Primary.RelPath
		}
		return sorted[i].GroupID < sorted[j].GroupID
	})

	out := make(map[string]category.Category, len(items))
	b.split(ctx, base, sorted, b.cfg.Dimensions, out)
	return out
}

func (b *Bucketer) split(ctx context.Context, cat category.Category, items []Item, dims []Dimension, out map[string]category.Category) {
	if len(items) < b.cfg.Threshold || cat.Depth() >= b.cfg.MaxDepth {
		assign(cat, items, out)
		return
	}

	for i, d := range dims {
		groups := map[string][]Item{}
		for _, it := range items {
			k := b.key(d, it)
			groups[k] = append(groups[k], it)
		}
		if len(groups) < 2 {
			continue
		}

		kept := map[string][]Item{}
		var misc []Item
		for k, g := range groups {
			if len(g) < b.cfg.MinBucketSize {
				misc = append(misc, g...)
				continue
			}
			kept[k] = g
		}
		if existing, ok := kept[b.cfg.MiscName]; ok {
			misc = append(existing, misc...)
			delete(kept, b.cfg.MiscName)
		}
		buckets := len(kept)
		if len(misc) > 0 {
			buckets++
		}
		if buckets < 2 {
			continue
		}

		zerolog.Ctx(ctx).Debug().
			Str("category", cat.String()).
			Str("dimension", string(d)).
			Int("items", len(items)).
			Int("buckets", buckets).
			Msg("splitting category")

		rest := make([]Dimension, 0, len(dims)-1)
		rest = append(rest, dims[:i]...)
		rest = append(rest, dims[i+1:]...)

		origin := "bucket:" + string(d)
		for _, k := range sortedKeys(kept) {
			b.split(ctx, cat.Child(k, origin), kept[k], rest, out)
		}
		if len(misc) > 0 {
			assign(cat.Child(b.cfg.MiscName, origin), misc, out)
		}
		return
	}

	assign(cat, items, out)
}

func (b *Bucketer) key(d Dimension, it Item) string {
	switch d {
	case DimensionPurpose:
		if it.Subtype == "" {
			return GeneralPurpose
		}
		return it.Subtype
	case DimensionDate:
		return DateKey(it.Primary.ModTime, b.cfg.Granularity, b.cfg.Location)
	case DimensionSize:
		return SizeClass(it.Primary.Size)
	}
	return GeneralPurpose
}

// DateKey formats t as a bucket name in loc.
func DateKey(t time.Time, g Granularity, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	switch g {
	case GranularityYear:
		return fmt.Sprintf("%04d", t.Year())
	case GranularityQuarter:
		return fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	default:
		return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
	}
}

// Size class boundaries.
const (
	SmallLimit  = 1 << 20
	MediumLimit = 100 << 20
	LargeLimit  = 1 << 30
)

// SizeClass names the size band of a file.
func SizeClass(size int64) string {
	switch {
	case size < SmallLimit:
		return "small"
	case size < MediumLimit:
		return "medium"
	case size < LargeLimit:
		return "large"
	default:
		return "huge"
	}
}

func assign(cat category.Category, items []Item, out map[string]category.Category) {
	for _, it := range items {
		out[it.GroupID] = cat
	}
}

func sortedKeys(m map[string][]Item) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
