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

package bucket

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/shelf/pkg/catalog"
	"github.com/walteh/shelf/pkg/category"
)

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.TestWriter{T: t}).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

type itemSpec struct {
	count   int
	month   time.Month
	subtype string
	size    int64
}

func makeItems(specs ...itemSpec) []Item {
	var items []Item
	n := 0
	for _, s := range specs {
		for i := 0; i < s.count; i++ {
			n++
			name := fmt.Sprintf("file-%03d.jpg", n)
			items = append(items, Item{
				GroupID: fmt.Sprintf("g%04d", n),
				Subtype: s.subtype,
				Primary: catalog.FileRecord{
					RelPath: name,
					Name:    name,
					Ext:     ".jpg",
					Size:    s.size,
					ModTime: time.Date(2024, s.month, 1+i%27, 12, 0, 0, 0, time.UTC),
				},
			})
		}
	}
	return items
}

func countByCategory(out map[string]category.Category) map[string]int {
	counts := map[string]int{}
	for _, c := range out {
		counts[c.String()]++
	}
	return counts
}

func TestAssign(t *testing.T) {
	images := category.New("builtin:images", "Images")

	tests := []struct {
		name  string
		cfg   func(c *Config)
		items []Item
		want  map[string]int
	}{
		{
			name:  "below_threshold_stays_flat",
			items: makeItems(itemSpec{count: 49, month: time.January}, itemSpec{count: 0, month: time.February}),
			want:  map[string]int{"Images": 49},
		},
		{
			name: "splits_by_month",
			items: makeItems(
				itemSpec{count: 50, month: time.January},
				itemSpec{count: 50, month: time.February},
				itemSpec{count: 50, month: time.March},
			),
			want: map[string]int{"Images/2024-01": 50, "Images/2024-02": 50, "Images/2024-03": 50},
		},
		{
			name: "purpose_before_date",
			items: makeItems(
				itemSpec{count: 30, month: time.January, subtype: "screenshot"},
				itemSpec{count: 30, month: time.February, subtype: "photo"},
			),
			want: map[string]int{"Images/screenshot": 30, "Images/photo": 30},
		},
		{
			name: "small_buckets_merge_into_misc",
			cfg:  func(c *Config) { c.MinBucketSize = 10 },
			items: makeItems(
				itemSpec{count: 55, month: time.March},
				itemSpec{count: 3, month: time.January},
				itemSpec{count: 2, month: time.February},
			),
			want: map[string]int{"Images/2024-03": 55, "Images/misc": 5},
		},
		{
			name: "all_small_buckets_do_not_split",
			cfg:  func(c *Config) { c.MinBucketSize = 40 },
			items: makeItems(
				itemSpec{count: 30, month: time.January},
				itemSpec{count: 30, month: time.February},
			),
			want: map[string]int{"Images": 60},
		},
		{
			name: "quarter_granularity",
			cfg:  func(c *Config) { c.Granularity = GranularityQuarter },
			items: makeItems(
				itemSpec{count: 30, month: time.January},
				itemSpec{count: 30, month: time.February},
				itemSpec{count: 30, month: time.May},
			),
			want: map[string]int{"Images/2024-Q1": 60, "Images/2024-Q2": 30},
		},
		{
			name: "size_when_other_dimensions_are_flat",
			items: makeItems(
				itemSpec{count: 40, month: time.January, size: 10},
				itemSpec{count: 40, month: time.January, size: 5 << 20},
			),
			want: map[string]int{"Images/small": 40, "Images/medium": 40},
		},
		{
			name: "recurses_with_remaining_dimensions",
			cfg:  func(c *Config) { c.Threshold = 20 },
			items: makeItems(
				itemSpec{count: 20, month: time.January, subtype: "screenshot"},
				itemSpec{count: 20, month: time.February, subtype: "screenshot"},
				itemSpec{count: 10, month: time.January, subtype: "photo"},
			),
			want: map[string]int{
				"Images/screenshot/2024-01": 20,
				"Images/screenshot/2024-02": 20,
				"Images/photo":              10,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			b, err := New(cfg)
			require.NoError(t, err, "creating bucketer")

			out := b.Assign(testContext(t), images, tt.items)
			assert.Len(t, out, len(tt.items), "every item should be assigned")
			assert.Equal(t, tt.want, countByCategory(out), "category counts should match")
		})
	}
}

func TestAssignDepthBound(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold = 2
	cfg.MinBucketSize = 1
	cfg.MaxDepth = 2

	b, err := New(cfg)
	require.NoError(t, err, "creating bucketer")

	items := makeItems(
		itemSpec{count: 10, month: time.January, subtype: "screenshot", size: 10},
		itemSpec{count: 10, month: time.February, subtype: "screenshot", size: 5 << 20},
		itemSpec{count: 10, month: time.March, subtype: "photo", size: 10},
	)

	out := b.Assign(testContext(t), category.New("builtin:images", "Images"), items)
	for id, c := range out {
		assert.LessOrEqual(t, c.Depth(), cfg.MaxDepth, "group %s category %s should respect max depth", id, c)
		require.NoError(t, c.Validate(cfg.MaxDepth), "category should validate")
	}

	atMax, err := New(cfg)
	require.NoError(t, err, "creating bucketer")
	deep := category.New("rule", "A", "B")
	for _, c := range atMax.Assign(testContext(t), deep, items) {
		assert.True(t, c.Equal(deep), "a category at max depth should never split")
	}
}

func TestAssignIsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinBucketSize = 8
	b, err := New(cfg)
	require.NoError(t, err, "creating bucketer")

	items := makeItems(
		itemSpec{count: 40, month: time.January},
		itemSpec{count: 7, month: time.February},
		itemSpec{count: 40, month: time.April},
		itemSpec{count: 5, month: time.June},
	)
	base := category.New("builtin:images", "Images")
	want := b.Assign(testContext(t), base, items)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5; i++ {
		shuffled := make([]Item, len(items))
		copy(shuffled, items)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := b.Assign(testContext(t), base, shuffled)
		assert.Empty(t, cmp.Diff(want, got), "assignment should not depend on input order")
	}
}

func TestDateKeyLocation(t *testing.T) {
	ts := time.Date(2024, time.March, 31, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*3600)

	assert.Equal(t, "2024-03", DateKey(ts, GranularityMonth, nil), "utc month")
	assert.Equal(t, "2024-04", DateKey(ts, GranularityMonth, tokyo), "month in a later zone")
	assert.Equal(t, "2024-Q2", DateKey(ts, GranularityQuarter, tokyo), "quarter in a later zone")
	assert.Equal(t, "2024", DateKey(ts, GranularityYear, nil), "year")
}

func TestSizeClass(t *testing.T) {
	assert.Equal(t, "small", SizeClass(0), "empty file")
	assert.Equal(t, "small", SizeClass(SmallLimit-1), "just below small limit")
	assert.Equal(t, "medium", SizeClass(SmallLimit), "small limit")
	assert.Equal(t, "large", SizeClass(MediumLimit), "medium limit")
	assert.Equal(t, "huge", SizeClass(LargeLimit), "large limit")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		errContains string
	}{
		{name: "zero_depth", cfg: Config{}, errContains: "max_depth"},
		{name: "unknown_dimension", cfg: Config{MaxDepth: 3, Dimensions: []Dimension{"color"}}, errContains: "unknown dimension"},
		{name: "duplicate_dimension", cfg: Config{MaxDepth: 3, Dimensions: []Dimension{DimensionDate, DimensionDate}}, errContains: "twice"},
		{name: "bad_granularity", cfg: Config{MaxDepth: 3, Granularity: "week"}, errContains: "granularity"},
		{name: "bad_misc_name", cfg: Config{MaxDepth: 3, MiscName: ".."}, errContains: "misc_name"},
		{name: "defaults_filled", cfg: Config{MaxDepth: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Validate()
			if tt.errContains != "" {
				require.Error(t, err, "expected validation error")
				assert.Contains(t, err.Error(), tt.errContains, "error should mention the field")
				return
			}
			require.NoError(t, err, "validation should pass")
			assert.Equal(t, 50, cfg.Threshold, "threshold default")
			assert.Equal(t, "misc", cfg.MiscName, "misc default")
			assert.NotNil(t, cfg.Location, "location default")
		})
	}
}
