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

package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/shelf/pkg/journal"
	"github.com/walteh/shelf/pkg/monitor"
	"github.com/walteh/shelf/pkg/plan"
	"github.com/walteh/shelf/pkg/recommend"
	"github.com/walteh/shelf/pkg/rules"
	"gitlab.com/tozd/go/errors"
)

var testNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

type harness struct {
	ctx   context.Context
	src   string
	dst   string
	store *journal.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zerolog.New(zerolog.TestWriter{T: t}).With().Timestamp().Logger()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err, "resolving temp dir")
	h := &harness{
		ctx:   logger.WithContext(context.Background()),
		src:   filepath.Join(root, "src"),
		dst:   filepath.Join(root, "dst"),
		store: journal.NewMemoryStore(journal.WithClock(func() time.Time { return testNow })),
	}
	require.NoError(t, os.MkdirAll(h.src, 0755), "creating source")
	require.NoError(t, os.MkdirAll(h.dst, 0755), "creating target")
	return h
}

func (h *harness) write(t *testing.T, rel, content string, mod time.Time) string {
	t.Helper()
	path := filepath.Join(h.src, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755), "creating parent of %s", rel)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "writing %s", rel)
	if !mod.IsZero() {
		require.NoError(t, os.Chtimes(path, mod, mod), "setting mtime of %s", rel)
	}
	return path
}

func (h *harness) engine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig(h.src, h.dst)
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New(h.ctx, cfg, h.store, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err, "creating engine")
	return e
}

func targets(t *testing.T, root string, p *plan.Plan) []string {
	t.Helper()
	var out []string
	for _, e := range p.Entries {
		for _, m := range e.Moves {
			rel, err := filepath.Rel(root, m.To)
			require.NoError(t, err, "relativizing %s", m.To)
			out = append(out, filepath.ToSlash(rel))
		}
	}
	sort.Strings(out)
	return out
}

func TestCompanionsRoundTrip(t *testing.T) {
	h := newHarness(t)
	doc := h.write(t, "report.docx", "quarterly numbers", time.Time{})
	bak := h.write(t, "report.docx.bak", "older numbers", time.Time{})
	e := h.engine(t, nil)

	p, err := e.Preview(h.ctx)
	require.NoError(t, err, "previewing")
	assert.Equal(t, plan.StatusPreviewed, p.Status, "preview status")
	require.Len(t, p.Entries, 1, "the pair is one group")
	assert.Equal(t, []string{
		"Documents/work/reports/report.docx",
		"Documents/work/reports/report.docx.bak",
	}, targets(t, h.dst, p), "both files share the report category")

	stored, err := e.History(h.ctx)
	require.NoError(t, err, "listing history")
	assert.Empty(t, stored, "previews are not stored")

	sum, err := e.Apply(h.ctx, p)
	require.NoError(t, err, "applying")
	assert.Equal(t, 1, sum.Moved, "one group moved")
	assert.Equal(t, plan.StatusApplied, sum.Status, "apply status")
	assert.NoFileExists(t, doc, "document left the source")
	assert.FileExists(t, filepath.Join(h.dst, "Documents", "work", "reports", "report.docx.bak"), "companion followed")

	snap, err := e.Snapshot(h.ctx)
	require.NoError(t, err, "snapshot after apply")
	assert.Empty(t, snap, "catalog is refreshed after apply")

	records, err := e.Records(h.ctx, p.ID)
	require.NoError(t, err, "loading records")
	assert.Len(t, records, 2, "one record per moved file")

	rsum, err := e.Revert(h.ctx, p.ID)
	require.NoError(t, err, "reverting")
	assert.Equal(t, 2, rsum.Reverted, "both files restored")
	assert.FileExists(t, doc, "document restored")
	assert.FileExists(t, bak, "companion restored")
	assert.NoDirExists(t, filepath.Join(h.dst, "Documents"), "empty target folders pruned")

	stored, err = e.History(h.ctx)
	require.NoError(t, err, "listing history")
	require.Len(t, stored, 1, "the applied plan is stored")
	assert.Equal(t, plan.StatusReverted, stored[0].Status, "stored status")
}

func TestLargeCategorySplitsByMonth(t *testing.T) {
	h := newHarness(t)
	months := []time.Month{time.January, time.February, time.March}
	for i := 0; i < 150; i++ {
		mod := time.Date(2024, months[i/50], 10, 9, 0, 0, 0, time.UTC)
		h.write(t, fmt.Sprintf("pic_%03d.jpg", i), "not really a jpeg", mod)
	}
	e := h.engine(t, nil)

	cls, err := e.Classify(h.ctx)
	require.NoError(t, err, "classifying")
	require.Len(t, cls.Groups, 150, "every picture is its own group")

	counts := map[string]int{}
	for _, g := range cls.Groups {
		assert.Equal(t, "Images", g.Base.String(), "base category of %s", g.Group.Primary.Name)
		counts[g.Category.String()]++
	}
	assert.Equal(t, map[string]int{
		"Images/2024-01": 50,
		"Images/2024-02": 50,
		"Images/2024-03": 50,
	}, counts, "monthly sub-buckets")

	p, err := e.Preview(h.ctx)
	require.NoError(t, err, "previewing")
	assert.Equal(t, 150, p.MoveCount(), "every picture moves")
	assert.Contains(t, targets(t, h.dst, p), "Images/2024-02/pic_050.jpg", "february picture lands in its month")
}

func TestNewRejectsBadConfig(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(t *testing.T, err error)
	}{
		{
			name: "bad_rule_pattern",
			mutate: func(c *Config) {
				c.Rules = []rules.Rule{{ID: "broken", Category: "Docs", NamePattern: "("}}
			},
			check: func(t *testing.T, err error) {
				var cerr *rules.ConfigError
				require.True(t, errors.As(err, &cerr), "a rule error should be a ConfigError, got %v", err)
				assert.Equal(t, "broken", cerr.RuleID, "rule id in error")
				assert.Equal(t, "name_pattern", cerr.Field, "field in error")
			},
		},
		{
			name:   "bad_exclude_pattern",
			mutate: func(c *Config) { c.Catalog.Exclude = []string{"[unclosed"} },
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "exclude pattern", "catalog error")
			},
		},
		{
			name:   "missing_target",
			mutate: func(c *Config) { c.TargetRoot = "" },
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "required", "roots error")
			},
		},
		{
			name:   "zero_depth",
			mutate: func(c *Config) { c.Bucket.MaxDepth = 0 },
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "max_depth", "bucket error")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(h.src, h.dst)
			tt.mutate(&cfg)
			_, err := New(h.ctx, cfg, h.store)
			require.Error(t, err, "config should be rejected")
			tt.check(t, err)
		})
	}
}

func TestDeepRuleCategoryIsBounded(t *testing.T) {
	h := newHarness(t)
	h.write(t, "notes.txt", "hello", time.Time{})
	e := h.engine(t, func(c *Config) {
		c.Rules = []rules.Rule{{ID: "deep", Extensions: []string{"txt"}, Category: "A/B/C/D/E/F"}}
	})

	cls, err := e.Classify(h.ctx)
	require.NoError(t, err, "classifying")
	require.Len(t, cls.Groups, 1, "one group")
	g := cls.Groups[0]
	assert.Equal(t, "A/B/C/D", g.Base.String(), "category truncated to max depth")
	assert.Equal(t, "deep", g.RuleID, "rule recorded")
	assert.Equal(t, rules.SourceInclude, g.Source, "source recorded")
}

func TestTargetInsideSourceIsNotRescanned(t *testing.T) {
	h := newHarness(t)
	h.dst = filepath.Join(h.src, "Organized")
	h.write(t, "a.pdf", "a", time.Time{})
	h.write(t, "Organized/Documents/b.pdf", "b", time.Time{})
	e := h.engine(t, nil)

	snap, err := e.Snapshot(h.ctx)
	require.NoError(t, err, "snapshot")
	require.Len(t, snap, 1, "only the unorganized file is cataloged")
	assert.Equal(t, "a.pdf", snap[0].RelPath, "cataloged file")
}

func TestRecommendFindsDuplicates(t *testing.T) {
	h := newHarness(t)
	old := testNow.Add(-90 * 24 * time.Hour)
	h.write(t, "a/song.txt", "same bytes", testNow.Add(-time.Hour))
	h.write(t, "b/song copy.txt", "same bytes", testNow.Add(-time.Hour))
	h.write(t, "c/ancient.tmp", "x", old)
	e := h.engine(t, func(c *Config) { c.Recommend.DuplicateMinSize = 1 })

	items, err := e.Recommend(h.ctx)
	require.NoError(t, err, "recommending")

	kinds := map[recommend.Kind][]string{}
	for _, it := range items {
		kinds[it.Kind] = append(kinds[it.Kind], it.Subject)
	}
	require.Len(t, kinds[recommend.KindDuplicate], 1, "one duplicate")
	assert.Equal(t, filepath.Join(h.src, "b", "song copy.txt"), kinds[recommend.KindDuplicate][0], "the later path is the duplicate")
	assert.Contains(t, kinds[recommend.KindStale], filepath.Join(h.src, "c", "ancient.tmp"), "old temp file is stale")

	p, err := e.ReviewPlan(h.ctx, items)
	require.NoError(t, err, "building review plan")
	assert.Contains(t, targets(t, h.dst, p), "_review/duplicates/song copy.txt", "duplicate goes to review")
}

func TestHandleEventsPlansOnlyAffectedGroups(t *testing.T) {
	h := newHarness(t)
	h.write(t, "old.pdf", "old", time.Time{})
	e := h.engine(t, nil)
	require.NoError(t, e.Scan(h.ctx), "initial scan")

	fresh := h.write(t, "fresh.pdf", "fresh", time.Time{})
	res, err := e.HandleEvents(h.ctx, []monitor.Event{
		{Kind: monitor.EventCreated, Path: fresh},
		{Kind: monitor.EventCreated, Path: filepath.Join(h.dst, "ignored.pdf")},
	})
	require.NoError(t, err, "handling events")
	assert.Equal(t, 1, res.Updated, "one cataloged update")
	require.NotNil(t, res.Plan, "a plan is built")
	require.Len(t, res.Plan.Entries, 1, "only the new file is planned")
	assert.Equal(t, fresh, res.Plan.Entries[0].Source, "planned source")
	assert.Nil(t, res.Applied, "nothing applied without auto apply")
	assert.FileExists(t, fresh, "file untouched")

	snap, err := e.Snapshot(h.ctx)
	require.NoError(t, err, "snapshot")
	assert.Len(t, snap, 2, "both files cataloged")
}

func TestHandleEventsDeletionReplansCompanions(t *testing.T) {
	h := newHarness(t)
	doc := h.write(t, "memo.docx", "body", time.Time{})
	bak := h.write(t, "memo.docx.bak", "older body", time.Time{})
	h.write(t, "other.pdf", "other", time.Time{})
	e := h.engine(t, nil)

	_, err := e.Classify(h.ctx)
	require.NoError(t, err, "classifying")

	require.NoError(t, os.Remove(bak), "removing companion")
	res, err := e.HandleEvents(h.ctx, []monitor.Event{{Kind: monitor.EventDeleted, Path: bak}})
	require.NoError(t, err, "handling deletion")
	assert.Equal(t, 1, res.Removed, "companion removed from catalog")
	require.NotNil(t, res.Plan, "surviving member is replanned")
	require.Len(t, res.Plan.Entries, 1, "only the memo group")
	assert.Equal(t, doc, res.Plan.Entries[0].Source, "memo planned alone")
	assert.Len(t, res.Plan.Entries[0].Moves, 1, "the deleted companion is not moved")
}

func TestHandleEventsAutoApply(t *testing.T) {
	h := newHarness(t)
	e := h.engine(t, func(c *Config) { c.AutoApply = true })
	require.NoError(t, e.Scan(h.ctx), "initial scan")

	var seen []*EventResult
	handler := e.MonitorHandler(func(r *EventResult) { seen = append(seen, r) })

	fresh := h.write(t, "paper.pdf", "paper", time.Time{})
	require.NoError(t, handler(h.ctx, []monitor.Event{{Kind: monitor.EventCreated, Path: fresh}}), "handling batch")

	require.Len(t, seen, 1, "result reported")
	require.NotNil(t, seen[0].Applied, "plan applied")
	assert.Equal(t, 1, seen[0].Applied.Moved, "one group moved")
	assert.NoFileExists(t, fresh, "file left the source")
	assert.FileExists(t, filepath.Join(h.dst, "Documents", "paper.pdf"), "file organized")

	stored, err := e.History(h.ctx)
	require.NoError(t, err, "listing history")
	assert.Len(t, stored, 1, "applied plan stored")
}
