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

package plan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/shelf/pkg/association"
	"github.com/walteh/shelf/pkg/catalog"
	"github.com/walteh/shelf/pkg/category"
	"github.com/walteh/shelf/pkg/recommend"
	"github.com/walteh/shelf/pkg/status"
	"gitlab.com/tozd/go/errors"
)

type fixture struct {
	ctx    context.Context
	src    string
	dst    string
	mgr    *status.Manager
	nextID int
}

func newFixture(t *testing.T) *fixture {
	logger := zerolog.New(zerolog.TestWriter{T: t}).With().Timestamp().Logger()
	dir := t.TempDir()
	f := &fixture{
		ctx: logger.WithContext(context.Background()),
		src: filepath.Join(dir, "src"),
		dst: filepath.Join(dir, "dst"),
		mgr: status.New(&logger),
	}
	require.NoError(t, os.MkdirAll(f.src, 0755), "creating source root")
	require.NoError(t, os.MkdirAll(f.dst, 0755), "creating target root")
	return f
}

func (f *fixture) record(root, rel string) catalog.FileRecord {
	p := filepath.Join(root, filepath.FromSlash(rel))
	name := filepath.Base(p)
	ext := strings.ToLower(filepath.Ext(name))
	return catalog.FileRecord{
		Path:    p,
		RelPath: rel,
		Dir:     filepath.Dir(p),
		Name:    name,
		Stem:    strings.TrimSuffix(name, filepath.Ext(name)),
		Ext:     ext,
	}
}

func (f *fixture) group(kind association.Kind, rels ...string) association.Group {
	f.nextID++
	members := make([]catalog.FileRecord, 0, len(rels))
	for _, r := range rels {
		members = append(members, f.record(f.src, r))
	}
	return association.Group{
		ID:      "g" + strings.Repeat("0", 3) + string(rune('0'+f.nextID)),
		Kind:    kind,
		Primary: members[0],
		Members: members,
	}
}

func (f *fixture) touch(t *testing.T, abs string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755), "creating parent dir")
	require.NoError(t, os.WriteFile(abs, []byte("x"), 0644), "writing file")
}

func cat(segs ...string) category.Category {
	return category.New("test", segs...)
}

func destinations(t *testing.T, root string, e Entry) []string {
	out := make([]string, 0, len(e.Moves))
	for _, mv := range e.Moves {
		rel, err := filepath.Rel(root, mv.To)
		require.NoError(t, err, "relative destination")
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *fixture) []Assignment
		opts  []Option
		check func(t *testing.T, f *fixture, p *Plan)
	}{
		{
			name: "companions_move_together",
			setup: func(t *testing.T, f *fixture) []Assignment {
				return []Assignment{{
					Group:    f.group(association.KindSameStem, "report.docx", "report.docx.bak"),
					Category: cat("Documents", "work", "reports"),
				}}
			},
			check: func(t *testing.T, f *fixture, p *Plan) {
				require.Len(t, p.Entries, 1, "one entry")
				e := p.Entries[0]
				assert.Equal(t, OpMove, e.Op, "op")
				assert.Equal(t, []string{"Documents/work/reports/report.docx", "Documents/work/reports/report.docx.bak"}, destinations(t, f.dst, e), "both members land together")
			},
		},
		{
			name: "same_name_gets_numbered",
			setup: func(t *testing.T, f *fixture) []Assignment {
				return []Assignment{
					{Group: f.group(association.KindSingleton, "b/photo.jpg"), Category: cat("Images")},
					{Group: f.group(association.KindSingleton, "a/photo.jpg"), Category: cat("Images")},
				}
			},
			check: func(t *testing.T, f *fixture, p *Plan) {
				require.Len(t, p.Entries, 2, "two entries")
				assert.Equal(t, filepath.Join(f.src, "a", "photo.jpg"), p.Entries[0].Source, "scan order decides the first claimant")
				assert.Equal(t, []string{"Images/photo.jpg"}, destinations(t, f.dst, p.Entries[0]), "first keeps the name")
				assert.Equal(t, []string{"Images/photo (1).jpg"}, destinations(t, f.dst, p.Entries[1]), "second is numbered")
				assert.Equal(t, 1, p.Entries[1].Suffix, "suffix recorded")
			},
		},
		{
			name: "existing_file_on_disk_counts",
			setup: func(t *testing.T, f *fixture) []Assignment {
				f.touch(t, filepath.Join(f.dst, "Images", "photo.jpg"))
				f.touch(t, filepath.Join(f.dst, "Images", "photo (1).jpg"))
				return []Assignment{{Group: f.group(association.KindSingleton, "photo.jpg"), Category: cat("Images")}}
			},
			check: func(t *testing.T, f *fixture, p *Plan) {
				assert.Equal(t, []string{"Images/photo (2).jpg"}, destinations(t, f.dst, p.Entries[0]), "smallest free number")
			},
		},
		{
			name: "companions_share_the_number",
			setup: func(t *testing.T, f *fixture) []Assignment {
				return []Assignment{
					{Group: f.group(association.KindSameStem, "a/report.docx", "a/report.docx.bak"), Category: cat("Docs")},
					{Group: f.group(association.KindSameStem, "b/report.docx", "b/report.docx.bak"), Category: cat("Docs")},
				}
			},
			check: func(t *testing.T, f *fixture, p *Plan) {
				assert.Equal(t, []string{"Docs/report (1).docx", "Docs/report (1).docx.bak"}, destinations(t, f.dst, p.Entries[1]), "same N for the companion")
			},
		},
		{
			name: "unrenamable_companion_conflicts",
			setup: func(t *testing.T, f *fixture) []Assignment {
				return []Assignment{
					{Group: f.group(association.KindSingleton, "a/lib.dll"), Category: cat("Executables")},
					{Group: f.group(association.KindSiblingDependency, "x/setup.exe", "x/lib.dll"), Category: cat("Executables")},
				}
			},
			check: func(t *testing.T, f *fixture, p *Plan) {
				assert.Equal(t, OpMove, p.Entries[0].Op, "first claimant moves")
				assert.Equal(t, OpSkipConflict, p.Entries[1].Op, "dependency name cannot be renumbered")
				assert.Empty(t, p.Entries[1].Moves, "no moves for a skipped entry")
			},
		},
		{
			name: "suffix_limit",
			opts: []Option{WithMaxSuffix(1)},
			setup: func(t *testing.T, f *fixture) []Assignment {
				f.touch(t, filepath.Join(f.dst, "Images", "photo.jpg"))
				f.touch(t, filepath.Join(f.dst, "Images", "photo (1).jpg"))
				return []Assignment{{Group: f.group(association.KindSingleton, "photo.jpg"), Category: cat("Images")}}
			},
			check: func(t *testing.T, f *fixture, p *Plan) {
				assert.Equal(t, OpSkipConflict, p.Entries[0].Op, "no free name within the limit")
			},
		},
		{
			name: "saved_page_folder_renumbered",
			setup: func(t *testing.T, f *fixture) []Assignment {
				f.touch(t, filepath.Join(f.dst, "Web", "page.html"))
				return []Assignment{{
					Group:    f.group(association.KindWebBundle, "page.html", "page_files/app.css", "page_files/logo.png"),
					Category: cat("Web"),
				}}
			},
			check: func(t *testing.T, f *fixture, p *Plan) {
				assert.Equal(t, []string{"Web/page (1).html", "Web/page (1)_files/app.css", "Web/page (1)_files/logo.png"}, destinations(t, f.dst, p.Entries[0]), "asset folder follows the page")
			},
		},
		{
			name: "symlinked_category_is_protected",
			setup: func(t *testing.T, f *fixture) []Assignment {
				outside := t.TempDir()
				require.NoError(t, os.Symlink(outside, filepath.Join(f.dst, "Linked")), "creating symlink")
				return []Assignment{{Group: f.group(association.KindSingleton, "a.txt"), Category: cat("Linked")}}
			},
			check: func(t *testing.T, f *fixture, p *Plan) {
				assert.Equal(t, OpSkipProtected, p.Entries[0].Op, "symlink escape is protected")
			},
		},
		{
			name: "excluded_group",
			setup: func(t *testing.T, f *fixture) []Assignment {
				return []Assignment{{Group: f.group(association.KindSingleton, "secret.pdf"), Excluded: true, RuleID: "private"}}
			},
			check: func(t *testing.T, f *fixture, p *Plan) {
				assert.Equal(t, OpSkipExcluded, p.Entries[0].Op, "excluded")
				assert.Contains(t, p.Entries[0].Reason, "private", "reason names the rule")
			},
		},
		{
			name: "project_moves_as_directory",
			setup: func(t *testing.T, f *fixture) []Assignment {
				g := f.group(association.KindProjectFolder, "tool/go.mod", "tool/main.go")
				g.Root = filepath.Join(f.src, "tool")
				g.Marker = "go.mod"
				return []Assignment{{Group: g, Category: cat("Projects", "go")}}
			},
			check: func(t *testing.T, f *fixture, p *Plan) {
				e := p.Entries[0]
				assert.Equal(t, filepath.Join(f.src, "tool"), e.Source, "source is the project dir")
				assert.Equal(t, []string{"Projects/go/tool"}, destinations(t, f.dst, e), "single directory move")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			assignments := tt.setup(t, f)

			p, err := New(f.mgr, tt.opts...).Build(f.ctx, f.src, f.dst, assignments)
			require.NoError(t, err, "building plan")
			assert.Equal(t, StatusDraft, p.Status, "new plans are drafts")
			require.NoError(t, Verify(p), "destinations should be unique")
			tt.check(t, f, p)
		})
	}
}

func TestBuildInPlace(t *testing.T) {
	f := newFixture(t)
	rec := f.record(f.dst, "Images/photo.jpg")
	f.touch(t, rec.Path)
	g := association.Group{ID: "g0001", Kind: association.KindSingleton, Primary: rec, Members: []catalog.FileRecord{rec}}

	p, err := New(f.mgr).Build(f.ctx, f.dst, f.dst, []Assignment{{Group: g, Category: cat("Images")}})
	require.NoError(t, err, "building plan")
	assert.Equal(t, OpSkipInPlace, p.Entries[0].Op, "file already at its destination")
}

func TestVerifyDetectsDuplicates(t *testing.T) {
	p := &Plan{Entries: []Entry{
		{GroupID: "g1", Op: OpMove, Moves: []Move{{From: "/a", To: "/t/x"}}},
		{GroupID: "g2", Op: OpMove, Moves: []Move{{From: "/b", To: "/t/x"}}},
	}}
	err := Verify(p)
	require.Error(t, err, "duplicate destination")
	assert.True(t, errors.Is(err, ErrCollisionUnresolved), "sentinel error")
}

func TestPreviewOnlyMarksStatus(t *testing.T) {
	f := newFixture(t)
	src := filepath.Join(f.src, "a.txt")
	f.touch(t, src)
	g := association.Group{ID: "g0001", Kind: association.KindSingleton, Primary: f.record(f.src, "a.txt")}
	g.Members = []catalog.FileRecord{g.Primary}

	p, err := New(f.mgr).Build(f.ctx, f.src, f.dst, []Assignment{{Group: g, Category: cat("Documents")}})
	require.NoError(t, err, "building plan")

	before := p.Clone()
	Preview(p)
	assert.Equal(t, StatusPreviewed, p.Status, "status updated")
	assert.Equal(t, before.Entries, p.Entries, "entries unchanged")
	assert.FileExists(t, src, "preview leaves the source alone")
	assert.NoDirExists(t, filepath.Join(f.dst, "Documents"), "preview creates nothing")
}

func TestPlanIDsAreOrdered(t *testing.T) {
	f := newFixture(t)
	planner := New(f.mgr)
	a := planner.NewID()
	b := planner.NewID()
	assert.Len(t, a, 26, "ulid length")
	assert.Less(t, a, b, "ids sort by creation")
}

func TestFromRecommendations(t *testing.T) {
	f := newFixture(t)
	items := []recommend.Item{
		{Kind: recommend.KindClutter, Subject: f.src},
		{Kind: recommend.KindDuplicate, Subject: filepath.Join(f.src, "a", "copy.bin")},
		{Kind: recommend.KindStale, Subject: filepath.Join(f.src, "tmp", "old.log")},
		{Kind: recommend.KindStale, Subject: filepath.Join(f.src, "a", "copy.bin")},
	}

	p, err := New(f.mgr).FromRecommendations(f.ctx, f.src, f.dst, items)
	require.NoError(t, err, "building review plan")
	require.Len(t, p.Entries, 2, "clutter ignored and subjects deduplicated")
	assert.Equal(t, []string{"_review/duplicates/copy.bin"}, destinations(t, f.dst, p.Entries[0]), "duplicate review folder")
	assert.Equal(t, []string{"_review/stale/old.log"}, destinations(t, f.dst, p.Entries[1]), "stale review folder")
}
