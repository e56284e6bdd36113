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

package association

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/shelf/pkg/catalog"
)

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.TestWriter{T: t}).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755), "creating parent dir")
		require.NoError(t, os.WriteFile(p, []byte(content), 0644), "writing %s", rel)
	}
}

func detect(t *testing.T, files map[string]string) (*Result, *catalog.Catalog) {
	t.Helper()
	ctx := testContext(t)
	root := t.TempDir()
	writeFiles(t, root, files)

	c, err := catalog.Scan(ctx, root, catalog.Options{})
	require.NoError(t, err, "scan should succeed")

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate(), "default config is valid")
	return New(cfg).Detect(ctx, InputFromCatalog(c)), c
}

func memberRels(g Group) []string {
	out := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		out = append(out, m.RelPath)
	}
	return out
}

func groupOfRel(t *testing.T, res *Result, c *catalog.Catalog, rel string) Group {
	t.Helper()
	g, ok := res.GroupOf(filepath.Join(c.Root(), filepath.FromSlash(rel)))
	require.True(t, ok, "%s should belong to a group", rel)
	return g
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		check func(t *testing.T, res *Result, c *catalog.Catalog)
	}{
		{
			name: "same_stem_backup",
			files: map[string]string{
				"report.docx":     "doc",
				"report.docx.bak": "old doc",
				"other.txt":       "x",
			},
			check: func(t *testing.T, res *Result, c *catalog.Catalog) {
				g := groupOfRel(t, res, c, "report.docx.bak")
				assert.Equal(t, KindSameStem, g.Kind, "backup pairs by stem")
				assert.Equal(t, "report.docx", g.Primary.RelPath, "document is primary")
				assert.Equal(t, []string{"report.docx", "report.docx.bak"}, memberRels(g), "primary first")
				assert.Equal(t, KindSingleton, groupOfRel(t, res, c, "other.txt").Kind, "unrelated file is alone")
			},
		},
		{
			name: "installer_with_libraries",
			files: map[string]string{
				"app/setup.exe":  "MZ",
				"app/setup.ini":  "[x]",
				"app/libfoo.dll": "MZ",
				"app/libbar.dll": "MZ",
				"app/readme.txt": "hi",
			},
			check: func(t *testing.T, res *Result, c *catalog.Catalog) {
				g := groupOfRel(t, res, c, "app/libbar.dll")
				assert.Equal(t, "app/setup.exe", g.Primary.RelPath, "executable is primary")
				assert.ElementsMatch(t, []string{"app/setup.exe", "app/setup.ini", "app/libfoo.dll", "app/libbar.dll"}, memberRels(g), "libraries and ini join")
				assert.Equal(t, KindSameStem, g.Kind, "first matching relation names the group")
				assert.Equal(t, KindSingleton, groupOfRel(t, res, c, "app/readme.txt").Kind, "readme is not a dependency")
			},
		},
		{
			name: "sibling_dependency_without_stem_match",
			files: map[string]string{
				"tool/run.exe":     "MZ",
				"tool/runtime.dll": "MZ",
			},
			check: func(t *testing.T, res *Result, c *catalog.Catalog) {
				g := groupOfRel(t, res, c, "tool/runtime.dll")
				assert.Equal(t, KindSiblingDependency, g.Kind, "library joins by directory")
				assert.Equal(t, "tool/run.exe", g.Primary.RelPath, "executable is primary")
			},
		},
		{
			name: "media_companions",
			files: map[string]string{
				"movies/Movie.2019.mkv":        "v",
				"movies/movie.2019.en.srt":     "s",
				"movies/Movie.2019.nfo":        "n",
				"movies/Movie.2019.1080p.ass":  "s",
				"movies/unrelated.srt":         "s",
				"movies/Other.Film.mp4":        "v",
				"movies/other.film.forced.vtt": "s",
			},
			check: func(t *testing.T, res *Result, c *catalog.Catalog) {
				g := groupOfRel(t, res, c, "movies/Movie.2019.mkv")
				assert.Equal(t, KindMediaCompanion, g.Kind, "video groups with subtitles")
				assert.ElementsMatch(t, []string{
					"movies/Movie.2019.mkv", "movies/movie.2019.en.srt",
					"movies/Movie.2019.nfo", "movies/Movie.2019.1080p.ass",
				}, memberRels(g), "case and tags are tolerated")

				other := groupOfRel(t, res, c, "movies/other.film.forced.vtt")
				assert.Equal(t, "movies/Other.Film.mp4", other.Primary.RelPath, "subtitle finds its own video")
				assert.Equal(t, KindSingleton, groupOfRel(t, res, c, "movies/unrelated.srt").Kind, "distant names do not match")
			},
		},
		{
			name: "media_release_suffix",
			files: map[string]string{
				"clips/holiday.mp4":   "v",
				"clips/holidayHD.srt": "s",
				"clips/holidya.srt":   "s",
				"clips/a.mp4":         "v",
				"clips/ab.srt":        "s",
			},
			check: func(t *testing.T, res *Result, c *catalog.Catalog) {
				g := groupOfRel(t, res, c, "clips/holidayHD.srt")
				assert.Equal(t, KindMediaCompanion, g.Kind, "appended tag tolerated")
				assert.Equal(t, "clips/holiday.mp4", g.Primary.RelPath, "video is primary")
				assert.Equal(t, KindSingleton, groupOfRel(t, res, c, "clips/holidya.srt").Kind, "typos are not suffixes")
				assert.Equal(t, KindSingleton, groupOfRel(t, res, c, "clips/ab.srt").Kind, "short stems need exact match")
			},
		},
		{
			name:  "camera_roll_not_grouped",
			files: cameraRoll(),
			check: func(t *testing.T, res *Result, c *catalog.Catalog) {
				g := groupOfRel(t, res, c, "DCIM/IMG_0005.mov")
				assert.Equal(t, []string{"DCIM/IMG_0005.mov", "DCIM/IMG_0005.jpg"}, memberRels(g), "only the same-numbered still joins the clip")
				for _, n := range []int{1, 4, 6, 12} {
					rel := fmt.Sprintf("DCIM/IMG_%04d.jpg", n)
					assert.Equal(t, KindSingleton, groupOfRel(t, res, c, rel).Kind, "%s stays alone", rel)
				}
			},
		},
		{
			name: "web_bundle",
			files: map[string]string{
				"site/index.html":       `<link href="css/style.css"><img src='img/logo%20big.png'><script src="missing.js"></script><a href="https://example.com/x.html">x</a><a href="#top">t</a>`,
				"site/about.html":       `<link href="./css/style.css?v=2">`,
				"site/css/style.css":    `body { background: url("../img/bg.png") }`,
				"site/img/logo big.png": "png",
				"site/img/bg.png":       "png",
				"site/lonely.html":      `<p>no assets</p>`,
			},
			check: func(t *testing.T, res *Result, c *catalog.Catalog) {
				g := groupOfRel(t, res, c, "site/css/style.css")
				assert.Equal(t, KindWebBundle, g.Kind, "stylesheet belongs to the pages")
				assert.Equal(t, "site/about.html", g.Primary.RelPath, "first page by path is primary")
				assert.ElementsMatch(t, []string{
					"site/about.html", "site/index.html", "site/css/style.css", "site/img/logo big.png",
				}, memberRels(g), "shared stylesheet merges both pages, missing assets dropped")
				assert.Equal(t, KindSingleton, groupOfRel(t, res, c, "site/img/bg.png").Kind, "assets of assets are not followed")
				assert.Equal(t, KindSingleton, groupOfRel(t, res, c, "site/lonely.html").Kind, "page without assets stays alone")
			},
		},
		{
			name: "linked_page_keeps_its_assets",
			files: map[string]string{
				"site/index.html": `<a href="zpage.html">more</a>`,
				"site/zpage.html": `<link rel="stylesheet" href="zpage.css">`,
				"site/zpage.css":  `p { color: red }`,
			},
			check: func(t *testing.T, res *Result, c *catalog.Catalog) {
				g := groupOfRel(t, res, c, "site/zpage.css")
				assert.Equal(t, KindWebBundle, g.Kind, "stylesheet follows its page")
				assert.Equal(t, "site/index.html", g.Primary.RelPath, "linking page is primary")
				assert.ElementsMatch(t, []string{"site/index.html", "site/zpage.html", "site/zpage.css"}, memberRels(g), "chained pages form one bundle")
			},
		},
		{
			name: "saved_page_files_dir",
			files: map[string]string{
				"saved/Article.html":             `<p>offline</p>`,
				"saved/Article_files/a.js":       "js",
				"saved/Article_files/deep/b.gif": "gif",
			},
			check: func(t *testing.T, res *Result, c *catalog.Catalog) {
				g := groupOfRel(t, res, c, "saved/Article_files/deep/b.gif")
				assert.Equal(t, "saved/Article.html", g.Primary.RelPath, "page owns its _files dir")
				assert.Len(t, g.Members, 3, "all saved assets join")
			},
		},
		{
			name: "project_folder",
			files: map[string]string{
				"code/tool/go.mod":           "module x",
				"code/tool/main.go":          "package main",
				"code/tool/web/package.json": "{}",
				"code/tool/web/index.html":   `<script src="app.js">`,
				"code/tool/web/app.js":       "1",
				"code/tool/bin/tool.exe":     "MZ",
				"code/notes.txt":             "x",
			},
			check: func(t *testing.T, res *Result, c *catalog.Catalog) {
				g := groupOfRel(t, res, c, "code/tool/web/app.js")
				assert.Equal(t, KindProjectFolder, g.Kind, "project swallows its subtree")
				assert.Equal(t, "code/tool/go.mod", g.Primary.RelPath, "marker file is primary")
				assert.Equal(t, filepath.Join(c.Root(), "code", "tool"), g.Root, "outermost marked dir is the root")
				assert.Equal(t, "go.mod", g.Marker, "marker recorded")
				assert.Len(t, g.Members, 6, "nested project and bundles do not split it")
				assert.Equal(t, KindSingleton, groupOfRel(t, res, c, "code/notes.txt").Kind, "outside the project")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, c := detect(t, tt.files)
			assertPartition(t, res, c)
			tt.check(t, res, c)
		})
	}
}

func cameraRoll() map[string]string {
	files := map[string]string{"DCIM/IMG_0005.mov": "clip"}
	for n := 1; n <= 12; n++ {
		files[fmt.Sprintf("DCIM/IMG_%04d.jpg", n)] = "jpeg"
	}
	return files
}

// assertPartition checks that every cataloged file sits in exactly one group.
func assertPartition(t *testing.T, res *Result, c *catalog.Catalog) {
	t.Helper()
	seen := map[string]string{}
	for _, g := range res.Groups() {
		require.NotEmpty(t, g.Members, "group %s has members", g.ID)
		assert.Equal(t, g.Primary.Path, g.Members[0].Path, "primary listed first in %s", g.ID)
		for _, m := range g.Members {
			prev, dup := seen[m.Path]
			assert.False(t, dup, "%s in both %s and %s", m.RelPath, prev, g.ID)
			seen[m.Path] = g.ID
		}
	}
	assert.Len(t, seen, c.Len(), "every file is grouped")
}

func TestDetectIsDeterministic(t *testing.T) {
	res, c := detect(t, map[string]string{
		"a/x.mkv":  "v", "a/x.srt": "s", "b/y.exe": "MZ", "b/z.dll": "MZ",
		"c/p.html": `<img src="i.png">`, "c/i.png": "p", "d/one.txt": "1",
	})
	want := res.Groups()

	files := c.Snapshot()
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 5; n++ {
		rng.Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })
		again := New(mustConfig(t)).Detect(testContext(t), Input{Root: c.Root(), Files: files, Dirs: c.Dirs()})
		if diff := cmp.Diff(want, again.Groups()); diff != "" {
			t.Fatalf("groups differ after shuffle (-want +got):\n%s", diff)
		}
	}
}

func mustConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate(), "default config is valid")
	return cfg
}

func TestResultRemove(t *testing.T) {
	res, c := detect(t, map[string]string{
		"m/show.mkv": "v",
		"m/show.srt": "s",
		"solo.txt":   "x",
	})
	before := res.Len()

	mkv := filepath.Join(c.Root(), "m", "show.mkv")
	assert.False(t, res.Remove(mkv), "group keeps its subtitle")
	g, ok := res.GroupOf(filepath.Join(c.Root(), "m", "show.srt"))
	require.True(t, ok, "subtitle still grouped")
	assert.Equal(t, "m/show.srt", g.Primary.RelPath, "next member promoted")
	assert.Equal(t, KindSingleton, g.Kind, "one member left")

	assert.True(t, res.Remove(filepath.Join(c.Root(), "solo.txt")), "last member dissolves the group")
	assert.Equal(t, before-1, res.Len(), "group count drops")
	assert.False(t, res.Remove(filepath.Join(c.Root(), "nope")), "unknown path is ignored")

	ids := make([]string, 0)
	for _, id := range res.ByPath() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	assert.Equal(t, []string{g.ID}, ids, "only the subtitle remains mapped")
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Companions: []CompanionRule{{Primary: []string{"EXE"}, Companions: []string{" dll "}}}}
	require.NoError(t, cfg.Validate(), "extensions are normalised")
	assert.Equal(t, []string{".exe"}, cfg.Companions[0].Primary)
	assert.Equal(t, []string{".dll"}, cfg.Companions[0].Companions)

	bad := Config{Companions: []CompanionRule{{Primary: []string{".exe"}}}}
	assert.Error(t, bad.Validate(), "companions are required")
}

func TestResolveRef(t *testing.T) {
	dir := filepath.FromSlash("/site")
	for ref, want := range map[string]string{
		"css/a.css":       filepath.FromSlash("/site/css/a.css"),
		"./b.png?x=1":     filepath.FromSlash("/site/b.png"),
		"../escape.png":   "",
		"/abs.png":        "",
		"//cdn.x/y.js":    "",
		"data:image/png,": "",
		"mailto:a@b.c":    "",
		"#frag":           "",
	} {
		got, ok := resolveRef(dir, ref)
		if want == "" {
			assert.False(t, ok, "%q should be rejected", ref)
			continue
		}
		assert.True(t, ok, "%q should resolve", ref)
		assert.Equal(t, want, got, "%q resolution", ref)
	}
}
