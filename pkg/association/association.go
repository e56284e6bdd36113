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

// Package association partitions cataloged files into groups that must move together.
package association

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/shelf/pkg/catalog"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// 🏷️ Kind names the relation that formed a group
type Kind string

const (
	KindSingleton         Kind = "singleton"
	KindSameStem          Kind = "same-stem"
	KindSiblingDependency Kind = "sibling-dependency"
	KindMediaCompanion    Kind = "media-companion"
	KindWebBundle         Kind = "web-bundle"
	KindProjectFolder     Kind = "project-folder"
)

// 📦 Group is a set of files that must be moved as one unit
type Group struct {
	ID      string               `json:"id"`
	Kind    Kind                 `json:"kind"`
	Primary catalog.FileRecord   `json:"primary"`
	Members []catalog.FileRecord `json:"members"` // primary first, then by rel path
	Root    string               `json:"root,omitempty"`   // project directory for project groups
	Marker  string               `json:"marker,omitempty"` // marker name that made Root a project
}

func (g *Group) clone() Group {
	cp := *g
	cp.Members = append([]catalog.FileRecord(nil), g.Members...)
	return cp
}

// 📥 Input is what detection reads
type Input struct {
	Root  string
	Files []catalog.FileRecord
	Dirs  []catalog.Dir
}

// InputFromCatalog takes a snapshot of c.
func InputFromCatalog(c *catalog.Catalog) Input {
	return Input{Root: c.Root(), Files: c.Snapshot(), Dirs: c.Dirs()}
}

// Opener opens a file for content sniffing.
type Opener func(path string) (io.ReadCloser, error)

// 🔎 Detector runs the relation passes
type Detector struct {
	cfg  Config
	open Opener
}

// Option configures a Detector.
type Option func(*Detector)

// WithOpener replaces os.Open for web-bundle scanning.
func WithOpener(o Opener) Option {
	return func(d *Detector) { d.open = o }
}

// 🏭 New creates a detector; cfg should already be validated
func New(cfg Config, opts ...Option) *Detector {
	d := &Detector{
		cfg: cfg,
		open: func(p string) (io.ReadCloser, error) {
			return os.Open(p)
		},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// state is the working set shared by the passes.
type state struct {
	in      Input
	files   []catalog.FileRecord
	index   map[string]int
	byDir   map[string][]int
	uf      *unionFind
	kind    []Kind // relation that claimed the file, empty when unclaimed
	primary []bool
	roots   map[int]string // primary index -> project root
	markers map[int]string
}

func (s *state) claimed(i int) bool {
	return s.kind[i] != ""
}

func (s *state) join(primary, member int, k Kind) {
	s.uf.union(primary, member)
	s.kind[primary] = k
	s.kind[member] = k
	s.primary[primary] = true
}

// 🔍 Detect partitions every file in the input into exactly one group
func (d *Detector) Detect(ctx context.Context, in Input) *Result {
	logger := zerolog.Ctx(ctx)
	start := time.Now()

	files := append([]catalog.FileRecord(nil), in.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })

	s := &state{
		in:      in,
		files:   files,
		index:   make(map[string]int, len(files)),
		byDir:   make(map[string][]int),
		uf:      newUnionFind(len(files)),
		kind:    make([]Kind, len(files)),
		primary: make([]bool, len(files)),
		roots:   make(map[int]string),
		markers: make(map[int]string),
	}
	for i, f := range files {
		s.index[f.Path] = i
		s.byDir[f.Dir] = append(s.byDir[f.Dir], i)
	}

	d.detectProjects(s)
	d.detectSameStem(s)
	d.detectSiblings(s)
	d.detectMedia(s)
	d.detectWeb(ctx, s)

	res := s.result()
	logger.Debug().
		Int("files", len(files)).
		Int("groups", len(res.groups)).
		Dur("took", time.Since(start)).
		Msg("association detection complete")
	return res
}

func (s *state) result() *Result {
	components := make(map[int][]int)
	for i := range s.files {
		r := s.uf.find(i)
		components[r] = append(components[r], i)
	}

	groups := make([]*Group, 0, len(components))
	for _, idxs := range components {
		sort.Ints(idxs)
		p := idxs[0]
		for _, i := range idxs {
			if s.primary[i] {
				p = i
				break
			}
		}
		k := s.kind[p]
		if k == "" || (len(idxs) == 1 && k != KindProjectFolder) {
			k = KindSingleton
		}
		g := &Group{
			Kind:    k,
			Primary: s.files[p],
			Root:    s.roots[p],
			Marker:  s.markers[p],
		}
		g.Members = append(g.Members, s.files[p])
		for _, i := range idxs {
			if i != p {
				g.Members = append(g.Members, s.files[i])
			}
		}
		groups = append(groups, g)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Primary.RelPath < groups[j].Primary.RelPath
	})

	res := &Result{byPath: make(map[string]*Group, len(s.files))}
	for i, g := range groups {
		g.ID = fmt.Sprintf("g%04d", i+1)
		for _, m := range g.Members {
			res.byPath[m.Path] = g
		}
	}
	res.groups = groups
	return res
}

// normalize folds case and composes unicode so visually equal names compare equal.
func normalize(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

func stripExt(name string) string {
	ext := filepath.Ext(name)
	if ext == name {
		return name
	}
	return strings.TrimSuffix(name, ext)
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
