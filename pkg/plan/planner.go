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
	"crypto/rand"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/walteh/shelf/pkg/association"
	"github.com/walteh/shelf/pkg/category"
	"gitlab.com/tozd/go/errors"
)

// DefaultMaxSuffix bounds the "name (N)" search.
const DefaultMaxSuffix = 1000

// 🔍 PathChecker answers the two filesystem questions the planner asks
type PathChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
	RealPath(ctx context.Context, path string) (string, error)
}

// 📥 Assignment is a group with its final category
type Assignment struct {
	Group    association.Group
	Category category.Category
	Excluded bool
	RuleID   string
}

// 🗺️ Planner builds plans; it never mutates the filesystem
type Planner struct {
	fs        PathChecker
	maxSuffix int
	now       func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Option configures a Planner.
type Option func(*Planner)

// WithMaxSuffix bounds collision numbering.
func WithMaxSuffix(n int) Option {
	return func(p *Planner) { p.maxSuffix = n }
}

// WithClock sets the plan timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// 🏭 New creates a planner that checks paths through fs
func New(fs PathChecker, opts ...Option) *Planner {
	p := &Planner{
		fs:        fs,
		maxSuffix: DefaultMaxSuffix,
		now:       time.Now,
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// NewID returns a fresh, time ordered plan id.
func (p *Planner) NewID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(p.now()), p.entropy).String()
}

// planState tracks claimed destinations while entries are built.
type planState struct {
	targetRoot string
	realTarget string
	claimed    map[string]string // destination -> group id
}

// 🏗️ Build resolves a destination for every assignment, in primary path order
func (p *Planner) Build(ctx context.Context, sourceRoot, targetRoot string, assignments []Assignment) (*Plan, error) {
	sourceRoot = filepath.Clean(sourceRoot)
	targetRoot = filepath.Clean(targetRoot)

	realTarget, err := p.fs.RealPath(ctx, targetRoot)
	if err != nil {
		return nil, errors.Errorf("resolving target root: %w", err)
	}

	sorted := make([]Assignment, len(assignments))
	copy(sorted, assignments)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Group, sorted[j].Group
		if a.Primary.RelPath != b.Primary.RelPath {
			return a.Primary.RelPath < b.Primary.RelPath
		}
		return a.ID < b.ID
	})

	st := &planState{
		targetRoot: targetRoot,
		realTarget: realTarget,
		claimed:    map[string]string{},
	}

	pl := &Plan{
		ID:         p.NewID(),
		CreatedAt:  p.now().UTC(),
		SourceRoot: sourceRoot,
		TargetRoot: targetRoot,
		Status:     StatusDraft,
	}

	for _, a := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, errors.Errorf("building plan: %w", err)
		}
		entry, err := p.entry(ctx, st, a)
		if err != nil {
			return nil, err
		}
		pl.Entries = append(pl.Entries, entry)
	}

	if err := Verify(pl); err != nil {
		return nil, err
	}

	counts := pl.Counts()
	zerolog.Ctx(ctx).Debug().
		Str("plan", pl.ID).
		Int("entries", len(pl.Entries)).
		Int("moves", counts[OpMove]).
		Int("conflicts", counts[OpSkipConflict]).
		Int("protected", counts[OpSkipProtected]).
		Msg("plan built")

	return pl, nil
}

func (p *Planner) entry(ctx context.Context, st *planState, a Assignment) (Entry, error) {
	g := a.Group
	e := Entry{
		GroupID:  g.ID,
		Kind:     g.Kind,
		Source:   g.Primary.Path,
		Category: a.Category,
	}
	if g.Kind == association.KindProjectFolder && g.Root != "" {
		e.Source = g.Root
	}

	if a.Excluded {
		e.Op = OpSkipExcluded
		e.Reason = fmt.Sprintf("excluded by rule %s", a.RuleID)
		return e, nil
	}

	base := baseMoves(g, a.Category.Path(st.targetRoot))

	inPlace := true
	for _, m := range base {
		if m.from != m.to(0) {
			inPlace = false
			break
		}
	}
	if inPlace {
		e.Op = OpSkipInPlace
		e.Target = base[0].to(0)
		e.Reason = "already at its destination"
		return e, nil
	}

	for _, m := range base {
		ok, err := p.protected(ctx, st, m.to(0))
		if err != nil {
			return Entry{}, err
		}
		if ok {
			e.Op = OpSkipProtected
			e.Target = base[0].to(0)
			e.Reason = fmt.Sprintf("%s is outside the target root", m.to(0))
			return e, nil
		}
	}

	for n := 0; n <= p.maxSuffix; n++ {
		free, fixable, err := p.available(ctx, st, base, n)
		if err != nil {
			return Entry{}, err
		}
		if free {
			e.Op = OpMove
			e.Suffix = n
			e.Target = base[0].to(n)
			for _, m := range base {
				to := m.to(n)
				st.claimed[to] = g.ID
				e.Moves = append(e.Moves, Move{From: m.from, To: to})
			}
			return e, nil
		}
		if !fixable {
			e.Op = OpSkipConflict
			e.Target = base[0].to(0)
			e.Reason = "a companion name collides and cannot be renumbered"
			return e, nil
		}
	}

	e.Op = OpSkipConflict
	e.Target = base[0].to(0)
	e.Reason = fmt.Sprintf("no free name within %d suffixes", p.maxSuffix)
	return e, nil
}

// available reports whether every destination for suffix n is free, and
// whether a larger suffix could still help.
func (p *Planner) available(ctx context.Context, st *planState, moves []memberMove, n int) (bool, bool, error) {
	for _, m := range moves {
		to := m.to(n)
		taken := false
		if _, ok := st.claimed[to]; ok {
			taken = true
		} else if to != m.from {
			exists, err := p.fs.Exists(ctx, to)
			if err != nil {
				return false, false, errors.Errorf("checking destination: %w", err)
			}
			taken = exists
		}
		if taken {
			return false, m.renamable, nil
		}
	}
	return true, true, nil
}

func (p *Planner) protected(ctx context.Context, st *planState, to string) (bool, error) {
	if !within(st.targetRoot, to) {
		return true, nil
	}
	resolved, err := p.fs.RealPath(ctx, to)
	if err != nil {
		return false, errors.Errorf("resolving destination: %w", err)
	}
	return !within(st.realTarget, resolved), nil
}

// memberMove is one member's source and its destination for any suffix.
type memberMove struct {
	from      string
	dir       string // destination directory
	rel       string // path below dir
	stem      string // primary stem used for renumbering
	renamable bool
}

func (m memberMove) to(n int) string {
	if n == 0 || !m.renamable {
		return filepath.Join(m.dir, m.rel)
	}
	return filepath.Join(m.dir, numbered(m.rel, m.stem, n))
}

// baseMoves lays the group out below dir, keeping member paths relative to
// the primary's directory. Project groups move as one directory.
func baseMoves(g association.Group, dir string) []memberMove {
	if g.Kind == association.KindProjectFolder && g.Root != "" {
		name := filepath.Base(g.Root)
		return []memberMove{{from: g.Root, dir: dir, rel: name, stem: name, renamable: true}}
	}

	stem := g.Primary.Stem
	members := g.Members
	if len(members) == 0 {
		members = append(members, g.Primary)
	}

	out := make([]memberMove, 0, len(members))
	for _, m := range members {
		rel, err := filepath.Rel(g.Primary.Dir, m.Path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			rel = m.Name
		}
		first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
		out = append(out, memberMove{
			from:      m.Path,
			dir:       dir,
			rel:       rel,
			stem:      stem,
			renamable: startsWithStem(first, stem),
		})
	}
	return out
}

// startsWithStem reports whether name is stem followed by a boundary.
func startsWithStem(name, stem string) bool {
	if stem == "" || !strings.HasPrefix(name, stem) {
		return false
	}
	if len(name) == len(stem) {
		return true
	}
	switch name[len(stem)] {
	case '.', '_', '-', ' ':
		return true
	}
	return false
}

// numbered inserts " (n)" after the stem in the first segment of rel.
func numbered(rel, stem string, n int) string {
	return stem + fmt.Sprintf(" (%d)", n) + rel[len(stem):]
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
