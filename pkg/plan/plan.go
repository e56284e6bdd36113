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

// Package plan turns classified groups into an ordered, reversible list of moves.
package plan

import (
	"time"

	"github.com/walteh/shelf/pkg/association"
	"github.com/walteh/shelf/pkg/category"
	"gitlab.com/tozd/go/errors"
)

// ErrCollisionUnresolved means two moves in one plan share a destination.
var ErrCollisionUnresolved = errors.Base("plan collision unresolved")

// 🎬 Op is what the executor does with an entry
type Op string

const (
	OpMove          Op = "move"
	OpSkipConflict  Op = "skip-conflict"
	OpSkipProtected Op = "skip-protected"
	OpSkipExcluded  Op = "skip-excluded"
	OpSkipInPlace   Op = "skip-in-place"
)

// 📊 Status is where a plan is in its lifecycle
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPreviewed Status = "previewed"
	StatusApplied   Status = "applied"
	StatusPartial   Status = "partial"
	StatusReverted  Status = "reverted"
)

// 🚚 Move is one filesystem rename
type Move struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// 📝 Entry is the plan for one association group
type Entry struct {
	GroupID  string            `json:"group_id"`
	Kind     association.Kind  `json:"kind"`
	Source   string            `json:"source"`           // primary path, or the project dir
	Target   string            `json:"target,omitempty"` // resolved destination of Source
	Op       Op                `json:"op"`
	Suffix   int               `json:"suffix,omitempty"` // collision number, 0 when the name was free
	Category category.Category `json:"category"`
	Moves    []Move            `json:"moves,omitempty"`
	Reason   string            `json:"reason,omitempty"`
}

// 📋 Plan is an ordered list of entries with a stable id
type Plan struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	SourceRoot string    `json:"source_root"`
	TargetRoot string    `json:"target_root"`
	Entries    []Entry   `json:"entries"`
	Status     Status    `json:"status"`
}

// Counts tallies entries by op.
func (p *Plan) Counts() map[Op]int {
	out := map[Op]int{}
	for _, e := range p.Entries {
		out[e.Op]++
	}
	return out
}

// MoveCount is the number of member moves across all move entries.
func (p *Plan) MoveCount() int {
	n := 0
	for _, e := range p.Entries {
		if e.Op == OpMove {
			n += len(e.Moves)
		}
	}
	return n
}

// Entry returns the entry for a group id.
func (p *Plan) Entry(groupID string) (Entry, bool) {
	for _, e := range p.Entries {
		if e.GroupID == groupID {
			return e, true
		}
	}
	return Entry{}, false
}

// Clone returns a deep copy so callers can hold an immutable snapshot.
func (p *Plan) Clone() *Plan {
	cp := *p
	cp.Entries = make([]Entry, len(p.Entries))
	for i, e := range p.Entries {
		e.Moves = append([]Move(nil), e.Moves...)
		e.Category = category.New(e.Category.Origin, e.Category.Segments...)
		cp.Entries[i] = e
	}
	return &cp
}

// 👀 Preview marks a plan as previewed. It never touches the filesystem.
func Preview(p *Plan) *Plan {
	if p.Status == StatusDraft {
		p.Status = StatusPreviewed
	}
	return p
}

// Verify checks that every move destination is unique.
func Verify(p *Plan) error {
	seen := map[string]string{}
	for _, e := range p.Entries {
		if e.Op != OpMove {
			continue
		}
		for _, mv := range e.Moves {
			if other, ok := seen[mv.To]; ok {
				return errors.Errorf("%w: %s claimed by %s and %s", ErrCollisionUnresolved, mv.To, other, e.GroupID)
			}
			seen[mv.To] = e.GroupID
		}
	}
	return nil
}
