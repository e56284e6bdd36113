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

// Package journal persists plans and the append-only record of every move
// applied or reverted. The records are what make a run revertible.
package journal

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/walteh/shelf/pkg/plan"
	"gitlab.com/tozd/go/errors"
)

// DefaultKeepPlans is how many plans history retains.
const DefaultKeepPlans = 50

// ErrPlanNotFound is returned for an unknown plan id.
var ErrPlanNotFound = errors.Base("plan not found")

// 🏷️ Kind says which direction a record moved a file
type Kind string

const (
	KindMove   Kind = "move"
	KindRevert Kind = "revert"
)

// 📒 Record is one completed filesystem move
type Record struct {
	PlanID  string    `json:"plan_id"`
	Seq     int       `json:"seq"`
	GroupID string    `json:"group_id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Kind    Kind      `json:"kind"`
	Time    time.Time `json:"time"`
}

// 🗄️ Store persists plans and records
type Store interface {
	// SavePlan inserts or replaces a plan; inserting may evict the oldest plans.
	SavePlan(ctx context.Context, p *plan.Plan) error
	Plan(ctx context.Context, id string) (*plan.Plan, error)
	// Plans lists stored plans, newest first.
	Plans(ctx context.Context) ([]*plan.Plan, error)
	// Append assigns the next sequence number for the record's plan.
	Append(ctx context.Context, r Record) (Record, error)
	Records(ctx context.Context, planID string) ([]Record, error)
	Close() error
}

// Outstanding returns the move records that have no later revert record for
// the same source and destination, in sequence order.
func Outstanding(records []Record) []Record {
	sorted := append([]Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	type key struct{ from, to string }
	reverted := map[key]int{}
	for _, r := range sorted {
		if r.Kind == KindRevert {
			// revert records store the move's direction reversed
			reverted[key{r.To, r.From}]++
		}
	}

	var out []Record
	for i := len(sorted) - 1; i >= 0; i-- {
		r := sorted[i]
		if r.Kind != KindMove {
			continue
		}
		k := key{r.From, r.To}
		if reverted[k] > 0 {
			reverted[k]--
			continue
		}
		out = append(out, r)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Recorded reports whether records hold an outstanding move from -> to.
func Recorded(records []Record, from, to string) bool {
	for _, r := range Outstanding(records) {
		if r.From == from && r.To == to {
			return true
		}
	}
	return false
}

// 🕰️ History answers when a directory was last organized, from the stored records
type History struct {
	store Store
}

// NewHistory wraps a store.
func NewHistory(s Store) *History {
	return &History{store: s}
}

// LastOrganized is the newest outstanding move out of or into dir.
func (h *History) LastOrganized(ctx context.Context, dir string) (time.Time, bool) {
	plans, err := h.store.Plans(ctx)
	if err != nil {
		return time.Time{}, false
	}
	dir = filepath.Clean(dir)

	var last time.Time
	found := false
	for _, p := range plans {
		records, err := h.store.Records(ctx, p.ID)
		if err != nil {
			continue
		}
		for _, r := range Outstanding(records) {
			if filepath.Dir(r.From) != dir && filepath.Dir(r.To) != dir {
				continue
			}
			if !found || r.Time.After(last) {
				last = r.Time
				found = true
			}
		}
	}
	return last, found
}

// evicted returns the ids of plans beyond keep.
func evicted(plans []*plan.Plan, keep int) []string {
	if keep <= 0 || len(plans) <= keep {
		return nil
	}
	sorted := append([]*plan.Plan(nil), plans...)
	sortNewestFirst(sorted)
	var ids []string
	for _, p := range sorted[keep:] {
		ids = append(ids, p.ID)
	}
	return ids
}

func sortNewestFirst(plans []*plan.Plan) {
	sort.SliceStable(plans, func(i, j int) bool {
		if !plans[i].CreatedAt.Equal(plans[j].CreatedAt) {
			return plans[i].CreatedAt.After(plans[j].CreatedAt)
		}
		return plans[i].ID > plans[j].ID
	})
}
