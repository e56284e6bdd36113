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

package journal

import (
	"context"
	"sync"
	"time"

	"github.com/walteh/shelf/pkg/plan"
	"gitlab.com/tozd/go/errors"
)

// Option configures a store.
type Option func(*options)

type options struct {
	keep int
	now  func() time.Time
}

func defaultOptions(opts []Option) options {
	o := options{keep: DefaultKeepPlans, now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithKeepPlans bounds history; n <= 0 keeps everything.
func WithKeepPlans(n int) Option {
	return func(o *options) { o.keep = n }
}

// WithClock sets the time stamped on appended records.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// 🧠 MemoryStore keeps everything in process; the file store builds on it
type MemoryStore struct {
	mu      sync.Mutex
	opts    options
	plans   map[string]*plan.Plan
	records map[string][]Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:    defaultOptions(opts),
		plans:   map[string]*plan.Plan{},
		records: map[string][]Record{},
	}
}

func (m *MemoryStore) SavePlan(ctx context.Context, p *plan.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.savePlan(p)
	return nil
}

func (m *MemoryStore) savePlan(p *plan.Plan) {
	_, existed := m.plans[p.ID]
	m.plans[p.ID] = p.Clone()
	if existed {
		return
	}
	for _, id := range evicted(m.list(), m.opts.keep) {
		delete(m.plans, id)
		delete(m.records, id)
	}
}

func (m *MemoryStore) Plan(ctx context.Context, id string) (*plan.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, errors.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return p.Clone(), nil
}

func (m *MemoryStore) Plans(ctx context.Context) ([]*plan.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.list()
	for i, p := range out {
		out[i] = p.Clone()
	}
	return out, nil
}

func (m *MemoryStore) list() []*plan.Plan {
	out := make([]*plan.Plan, 0, len(m.plans))
	for _, p := range m.plans {
		out = append(out, p)
	}
	sortNewestFirst(out)
	return out
}

func (m *MemoryStore) Append(ctx context.Context, r Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.append(r)
}

func (m *MemoryStore) append(r Record) (Record, error) {
	if _, ok := m.plans[r.PlanID]; !ok {
		return Record{}, errors.Errorf("appending record: %w: %s", ErrPlanNotFound, r.PlanID)
	}
	existing := m.records[r.PlanID]
	r.Seq = len(existing) + 1
	if r.Time.IsZero() {
		r.Time = m.opts.now()
	}
	r.Time = r.Time.UTC().Round(0)
	m.records[r.PlanID] = append(existing, r)
	return r, nil
}

func (m *MemoryStore) Records(ctx context.Context, planID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[planID]; !ok {
		return nil, errors.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	return append([]Record(nil), m.records[planID]...), nil
}

func (m *MemoryStore) Close() error {
	return nil
}
