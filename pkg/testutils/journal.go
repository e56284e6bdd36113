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

// Package testutils holds helpers shared by package tests.
package testutils

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/shelf/pkg/category"
	"github.com/walteh/shelf/pkg/journal"
	"github.com/walteh/shelf/pkg/plan"
	"gitlab.com/tozd/go/errors"
)

// Context returns a background context carrying a test logger.
func Context(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.TestWriter{T: t}).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

// StoreFactory opens a fresh store that keeps at most keep plans.
type StoreFactory func(t *testing.T, keep int) journal.Store

// SamplePlan builds a small applied plan created at the given time.
func SamplePlan(id string, created time.Time) *plan.Plan {
	return &plan.Plan{
		ID:         id,
		CreatedAt:  created.UTC(),
		SourceRoot: "/src",
		TargetRoot: "/dst",
		Status:     plan.StatusPreviewed,
		Entries: []plan.Entry{{
			GroupID:  "g0001",
			Kind:     "same-stem",
			Source:   "/src/report.docx",
			Target:   "/dst/Documents/report.docx",
			Op:       plan.OpMove,
			Category: category.New("builtin", "Documents"),
			Moves: []plan.Move{
				{From: "/src/report.docx", To: "/dst/Documents/report.docx"},
				{From: "/src/report.docx.bak", To: "/dst/Documents/report.docx.bak"},
			},
		}},
	}
}

// 🧪 RunStoreSuite checks the behaviour every journal.Store must share
func RunStoreSuite(t *testing.T, open StoreFactory) {
	base := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

	t.Run("save_and_load_plan", func(t *testing.T) {
		ctx := Context(t)
		s := open(t, 0)
		p := SamplePlan("p1", base)

		require.NoError(t, s.SavePlan(ctx, p), "saving plan")
		got, err := s.Plan(ctx, "p1")
		require.NoError(t, err, "loading plan")
		assert.Equal(t, p.Entries, got.Entries, "entries survive")
		assert.True(t, p.CreatedAt.Equal(got.CreatedAt), "created time survives")

		p.Status = plan.StatusApplied
		require.NoError(t, s.SavePlan(ctx, p), "updating plan")
		got, err = s.Plan(ctx, "p1")
		require.NoError(t, err, "reloading plan")
		assert.Equal(t, plan.StatusApplied, got.Status, "status updated in place")

		plans, err := s.Plans(ctx)
		require.NoError(t, err, "listing plans")
		assert.Len(t, plans, 1, "update does not duplicate")
	})

	t.Run("unknown_plan", func(t *testing.T) {
		ctx := Context(t)
		s := open(t, 0)

		_, err := s.Plan(ctx, "missing")
		assert.True(t, errors.Is(err, journal.ErrPlanNotFound), "plan lookup")
		_, err = s.Records(ctx, "missing")
		assert.True(t, errors.Is(err, journal.ErrPlanNotFound), "records lookup")
		_, err = s.Append(ctx, journal.Record{PlanID: "missing", Kind: journal.KindMove})
		assert.True(t, errors.Is(err, journal.ErrPlanNotFound), "append")
	})

	t.Run("append_assigns_sequence", func(t *testing.T) {
		ctx := Context(t)
		s := open(t, 0)
		require.NoError(t, s.SavePlan(ctx, SamplePlan("p1", base)), "saving plan")

		for i, mv := range SamplePlan("p1", base).Entries[0].Moves {
			r, err := s.Append(ctx, journal.Record{
				PlanID:  "p1",
				GroupID: "g0001",
				From:    mv.From,
				To:      mv.To,
				Kind:    journal.KindMove,
				Time:    base.Add(time.Duration(i) * time.Second),
			})
			require.NoError(t, err, "appending record %d", i)
			assert.Equal(t, i+1, r.Seq, "sequence number")
		}

		recs, err := s.Records(ctx, "p1")
		require.NoError(t, err, "listing records")
		require.Len(t, recs, 2, "two records")
		assert.Equal(t, "/src/report.docx", recs[0].From, "order preserved")
		assert.True(t, recs[1].Time.Equal(base.Add(time.Second)), "time survives")
		assert.Len(t, journal.Outstanding(recs), 2, "nothing reverted yet")
	})

	t.Run("history_is_bounded", func(t *testing.T) {
		ctx := Context(t)
		s := open(t, 3)
		for i := 0; i < 5; i++ {
			id := fmt.Sprintf("p%d", i)
			require.NoError(t, s.SavePlan(ctx, SamplePlan(id, base.Add(time.Duration(i)*time.Hour))), "saving %s", id)
			_, err := s.Append(ctx, journal.Record{PlanID: id, From: "/a", To: "/b", Kind: journal.KindMove})
			require.NoError(t, err, "appending to %s", id)
		}

		plans, err := s.Plans(ctx)
		require.NoError(t, err, "listing plans")
		var ids []string
		for _, p := range plans {
			ids = append(ids, p.ID)
		}
		assert.Equal(t, []string{"p4", "p3", "p2"}, ids, "newest plans kept, newest first")

		_, err = s.Records(ctx, "p0")
		assert.True(t, errors.Is(err, journal.ErrPlanNotFound), "evicted plan records are gone")
	})
}
