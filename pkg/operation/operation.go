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

package operation

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/walteh/shelf/pkg/journal"
	"github.com/walteh/shelf/pkg/plan"
	"github.com/walteh/shelf/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// ❌ ApplyError is the move that stopped an apply
type ApplyError struct {
	PlanID  string
	GroupID string
	From    string
	To      string
	Err     error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("applying plan %s: moving %s to %s: %v", e.PlanID, e.From, e.To, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// ❌ RevertError is one move that could not be undone
type RevertError struct {
	PlanID  string
	GroupID string
	From    string // where the file is now
	To      string // where it came from
	Err     error
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("reverting plan %s: moving %s back to %s: %v", e.PlanID, e.From, e.To, e.Err)
}

func (e *RevertError) Unwrap() error {
	return e.Err
}

// 📊 ApplySummary counts plan entries by outcome
type ApplySummary struct {
	PlanID    string      `json:"plan_id"`
	Moved     int         `json:"moved"`
	Unchanged int         `json:"unchanged"` // already applied by an earlier run
	Skipped   int         `json:"skipped"`
	Failed    int         `json:"failed"`
	Pending   int         `json:"pending"`
	Failure   *ApplyError `json:"-"`
	Status    plan.Status `json:"status"`
}

// 📊 RevertSummary counts undone moves
type RevertSummary struct {
	PlanID   string         `json:"plan_id"`
	Reverted int            `json:"reverted"`
	Failed   int            `json:"failed"`
	Failures []*RevertError `json:"-"`
	Status   plan.Status    `json:"status"`
}

// ⚙️ Executor applies and reverts plans
type Executor struct {
	fs       status.FileManager
	journal  journal.Store
	reporter status.StatusReporter
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithReporter sends per-file progress to r.
func WithReporter(r status.StatusReporter) ExecutorOption {
	return func(x *Executor) { x.reporter = r }
}

// 🏭 NewExecutor moves files through fs and records them in store
func NewExecutor(fs status.FileManager, store journal.Store, opts ...ExecutorOption) *Executor {
	x := &Executor{fs: fs, journal: store}
	for _, o := range opts {
		o(x)
	}
	return x
}

// 🚀 Apply executes move entries in order, journaling each move before the
// next. The first failure stops the run and leaves later entries pending.
func (x *Executor) Apply(ctx context.Context, p *plan.Plan) (ApplySummary, error) {
	logger := zerolog.Ctx(ctx)
	sum := ApplySummary{PlanID: p.ID}

	if err := x.journal.SavePlan(ctx, p); err != nil {
		return sum, errors.Errorf("saving plan: %w", err)
	}
	records, err := x.journal.Records(ctx, p.ID)
	if err != nil {
		return sum, errors.Errorf("loading journal: %w", err)
	}

	x.start(ctx, "apply", len(p.Entries))
	defer x.finish(ctx)

	var runErr error
	for i, e := range p.Entries {
		if err := ctx.Err(); err != nil {
			sum.Pending = len(p.Entries) - i
			runErr = errors.Errorf("apply cancelled: %w", err)
			break
		}

		if e.Op != plan.OpMove {
			sum.Skipped++
			x.track(ctx, status.FileInfo{Path: e.Source, Dest: e.Target, Status: status.StatusSkipped})
			x.progress(ctx, i+1)
			continue
		}

		moved, aerr := x.applyEntry(ctx, p.ID, e, records)
		if aerr != nil {
			sum.Failed++
			sum.Pending = len(p.Entries) - i - 1
			sum.Failure = aerr
			runErr = aerr
			logger.Error().Err(aerr.Err).Str("plan", p.ID).Str("group", e.GroupID).Str("from", aerr.From).Msg("apply stopped")
			break
		}
		if moved {
			sum.Moved++
		} else {
			sum.Unchanged++
		}
		x.progress(ctx, i+1)
	}

	if sum.Failed == 0 && sum.Pending == 0 {
		p.Status = plan.StatusApplied
	} else {
		p.Status = plan.StatusPartial
	}
	sum.Status = p.Status
	if err := x.journal.SavePlan(ctx, p); err != nil {
		return sum, errors.Join(runErr, errors.Errorf("saving plan status: %w", err))
	}

	logger.Debug().
		Str("plan", p.ID).
		Int("moved", sum.Moved).
		Int("unchanged", sum.Unchanged).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Int("pending", sum.Pending).
		Msg("apply finished")

	return sum, runErr
}

// applyEntry moves every member of e. It reports false when all members were
// already in place from an earlier run of the same plan.
func (x *Executor) applyEntry(ctx context.Context, planID string, e plan.Entry, records []journal.Record) (bool, *ApplyError) {
	moved := false
	for _, mv := range e.Moves {
		fail := func(err error) *ApplyError {
			x.track(ctx, status.FileInfo{Path: mv.From, Dest: mv.To, Status: status.StatusFailed, Error: err})
			return &ApplyError{PlanID: planID, GroupID: e.GroupID, From: mv.From, To: mv.To, Err: err}
		}

		if journal.Recorded(records, mv.From, mv.To) {
			done, err := x.alreadyMoved(ctx, mv)
			if err != nil {
				return moved, fail(err)
			}
			if done {
				continue
			}
		}

		if err := x.fs.Move(ctx, mv.From, mv.To); err != nil {
			return moved, fail(err)
		}

		rec := journal.Record{PlanID: planID, GroupID: e.GroupID, From: mv.From, To: mv.To, Kind: journal.KindMove}
		if _, err := x.journal.Append(ctx, rec); err != nil {
			if rerr := x.fs.Move(ctx, mv.To, mv.From); rerr != nil {
				err = errors.Join(err, errors.Errorf("rolling back move: %w", rerr))
			}
			return moved, fail(errors.Errorf("appending journal record: %w", err))
		}
		moved = true
		x.track(ctx, status.FileInfo{Path: mv.From, Dest: mv.To, Status: status.StatusMoved})
	}
	return moved, nil
}

func (x *Executor) alreadyMoved(ctx context.Context, mv plan.Move) (bool, error) {
	toExists, err := x.fs.Exists(ctx, mv.To)
	if err != nil {
		return false, err
	}
	fromExists, err := x.fs.Exists(ctx, mv.From)
	if err != nil {
		return false, err
	}
	return toExists && !fromExists, nil
}

// ↩️ Revert moves every outstanding journaled move of a plan back, newest
// first. Failures are collected and the rest still run.
func (x *Executor) Revert(ctx context.Context, planID string) (RevertSummary, error) {
	logger := zerolog.Ctx(ctx)
	sum := RevertSummary{PlanID: planID}

	p, err := x.journal.Plan(ctx, planID)
	if err != nil {
		return sum, errors.Errorf("loading plan: %w", err)
	}
	records, err := x.journal.Records(ctx, planID)
	if err != nil {
		return sum, errors.Errorf("loading journal: %w", err)
	}
	outstanding := journal.Outstanding(records)

	x.start(ctx, "revert", len(outstanding))
	defer x.finish(ctx)

	var errs []error
	var touched []string
	for i := len(outstanding) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			errs = append(errs, errors.Errorf("revert cancelled: %w", err))
			break
		}
		r := outstanding[i]

		fail := func(err error) {
			rerr := &RevertError{PlanID: planID, GroupID: r.GroupID, From: r.To, To: r.From, Err: err}
			sum.Failed++
			sum.Failures = append(sum.Failures, rerr)
			errs = append(errs, rerr)
			x.track(ctx, status.FileInfo{Path: r.To, Dest: r.From, Status: status.StatusFailed, Error: err})
			logger.Warn().Err(err).Str("plan", planID).Str("path", r.To).Msg("revert failed for one move")
		}

		if err := x.fs.Move(ctx, r.To, r.From); err != nil {
			fail(err)
			continue
		}
		touched = append(touched, filepath.Dir(r.To))

		rec := journal.Record{PlanID: planID, GroupID: r.GroupID, From: r.To, To: r.From, Kind: journal.KindRevert}
		if _, err := x.journal.Append(ctx, rec); err != nil {
			fail(errors.Errorf("appending journal record: %w", err))
			continue
		}
		sum.Reverted++
		x.track(ctx, status.FileInfo{Path: r.To, Dest: r.From, Status: status.StatusReverted})
		x.progress(ctx, len(outstanding)-i)
	}

	for _, dir := range touched {
		if err := x.fs.PruneEmptyDirs(ctx, dir, p.TargetRoot); err != nil {
			logger.Debug().Err(err).Str("dir", dir).Msg("could not prune directory")
		}
	}

	if len(errs) == 0 {
		p.Status = plan.StatusReverted
	}
	sum.Status = p.Status
	if err := x.journal.SavePlan(ctx, p); err != nil {
		errs = append(errs, errors.Errorf("saving plan status: %w", err))
	}

	logger.Debug().Str("plan", planID).Int("reverted", sum.Reverted).Int("failed", sum.Failed).Msg("revert finished")

	if len(errs) > 0 {
		return sum, errors.Join(errs...)
	}
	return sum, nil
}

func (x *Executor) start(ctx context.Context, name string, total int) {
	if x.reporter != nil {
		x.reporter.StartOperation(ctx, name, total)
	}
}

func (x *Executor) progress(ctx context.Context, n int) {
	if x.reporter != nil {
		x.reporter.UpdateProgress(ctx, n)
	}
}

func (x *Executor) finish(ctx context.Context) {
	if x.reporter != nil {
		x.reporter.FinishOperation(ctx)
	}
}

func (x *Executor) track(ctx context.Context, info status.FileInfo) {
	if x.reporter != nil {
		x.reporter.TrackFile(ctx, info)
	}
}
