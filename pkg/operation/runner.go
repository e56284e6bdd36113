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
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/shelf/pkg/plan"
	"gitlab.com/tozd/go/errors"
)

// 🎯 Operation is one unit of work the runner executes
type Operation interface {
	Name() string
	Execute(ctx context.Context) error
}

// 🚀 ApplyOperation applies a plan and keeps its summary
type ApplyOperation struct {
	Executor *Executor
	Plan     *plan.Plan
	Summary  ApplySummary
}

func (op *ApplyOperation) Name() string { return "apply" }

func (op *ApplyOperation) Execute(ctx context.Context) error {
	sum, err := op.Executor.Apply(ctx, op.Plan)
	op.Summary = sum
	return err
}

// ↩️ RevertOperation reverts a stored plan and keeps its summary
type RevertOperation struct {
	Executor *Executor
	PlanID   string
	Summary  RevertSummary
}

func (op *RevertOperation) Name() string { return "revert" }

func (op *RevertOperation) Execute(ctx context.Context) error {
	sum, err := op.Executor.Revert(ctx, op.PlanID)
	op.Summary = sum
	return err
}

// 🏃 OperationRunner executes operations
type OperationRunner struct {
	logger *zerolog.Logger
	async  bool
}

// 🏗️ NewRunner creates a new runner
func NewRunner(logger *zerolog.Logger, async bool) *OperationRunner {
	return &OperationRunner{
		logger: logger,
		async:  async,
	}
}

// 🏃 Run executes an operation and logs how long it took
func (r *OperationRunner) Run(ctx context.Context, op Operation) error {
	start := time.Now()
	var err error
	if r.async {
		err = r.runAsync(ctx, op)
	} else {
		err = r.runSync(ctx, op)
	}

	ev := r.logger.Debug()
	if err != nil {
		ev = r.logger.Warn().Err(err)
	}
	ev.Str("operation", op.Name()).Dur("took", time.Since(start)).Msg("operation finished")
	return err
}

// 🔄 runSync runs an operation synchronously
func (r *OperationRunner) runSync(ctx context.Context, op Operation) error {
	return op.Execute(ctx)
}

// ⚡ runAsync runs an operation on its own goroutine. Cancellation returns
// early; the executor still stops at the next entry boundary.
func (r *OperationRunner) runAsync(ctx context.Context, op Operation) error {
	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := op.Execute(ctx); err != nil {
			errCh <- errors.Errorf("executing %s: %w", op.Name(), err)
		}
	}()

	// Wait for completion or context cancellation
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return errors.Errorf("operation cancelled: %w", ctx.Err())
	case err := <-errCh:
		return err
	case <-done:
		// an error may have landed just before done closed
		select {
		case err := <-errCh:
			return err
		default:
			return nil
		}
	}
}
