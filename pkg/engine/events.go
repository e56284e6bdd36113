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

package engine

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/walteh/shelf/pkg/monitor"
	"github.com/walteh/shelf/pkg/operation"
	"github.com/walteh/shelf/pkg/plan"
)

// 📬 EventResult is what one monitor pass produced
type EventResult struct {
	Removed int                     `json:"removed"`
	Updated int                     `json:"updated"`
	Plan    *plan.Plan              `json:"plan,omitempty"`
	Applied *operation.ApplySummary `json:"applied,omitempty"`
}

// 🔄 HandleEvents folds a coalesced batch into the catalog and plans only the
// groups that contain an affected path. With AutoApply the plan is applied.
func (e *Engine) HandleEvents(ctx context.Context, batch []monitor.Event) (*EventResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	logger := zerolog.Ctx(ctx)

	if err := e.ensureCatalog(ctx); err != nil {
		return nil, err
	}
	if e.groups == nil {
		e.classify(ctx)
	}

	res := &EventResult{}
	affected := map[string]bool{}
	for _, ev := range batch {
		path := filepath.Clean(ev.Path)
		if !within(e.cfg.SourceRoot, path) || path == e.cfg.SourceRoot {
			continue
		}
		if e.cfg.TargetRoot != e.cfg.SourceRoot && within(e.cfg.TargetRoot, path) {
			continue
		}

		switch ev.Kind {
		case monitor.EventDeleted:
			// surviving companions of a removed file are replanned too
			for member := range e.groups.ByPath() {
				if member != path && !within(path, member) {
					continue
				}
				if g, ok := e.groups.GroupOf(member); ok {
					for _, m := range g.Members {
						affected[m.Path] = true
					}
				}
				e.groups.Remove(member)
			}
			if e.catalog.Remove(path) {
				res.Removed++
			}
		default:
			_, ok, err := e.catalog.Upsert(ctx, path)
			if err != nil {
				logger.Debug().Err(err).Str("path", path).Msg("ignoring event")
				continue
			}
			if ok {
				res.Updated++
				affected[path] = true
			}
		}
	}

	if len(affected) == 0 {
		logger.Debug().Int("events", len(batch)).Msg("no cataloged paths affected")
		return res, nil
	}

	cls := e.classify(ctx)
	keep := map[string]bool{}
	for p := range affected {
		if g, ok := cls.ForPath(p); ok {
			keep[g.Group.ID] = true
		}
	}
	if len(keep) == 0 {
		return res, nil
	}

	p, err := e.planner.Build(ctx, e.cfg.SourceRoot, e.cfg.TargetRoot, cls.assignments(keep))
	if err != nil {
		return res, err
	}
	res.Plan = plan.Preview(p)

	logger.Info().Str("plan", p.ID).Int("groups", len(keep)).Int("moves", p.MoveCount()).Msg("incremental plan ready")

	if !e.cfg.AutoApply || p.MoveCount() == 0 {
		return res, nil
	}
	sum, err := e.apply(ctx, p)
	res.Applied = &sum
	return res, err
}

// MonitorHandler adapts HandleEvents to the monitor's handler signature.
func (e *Engine) MonitorHandler(onResult func(*EventResult)) monitor.Handler {
	return func(ctx context.Context, batch []monitor.Event) error {
		res, err := e.HandleEvents(ctx, batch)
		if res != nil && onResult != nil {
			onResult(res)
		}
		return err
	}
}
