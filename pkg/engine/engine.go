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

// Package engine wires the catalog, association, rules, bucketing, planning,
// execution and journal into one object. It owns the catalog and the journal;
// callers only submit requests and read snapshots.
package engine

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/shelf/pkg/association"
	"github.com/walteh/shelf/pkg/bucket"
	"github.com/walteh/shelf/pkg/catalog"
	"github.com/walteh/shelf/pkg/category"
	"github.com/walteh/shelf/pkg/journal"
	"github.com/walteh/shelf/pkg/operation"
	"github.com/walteh/shelf/pkg/plan"
	"github.com/walteh/shelf/pkg/recommend"
	"github.com/walteh/shelf/pkg/rules"
	"github.com/walteh/shelf/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// ⚙️ Config is everything the engine needs, passed by value
type Config struct {
	SourceRoot        string
	TargetRoot        string
	Catalog           catalog.Options
	Association       association.Config
	Rules             []rules.Rule
	Bucket            bucket.Config
	Recommend         recommend.Config
	MaxSuffix         int
	AllowCopyFallback bool
	AutoApply         bool
}

// DefaultConfig returns the stock tables for the two roots.
func DefaultConfig(source, target string) Config {
	return Config{
		SourceRoot:  source,
		TargetRoot:  target,
		Association: association.DefaultConfig(),
		Bucket:      bucket.DefaultConfig(),
		Recommend:   recommend.DefaultConfig(),
		MaxSuffix:   plan.DefaultMaxSuffix,
	}
}

// 🧭 Engine runs the organize pipeline
type Engine struct {
	cfg         Config
	fs          status.FileManager
	reporter    status.StatusReporter
	store       journal.Store
	detector    *association.Detector
	rules       *rules.Engine
	bucketer    *bucket.Bucketer
	planner     *plan.Planner
	executor    *operation.Executor
	runner      *operation.OperationRunner
	recommender *recommend.Recommender

	ruleOpts []rules.Option
	now      func() time.Time

	mu      sync.Mutex
	catalog *catalog.Catalog
	groups  *association.Result
}

// Option configures an Engine.
type Option func(*Engine)

// WithFileManager replaces the default status.Manager for filesystem access.
func WithFileManager(fs status.FileManager) Option {
	return func(e *Engine) { e.fs = fs }
}

// WithReporter receives apply and revert progress.
func WithReporter(r status.StatusReporter) Option {
	return func(e *Engine) { e.reporter = r }
}

// WithRuleOptions passes options such as scoring hooks to the rule engine.
func WithRuleOptions(opts ...rules.Option) Option {
	return func(e *Engine) { e.ruleOpts = append(e.ruleOpts, opts...) }
}

// WithClock fixes the clock used by rules, planning and recommendations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// 🏭 New validates cfg and builds every stage. Rule errors surface here, never
// during classification.
func New(ctx context.Context, cfg Config, store journal.Store, opts ...Option) (*Engine, error) {
	if cfg.SourceRoot == "" || cfg.TargetRoot == "" {
		return nil, errors.New("source and target roots are required")
	}
	if store == nil {
		return nil, errors.New("journal store is required")
	}
	var err error
	if cfg.SourceRoot, err = filepath.Abs(cfg.SourceRoot); err != nil {
		return nil, errors.Errorf("resolving source root: %w", err)
	}
	if cfg.TargetRoot, err = filepath.Abs(cfg.TargetRoot); err != nil {
		return nil, errors.Errorf("resolving target root: %w", err)
	}
	if cfg.TargetRoot != cfg.SourceRoot {
		// organized output is never rescanned as input
		cfg.Catalog.SkipDirs = append(cfg.Catalog.SkipDirs, cfg.TargetRoot)
	}
	if err := cfg.Catalog.Validate(); err != nil {
		return nil, errors.Errorf("validating catalog options: %w", err)
	}
	if err := cfg.Association.Validate(); err != nil {
		return nil, errors.Errorf("validating association config: %w", err)
	}

	e := &Engine{cfg: cfg, store: store, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	if e.fs == nil {
		mgr := status.New(zerolog.Ctx(ctx), status.WithCopyFallback(cfg.AllowCopyFallback))
		e.fs = mgr
		if e.reporter == nil {
			e.reporter = mgr
		}
	}

	if e.bucketer, err = bucket.New(cfg.Bucket); err != nil {
		return nil, errors.Errorf("creating bucketer: %w", err)
	}
	bcfg := e.bucketer.Config()
	e.cfg.Bucket = bcfg

	ruleOpts := append([]rules.Option{rules.WithClock(e.now), rules.WithLocation(bcfg.Location)}, e.ruleOpts...)
	if e.rules, err = rules.NewEngine(cfg.Rules, ruleOpts...); err != nil {
		return nil, err
	}
	if e.recommender, err = recommend.New(cfg.Recommend, recommend.WithClock(e.now)); err != nil {
		return nil, errors.Errorf("creating recommender: %w", err)
	}

	maxSuffix := cfg.MaxSuffix
	if maxSuffix <= 0 {
		maxSuffix = plan.DefaultMaxSuffix
	}
	e.detector = association.New(cfg.Association)
	e.planner = plan.New(e.fs, plan.WithMaxSuffix(maxSuffix), plan.WithClock(e.now))

	var execOpts []operation.ExecutorOption
	if e.reporter != nil {
		execOpts = append(execOpts, operation.WithReporter(e.reporter))
	}
	e.executor = operation.NewExecutor(e.fs, store, execOpts...)
	e.runner = operation.NewRunner(zerolog.Ctx(ctx), false)

	return e, nil
}

// Config returns the validated configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// 🔍 Scan rebuilds the catalog from the source root
func (e *Engine) Scan(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scan(ctx)
}

func (e *Engine) scan(ctx context.Context) error {
	c, err := catalog.Scan(ctx, e.cfg.SourceRoot, e.cfg.Catalog)
	if err != nil {
		return errors.Errorf("scanning %s: %w", e.cfg.SourceRoot, err)
	}
	for _, rerr := range c.Errors() {
		zerolog.Ctx(ctx).Warn().Err(rerr.Err).Str("path", rerr.Path).Msg("skipped unreadable file")
	}
	e.catalog = c
	e.groups = nil
	return nil
}

func (e *Engine) ensureCatalog(ctx context.Context) error {
	if e.catalog != nil {
		return nil
	}
	return e.scan(ctx)
}

// 📸 Snapshot returns a copy of the cataloged files
func (e *Engine) Snapshot(ctx context.Context) ([]catalog.FileRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureCatalog(ctx); err != nil {
		return nil, err
	}
	return e.catalog.Snapshot(), nil
}

// 🏷️ Classify runs association, rules and bucketing over the catalog
func (e *Engine) Classify(ctx context.Context) (*Classification, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureCatalog(ctx); err != nil {
		return nil, err
	}
	return e.classify(ctx), nil
}

func (e *Engine) classify(ctx context.Context) *Classification {
	logger := zerolog.Ctx(ctx)

	e.groups = e.detector.Detect(ctx, association.InputFromCatalog(e.catalog))
	e.catalog.AssignGroups(e.groups.ByPath())

	groups := e.groups.Groups()
	out := &Classification{SourceRoot: e.cfg.SourceRoot, TargetRoot: e.cfg.TargetRoot}
	out.Groups = make([]GroupClassification, len(groups))

	byBase := map[string][]int{}
	bases := map[string]category.Category{}
	for i, g := range groups {
		cls := e.rules.Classify(ctx, g)
		gc := GroupClassification{
			Group:    g,
			Base:     e.bound(ctx, cls.Category),
			Subtype:  cls.Subtype,
			Excluded: cls.Excluded,
			RuleID:   cls.RuleID,
			Source:   cls.Source,
		}
		gc.Category = gc.Base
		out.Groups[i] = gc
		if cls.Excluded {
			continue
		}
		key := gc.Base.String()
		byBase[key] = append(byBase[key], i)
		bases[key] = gc.Base
	}

	keys := make([]string, 0, len(byBase))
	for k := range byBase {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		idxs := byBase[k]
		items := make([]bucket.Item, 0, len(idxs))
		for _, i := range idxs {
			g := out.Groups[i]
			items = append(items, bucket.Item{GroupID: g.Group.ID, Primary: g.Group.Primary, Subtype: g.Subtype})
		}
		assigned := e.bucketer.Assign(ctx, bases[k], items)
		for _, i := range idxs {
			if c, ok := assigned[out.Groups[i].Group.ID]; ok {
				out.Groups[i].Category = c
			}
		}
	}

	logger.Debug().Int("groups", len(out.Groups)).Int("categories", len(keys)).Msg("classification complete")
	return out
}

// bound truncates a category deeper than the bucketing depth limit.
func (e *Engine) bound(ctx context.Context, c category.Category) category.Category {
	limit := e.cfg.Bucket.MaxDepth
	if c.IsZero() || c.Depth() <= limit {
		return c
	}
	zerolog.Ctx(ctx).Debug().Str("category", c.String()).Int("max_depth", limit).Msg("truncating deep category")
	return category.New(c.Origin, c.Segments[:limit]...)
}

// 👀 Preview classifies and plans without touching the filesystem
func (e *Engine) Preview(ctx context.Context) (*plan.Plan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureCatalog(ctx); err != nil {
		return nil, err
	}
	cls := e.classify(ctx)
	p, err := e.planner.Build(ctx, e.cfg.SourceRoot, e.cfg.TargetRoot, cls.Assignments())
	if err != nil {
		return nil, err
	}
	return plan.Preview(p), nil
}

// 🚀 Apply executes a plan and rescans the catalog afterwards
func (e *Engine) Apply(ctx context.Context, p *plan.Plan) (operation.ApplySummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.apply(ctx, p)
}

func (e *Engine) apply(ctx context.Context, p *plan.Plan) (operation.ApplySummary, error) {
	op := &operation.ApplyOperation{Executor: e.executor, Plan: p}
	runErr := e.runner.Run(ctx, op)
	e.refresh(ctx)
	return op.Summary, runErr
}

// ↩️ Revert undoes a stored plan
func (e *Engine) Revert(ctx context.Context, planID string) (operation.RevertSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	op := &operation.RevertOperation{Executor: e.executor, PlanID: planID}
	runErr := e.runner.Run(ctx, op)
	e.refresh(ctx)
	return op.Summary, runErr
}

// refresh rescans after files moved; a failure only drops the cached catalog.
func (e *Engine) refresh(ctx context.Context) {
	if err := e.scan(context.WithoutCancel(ctx)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("rescan after move failed")
		e.catalog = nil
		e.groups = nil
	}
}

// 💡 Recommend runs the read-only analyses over the catalog and plan history
func (e *Engine) Recommend(ctx context.Context) ([]recommend.Item, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureCatalog(ctx); err != nil {
		return nil, err
	}
	return e.recommender.Analyze(ctx, e.catalog.Snapshot(), e.catalog, journal.NewHistory(e.store))
}

// 🧹 ReviewPlan turns recommendations into a plan that moves their subjects
// below the target's review folder
func (e *Engine) ReviewPlan(ctx context.Context, items []recommend.Item) (*plan.Plan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.planner.FromRecommendations(ctx, e.cfg.SourceRoot, e.cfg.TargetRoot, items)
	if err != nil {
		return nil, err
	}
	return plan.Preview(p), nil
}

// 📜 History lists stored plans, newest first
func (e *Engine) History(ctx context.Context) ([]*plan.Plan, error) {
	return e.store.Plans(ctx)
}

// Plan loads one stored plan.
func (e *Engine) Plan(ctx context.Context, id string) (*plan.Plan, error) {
	return e.store.Plan(ctx, id)
}

// Records lists the journal records of one plan.
func (e *Engine) Records(ctx context.Context, id string) ([]journal.Record, error) {
	return e.store.Records(ctx, id)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
