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

// Package rules maps a group's primary file to a base category.
//
// Precedence, first match wins: user exclusion rules, user inclusion rules,
// scoring hooks, built-in types (project markers, then the extension table),
// and finally Other. Classification never fails; malformed rules are rejected
// by NewEngine.
package rules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/shelf/pkg/association"
	"github.com/walteh/shelf/pkg/bucket"
	"github.com/walteh/shelf/pkg/catalog"
	"github.com/walteh/shelf/pkg/category"
	"github.com/walteh/shelf/pkg/text"
)

var expander = text.NewPlaceholderExpander("year", "month", "quarter", "day", "ext", "subtype", "size")

var sampleVars = text.Vars{
	"year": "2024", "month": "01", "quarter": "Q1", "day": "01",
	"ext": "txt", "subtype": "note", "size": "small",
}

// 🏷️ Source says which precedence level produced a classification
type Source string

const (
	SourceExclude  Source = "exclude-rule"
	SourceInclude  Source = "include-rule"
	SourceHook     Source = "hook"
	SourceBuiltin  Source = "builtin"
	SourceFallback Source = "fallback"
)

// 📋 Classification is the rule engine's answer for one group
type Classification struct {
	Category category.Category `json:"category"`
	Subtype  string            `json:"subtype,omitempty"`
	Excluded bool              `json:"excluded,omitempty"`
	RuleID   string            `json:"rule_id,omitempty"`
	Source   Source            `json:"source"`
}

// 🎯 Suggestion is what a scoring hook proposes
type Suggestion struct {
	Category string
	Score    float64
}

// Scorer is the extension point for content or learned classification.
// Only suggestions at or above the engine's minimum score are used.
type Scorer interface {
	Name() string
	Score(ctx context.Context, rec catalog.FileRecord) (Suggestion, bool)
}

// ⚙️ Engine holds compiled rules; it is safe for concurrent use after construction
type Engine struct {
	excludes []*compiledRule
	includes []*compiledRule
	hooks    []Scorer
	minScore float64
	probe    DimensionProbe
	now      func() time.Time
	loc      *time.Location
}

// Option configures an Engine.
type Option func(*Engine)

// WithScorer adds a scoring hook.
func WithScorer(s Scorer) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, s) }
}

// WithMinScore sets the hook acceptance threshold (default 0.5).
func WithMinScore(min float64) Option {
	return func(e *Engine) { e.minScore = min }
}

// WithDimensionProbe replaces the image header probe; nil disables it.
func WithDimensionProbe(p DimensionProbe) Option {
	return func(e *Engine) { e.probe = p }
}

// WithClock sets the clock used for age predicates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the zone for date placeholders (default UTC).
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// Compile checks a rule set without building an engine.
func Compile(rules []Rule) error {
	_, err := NewEngine(rules)
	return err
}

// 🏭 NewEngine compiles the user rules, returning a *ConfigError for the first bad one
func NewEngine(rules []Rule, opts ...Option) (*Engine, error) {
	e := &Engine{
		minScore: 0.5,
		probe:    HeaderProbe{},
		now:      time.Now,
		loc:      time.UTC,
	}
	seen := map[string]bool{}
	for i, r := range rules {
		c, err := compile(r, i)
		if err != nil {
			return nil, err
		}
		if seen[c.ID] {
			return nil, &ConfigError{RuleID: c.ID, Field: "id", Reason: "duplicate rule id"}
		}
		seen[c.ID] = true
		if c.Action == ActionExclude {
			e.excludes = append(e.excludes, c)
		} else {
			e.includes = append(e.includes, c)
		}
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// 🔍 Classify assigns a base category to a group through its primary file
func (e *Engine) Classify(ctx context.Context, g association.Group) Classification {
	rec := g.Primary
	now := e.now()
	typ, _ := TypeOf(rec.Ext)
	subtype, subpath := e.detectSubtype(rec, typ)

	for _, r := range e.excludes {
		if r.matches(rec, now) {
			cls := Classification{Excluded: true, RuleID: r.ID, Source: SourceExclude, Subtype: subtype}
			if r.Category != "" {
				cls.Category = e.render(r.Category, rec, subtype, r.ID)
			}
			return cls
		}
	}

	for _, r := range e.includes {
		if r.matches(rec, now) {
			return Classification{
				Category: e.render(r.Category, rec, subtype, r.ID),
				Subtype:  subtype,
				RuleID:   r.ID,
				Source:   SourceInclude,
			}
		}
	}

	for _, h := range e.hooks {
		s, ok := h.Score(ctx, rec)
		if !ok || s.Score < e.minScore {
			continue
		}
		c, err := category.Parse(s.Category, "hook:"+h.Name())
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("hook", h.Name()).Msg("ignoring hook suggestion")
			continue
		}
		return Classification{Category: c, Subtype: subtype, RuleID: h.Name(), Source: SourceHook}
	}

	if g.Kind == association.KindProjectFolder {
		c := category.New("builtin:project", TypeProjects)
		if lang, ok := projectLanguages[g.Marker]; ok {
			c = category.New("builtin:project", TypeProjects, lang)
		}
		return Classification{Category: c, Source: SourceBuiltin}
	}
	if g.Kind == association.KindWebBundle {
		return Classification{Category: category.New("builtin:web", TypeWebPages), Subtype: subtype, Source: SourceBuiltin}
	}

	if typ != "" {
		segs := append([]string{typ}, subpath...)
		return Classification{
			Category: category.New("builtin:"+strings.ToLower(typ), segs...),
			Subtype:  subtype,
			Source:   SourceBuiltin,
		}
	}

	return Classification{Category: category.New("fallback", category.Other), Subtype: subtype, Source: SourceFallback}
}

// render expands a template and drops segments left empty by missing values.
func (e *Engine) render(tmpl string, rec catalog.FileRecord, subtype, ruleID string) category.Category {
	t := rec.ModTime.In(e.loc)
	res, err := expander.Expand(tmpl, text.Vars{
		"year":    fmt.Sprintf("%04d", t.Year()),
		"month":   fmt.Sprintf("%02d", int(t.Month())),
		"quarter": fmt.Sprintf("Q%d", (int(t.Month())-1)/3+1),
		"day":     fmt.Sprintf("%02d", t.Day()),
		"ext":     strings.TrimPrefix(rec.Ext, "."),
		"subtype": subtype,
		"size":    bucket.SizeClass(rec.Size),
	})
	if err != nil {
		return category.New("fallback", category.Other)
	}

	var segs []string
	for _, s := range strings.Split(res.Expanded, "/") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		segs = append(segs, category.Sanitize(s))
	}
	if len(segs) == 0 {
		return category.New("fallback", category.Other)
	}
	return category.New(ruleID, segs...)
}
