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

package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/walteh/shelf/pkg/catalog"
	"github.com/walteh/shelf/pkg/category"
	"gitlab.com/tozd/go/errors"
)

// 🎚️ Action decides what a matching user rule does
type Action string

const (
	ActionInclude Action = "include"
	ActionExclude Action = "exclude"
)

// 📜 Rule is a user rule as it appears in configuration. Every set predicate must hold.
type Rule struct {
	ID       string `json:"id" yaml:"id"`
	Action   Action `json:"action" yaml:"action"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"` // template, required for include

	Extensions     []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	NamePattern    string   `json:"name_pattern,omitempty" yaml:"name_pattern,omitempty"`
	Glob           string   `json:"glob,omitempty" yaml:"glob,omitempty"`
	MinSize        int64    `json:"min_size,omitempty" yaml:"min_size,omitempty"`
	MaxSize        int64    `json:"max_size,omitempty" yaml:"max_size,omitempty"`
	ModifiedAfter  string   `json:"modified_after,omitempty" yaml:"modified_after,omitempty"`
	ModifiedBefore string   `json:"modified_before,omitempty" yaml:"modified_before,omitempty"`
	OlderThan      string   `json:"older_than,omitempty" yaml:"older_than,omitempty"`
	NewerThan      string   `json:"newer_than,omitempty" yaml:"newer_than,omitempty"`
}

// ❌ ConfigError is a malformed rule, reported when rules are loaded
type ConfigError struct {
	RuleID string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rule %q: %s: %s", e.RuleID, e.Field, e.Reason)
}

type compiledRule struct {
	Rule
	exts      map[string]bool
	nameRe    *regexp.Regexp
	after     time.Time
	before    time.Time
	olderThan time.Duration
	newerThan time.Duration
}

func compile(r Rule, idx int) (*compiledRule, error) {
	if r.ID == "" {
		r.ID = fmt.Sprintf("rule-%d", idx+1)
	}
	fail := func(field, reason string, args ...any) error {
		return &ConfigError{RuleID: r.ID, Field: field, Reason: fmt.Sprintf(reason, args...)}
	}

	switch r.Action {
	case "":
		r.Action = ActionInclude
	case ActionInclude, ActionExclude:
	default:
		return nil, fail("action", "must be include or exclude, got %q", r.Action)
	}

	c := &compiledRule{Rule: r, exts: map[string]bool{}}

	if r.Action == ActionInclude && strings.TrimSpace(r.Category) == "" {
		return nil, fail("category", "required for include rules")
	}
	if r.Category != "" {
		if err := validateTemplate(r.Category); err != nil {
			return nil, fail("category", "%v", err)
		}
	}

	for _, e := range r.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		c.exts[e] = true
	}

	if r.NamePattern != "" {
		re, err := regexp.Compile("(?i)" + r.NamePattern)
		if err != nil {
			return nil, fail("name_pattern", "%v", err)
		}
		c.nameRe = re
	}
	if r.Glob != "" && !doublestar.ValidatePattern(r.Glob) {
		return nil, fail("glob", "invalid pattern %q", r.Glob)
	}
	if r.MinSize < 0 || r.MaxSize < 0 {
		return nil, fail("size", "sizes must not be negative")
	}
	if r.MaxSize > 0 && r.MinSize > r.MaxSize {
		return nil, fail("size", "min_size %d is larger than max_size %d", r.MinSize, r.MaxSize)
	}

	var err error
	if c.after, err = parseDate(r.ModifiedAfter); err != nil {
		return nil, fail("modified_after", "%v", err)
	}
	if c.before, err = parseDate(r.ModifiedBefore); err != nil {
		return nil, fail("modified_before", "%v", err)
	}
	if !c.after.IsZero() && !c.before.IsZero() && !c.after.Before(c.before) {
		return nil, fail("modified_after", "must be before modified_before")
	}
	if c.olderThan, err = ParseAge(r.OlderThan); err != nil {
		return nil, fail("older_than", "%v", err)
	}
	if c.newerThan, err = ParseAge(r.NewerThan); err != nil {
		return nil, fail("newer_than", "%v", err)
	}
	return c, nil
}

func (c *compiledRule) matches(rec catalog.FileRecord, now time.Time) bool {
	if len(c.exts) > 0 && !c.exts[rec.Ext] {
		return false
	}
	if c.nameRe != nil && !c.nameRe.MatchString(rec.Name) {
		return false
	}
	if c.Glob != "" {
		if ok, _ := doublestar.Match(c.Glob, rec.RelPath); !ok {
			return false
		}
	}
	if c.MinSize > 0 && rec.Size < c.MinSize {
		return false
	}
	if c.MaxSize > 0 && rec.Size > c.MaxSize {
		return false
	}
	if !c.after.IsZero() && !rec.ModTime.After(c.after) {
		return false
	}
	if !c.before.IsZero() && !rec.ModTime.Before(c.before) {
		return false
	}
	age := now.Sub(rec.ModTime)
	if c.olderThan > 0 && age < c.olderThan {
		return false
	}
	if c.newerThan > 0 && age > c.newerThan {
		return false
	}
	return true
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("%q is not a date (want RFC 3339 or YYYY-MM-DD)", s)
}

// ParseAge accepts Go durations plus a day suffix ("30d").
func ParseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n < 0 {
			return 0, errors.Errorf("%q is not a day count", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Errorf("parsing age: %w", err)
	}
	if d < 0 {
		return 0, errors.Errorf("%q is negative", s)
	}
	return d, nil
}

// validateTemplate expands with sample values so bad segments surface at load time.
func validateTemplate(tmpl string) error {
	if err := expander.ValidateTemplate(tmpl); err != nil {
		return err
	}
	res, err := expander.Expand(tmpl, sampleVars)
	if err != nil {
		return err
	}
	_, err = category.Parse(res.Expanded, "")
	return err
}
