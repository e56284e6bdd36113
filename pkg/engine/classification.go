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
	"github.com/walteh/shelf/pkg/association"
	"github.com/walteh/shelf/pkg/category"
	"github.com/walteh/shelf/pkg/plan"
	"github.com/walteh/shelf/pkg/rules"
)

// 🏷️ GroupClassification is the decision for one association group
type GroupClassification struct {
	Group    association.Group `json:"group"`
	Base     category.Category `json:"base"`     // from the rule engine
	Category category.Category `json:"category"` // after bucketing
	Subtype  string            `json:"subtype,omitempty"`
	Excluded bool              `json:"excluded,omitempty"`
	RuleID   string            `json:"rule_id,omitempty"`
	Source   rules.Source      `json:"source"`
}

// 📋 Classification is an immutable snapshot of one classification pass
type Classification struct {
	SourceRoot string                `json:"source_root"`
	TargetRoot string                `json:"target_root"`
	Groups     []GroupClassification `json:"groups"` // ordered by primary path
}

// Group returns the decision for a group id.
func (c *Classification) Group(id string) (GroupClassification, bool) {
	for _, g := range c.Groups {
		if g.Group.ID == id {
			return g, true
		}
	}
	return GroupClassification{}, false
}

// ForPath returns the decision for the group containing path.
func (c *Classification) ForPath(path string) (GroupClassification, bool) {
	for _, g := range c.Groups {
		for _, m := range g.Group.Members {
			if m.Path == path {
				return g, true
			}
		}
	}
	return GroupClassification{}, false
}

// Assignments converts every group to planner input.
func (c *Classification) Assignments() []plan.Assignment {
	return c.assignments(nil)
}

// assignments keeps only groups whose id is in keep, or all when keep is nil.
func (c *Classification) assignments(keep map[string]bool) []plan.Assignment {
	out := make([]plan.Assignment, 0, len(c.Groups))
	for _, g := range c.Groups {
		if keep != nil && !keep[g.Group.ID] {
			continue
		}
		out = append(out, plan.Assignment{
			Group:    g.Group,
			Category: g.Category,
			Excluded: g.Excluded,
			RuleID:   g.RuleID,
		})
	}
	return out
}
