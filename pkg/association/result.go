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

package association

import (
	"path/filepath"
)

// 🧩 Result is the partition produced by Detect
type Result struct {
	groups []*Group
	byPath map[string]*Group
}

// Len returns the number of live groups.
func (r *Result) Len() int {
	return len(r.groups)
}

// Groups returns copies of all groups ordered by primary path.
func (r *Result) Groups() []Group {
	out := make([]Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g.clone())
	}
	return out
}

// GroupOf returns the group containing path.
func (r *Result) GroupOf(path string) (Group, bool) {
	g, ok := r.byPath[filepath.Clean(path)]
	if !ok {
		return Group{}, false
	}
	return g.clone(), true
}

// ByPath maps every member path to its group id.
func (r *Result) ByPath() map[string]string {
	out := make(map[string]string, len(r.byPath))
	for p, g := range r.byPath {
		out[p] = g.ID
	}
	return out
}

// 🗑️ Remove drops a vanished member. A group that loses its last member is
// dissolved; a group that loses its primary promotes the next member.
// It reports whether a group was dissolved.
func (r *Result) Remove(path string) bool {
	path = filepath.Clean(path)
	g, ok := r.byPath[path]
	if !ok {
		return false
	}
	delete(r.byPath, path)

	members := g.Members[:0]
	for _, m := range g.Members {
		if m.Path != path {
			members = append(members, m)
		}
	}
	g.Members = members

	if len(g.Members) == 0 {
		for i, cur := range r.groups {
			if cur == g {
				r.groups = append(r.groups[:i], r.groups[i+1:]...)
				break
			}
		}
		return true
	}
	if g.Primary.Path == path {
		g.Primary = g.Members[0]
	}
	if len(g.Members) == 1 && g.Kind != KindProjectFolder {
		g.Kind = KindSingleton
	}
	return false
}
