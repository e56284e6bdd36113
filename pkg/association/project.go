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
	"sort"

	"github.com/walteh/shelf/pkg/catalog"
)

type project struct {
	dir    string
	marker string
}

// detectProjects turns every outermost marked directory into one atomic group.
// Nested directories of a project are never examined on their own.
func (d *Detector) detectProjects(s *state) {
	if len(d.cfg.ProjectMarkers) == 0 {
		return
	}

	dirs := append([]catalog.Dir(nil), s.in.Dirs...)
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].RelPath < dirs[j].RelPath })

	var projects []project
	for _, dir := range dirs {
		if dir.RelPath == "." || dir.RelPath == "" {
			continue
		}
		if inProject(projects, dir.Path) {
			continue
		}
		for _, m := range d.cfg.ProjectMarkers {
			if dir.Has(m) {
				projects = append(projects, project{dir: dir.Path, marker: m})
				break
			}
		}
	}

	for _, p := range projects {
		first := -1
		primary := -1
		for i, f := range s.files {
			if s.claimed(i) || !within(p.dir, f.Path) {
				continue
			}
			if first < 0 {
				first = i
			}
			if primary < 0 && f.Dir == p.dir && f.Name == p.marker {
				primary = i
			}
		}
		if first < 0 {
			continue
		}
		if primary < 0 {
			primary = first
		}
		s.kind[primary] = KindProjectFolder
		s.primary[primary] = true
		s.roots[primary] = p.dir
		s.markers[primary] = p.marker
		for i, f := range s.files {
			if i != primary && !s.claimed(i) && within(p.dir, f.Path) {
				s.join(primary, i, KindProjectFolder)
			}
		}
	}
}

func inProject(projects []project, dir string) bool {
	for _, p := range projects {
		if dir == p.dir || within(p.dir, dir) {
			return true
		}
	}
	return false
}
