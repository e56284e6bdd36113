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

// detectSameStem pairs a primary with companions in the same directory whose
// name minus its extension equals the primary's stem or full name
// (report.docx + report.docx.bak, setup.exe + setup.ini).
func (d *Detector) detectSameStem(s *state) {
	for _, rule := range d.cfg.Companions {
		primaries := extSet(rule.Primary)
		companions := extSet(rule.Companions)

		for i, f := range s.files {
			if s.claimed(i) || !primaries[f.Ext] {
				continue
			}
			stem := normalize(f.Stem)
			full := normalize(f.Name)
			for _, j := range s.byDir[f.Dir] {
				if j == i || s.claimed(j) {
					continue
				}
				c := s.files[j]
				if !companions[c.Ext] {
					continue
				}
				base := normalize(stripExt(c.Name))
				if base == stem || base == full {
					s.join(i, j, KindSameStem)
				}
			}
		}
	}
}

// detectSiblings lets primaries of same-directory rules absorb every remaining
// companion-extension file next to them (an installer and its libraries).
// The first primary by path wins when several share a directory.
func (d *Detector) detectSiblings(s *state) {
	for _, rule := range d.cfg.Companions {
		if !rule.SameDirectory {
			continue
		}
		primaries := extSet(rule.Primary)
		companions := extSet(rule.Companions)

		for i, f := range s.files {
			if !primaries[f.Ext] {
				continue
			}
			// a primary already grouped by stem may still take siblings
			if s.claimed(i) && !(s.primary[i] && s.kind[i] == KindSameStem) {
				continue
			}
			kind := KindSiblingDependency
			if s.claimed(i) {
				kind = s.kind[i]
			}
			for _, j := range s.byDir[f.Dir] {
				if j == i || s.claimed(j) || !companions[s.files[j].Ext] {
					continue
				}
				s.join(i, j, kind)
			}
		}
	}
}
