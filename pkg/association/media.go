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
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// detectMedia attaches subtitles, posters and nfo files to the closest video
// or audio primary in the same directory.
func (d *Detector) detectMedia(s *state) {
	primaries := extSet(d.cfg.Media.Primary)
	companions := extSet(d.cfg.Media.Companions)
	if len(primaries) == 0 || len(companions) == 0 {
		return
	}

	for j, c := range s.files {
		if s.claimed(j) || !companions[c.Ext] {
			continue
		}
		cstem := normalize(c.Stem)

		best, bestDist := -1, -1
		for _, i := range s.byDir[c.Dir] {
			if i == j || !primaries[s.files[i].Ext] {
				continue
			}
			// a primary may collect several companions but never joins another relation
			if s.claimed(i) && s.kind[i] != KindMediaCompanion {
				continue
			}
			dist, ok := d.mediaDistance(normalize(s.files[i].Stem), cstem)
			if !ok {
				continue
			}
			if best < 0 || dist < bestDist {
				best, bestDist = i, dist
			}
		}
		if best >= 0 {
			s.join(best, j, KindMediaCompanion)
		}
	}
}

// mediaDistance returns 0 for an exact or tagged match (movie.en.srt). Otherwise
// the shorter stem must be a prefix of the longer one and the distance is the
// length of the extra tail, so only appended release tags are tolerated.
func (d *Detector) mediaDistance(primary, companion string) (int, bool) {
	if primary == companion {
		return 0, true
	}
	if strings.HasPrefix(companion, primary) {
		switch companion[len(primary)] {
		case '.', '-', '_', ' ':
			return 0, true
		}
	}
	limit := d.cfg.Media.MaxEditDistance
	if limit <= 0 {
		return 0, false
	}

	short, long := primary, companion
	if len(short) > len(long) {
		short, long = long, short
	}
	if !strings.HasPrefix(long, short) {
		return 0, false
	}
	// substitutions and deletions cost more than the limit, leaving insertions
	params := levenshtein.NewParams().InsCost(1).SubCost(limit + 1).DelCost(limit + 1).MaxCost(limit)
	dist := levenshtein.Distance(short, long, params)
	// short stems would match almost anything
	if dist > limit || dist*3 > utf8.RuneCountInString(short) {
		return 0, false
	}
	return dist, true
}
