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

package plan

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/walteh/shelf/pkg/association"
	"github.com/walteh/shelf/pkg/catalog"
	"github.com/walteh/shelf/pkg/category"
	"github.com/walteh/shelf/pkg/recommend"
)

// ReviewDir is the folder below the target root that receives review moves.
const ReviewDir = "_review"

// 🧹 FromRecommendations plans moving duplicate and stale subjects into
// target/_review/<kind>. Clutter alerts carry no subject file and are ignored.
func (p *Planner) FromRecommendations(ctx context.Context, sourceRoot, targetRoot string, items []recommend.Item) (*Plan, error) {
	var assignments []Assignment
	seen := map[string]bool{}
	for i, it := range items {
		var bucket string
		switch it.Kind {
		case recommend.KindDuplicate:
			bucket = "duplicates"
		case recommend.KindStale:
			bucket = "stale"
		default:
			continue
		}
		if seen[it.Subject] {
			continue
		}
		seen[it.Subject] = true

		rec := reviewRecord(sourceRoot, it.Subject)
		assignments = append(assignments, Assignment{
			Group: association.Group{
				ID:      fmt.Sprintf("r%04d", i+1),
				Kind:    association.KindSingleton,
				Primary: rec,
				Members: []catalog.FileRecord{rec},
			},
			Category: category.New("recommend:"+string(it.Kind), ReviewDir, bucket),
		})
	}
	return p.Build(ctx, sourceRoot, targetRoot, assignments)
}

func reviewRecord(sourceRoot, path string) catalog.FileRecord {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]
	if stem == "" {
		stem = name
	}
	rel, err := filepath.Rel(sourceRoot, path)
	if err != nil {
		rel = name
	}
	return catalog.FileRecord{
		Path:    path,
		RelPath: filepath.ToSlash(rel),
		Dir:     filepath.Dir(path),
		Name:    name,
		Stem:    stem,
		Ext:     ext,
	}
}
