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

package log

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/walteh/shelf/pkg/plan"
	"github.com/walteh/shelf/pkg/recommend"
)

// 📜 History prints stored plans, newest first
func (l *Logger) History(plans []*plan.Plan, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := table.NewWriter()
	t.SetOutputMirror(l.console)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Plan", "Created", "Status", "Moves", "Source", "Target"})
	for _, p := range plans {
		t.AppendRow(table.Row{
			p.ID,
			humanize.RelTime(p.CreatedAt, now, "ago", "from now"),
			p.Status,
			p.MoveCount(),
			p.SourceRoot,
			p.TargetRoot,
		})
	}
	t.Render()
}

// 💡 Recommendations prints analysis items grouped by kind
func (l *Logger) Recommendations(items []recommend.Item, sourceRoot string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := table.NewWriter()
	t.SetOutputMirror(l.console)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Kind", "Subject", "Size", "Suggestion"})
	var total uint64
	for _, it := range items {
		size := ""
		if it.Evidence.Size > 0 {
			size = humanize.IBytes(uint64(it.Evidence.Size))
			total += uint64(it.Evidence.Size)
		}
		subject := it.Subject
		if r, err := filepath.Rel(sourceRoot, it.Subject); err == nil {
			subject = filepath.ToSlash(r)
		}
		t.AppendRow(table.Row{it.Kind, subject, size, it.Suggestion})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d items", len(items)), humanize.IBytes(total), ""})
	t.Render()
}
