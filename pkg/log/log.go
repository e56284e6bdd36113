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

// Package log renders plans, summaries and listings for people. Structured
// logs still go through zerolog; this is the console side.
package log

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/walteh/shelf/pkg/operation"
	"github.com/walteh/shelf/pkg/plan"
)

// 🎨 Display configuration
const (
	fileIndent = 4  // spaces to indent entries
	nameWidth  = 35 // base width for the source name
	opWidth    = 15 // width for the op column
)

// 🎯 Logger writes human output to a console
type Logger struct {
	console io.Writer
	mu      sync.Mutex
	dmp     *diffmatchpatch.DiffMatchPatch
}

// 🏭 New creates a new logger
func New(console io.Writer) *Logger {
	return &Logger{
		console: console,
		dmp:     diffmatchpatch.New(),
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context, or one writing nowhere
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		return New(io.Discard)
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// HighlightChange renders to with the parts that differ from from in green.
func (l *Logger) HighlightChange(from, to string) string {
	diffs := l.dmp.DiffMain(from, to, false)
	diffs = l.dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		case diffmatchpatch.DiffInsert:
			b.WriteString(color.New(color.FgGreen, color.Bold).Sprint(d.Text))
		}
	}
	return b.String()
}

func opStyle(op plan.Op) (rune, color.Attribute) {
	switch op {
	case plan.OpMove:
		return '→', color.FgGreen
	case plan.OpSkipConflict:
		return '✗', color.FgRed
	case plan.OpSkipProtected:
		return '⊘', color.FgYellow
	case plan.OpSkipInPlace:
		return '•', color.FgCyan
	default:
		return '-', color.FgHiBlack
	}
}

func rel(root, path string) string {
	r, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(r)
}

// 📝 formatEntry formats one plan entry for display
func (l *Logger) formatEntry(p *plan.Plan, e plan.Entry) string {
	symbol, symbolColor := opStyle(e.Op)
	src := rel(p.SourceRoot, e.Source)

	line := fmt.Sprintf("%s%s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, src),
		color.New(symbolColor).Sprint(fmt.Sprintf("%-*s", opWidth, e.Op)))

	switch {
	case e.Op == plan.OpMove || e.Op == plan.OpSkipInPlace:
		line += l.HighlightChange(src, rel(p.TargetRoot, e.Target))
	case e.Reason != "":
		line += color.New(color.Faint).Sprint(e.Reason)
	}
	if extra := len(e.Moves) - 1; extra > 0 {
		line += color.New(color.Faint).Sprintf(" (+%d with %s)", extra, e.Kind)
	}
	return line
}

// 📋 Plan prints every entry of p and a count line
func (l *Logger) Plan(ctx context.Context, p *plan.Plan) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(p.ID),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprint(p.Status))

	for _, e := range p.Entries {
		fmt.Fprintln(l.console, l.formatEntry(p, e))
	}

	counts := p.Counts()
	fmt.Fprintf(l.console, "\n%d to move, %d conflicts, %d protected, %d excluded, %d in place\n",
		counts[plan.OpMove], counts[plan.OpSkipConflict], counts[plan.OpSkipProtected],
		counts[plan.OpSkipExcluded], counts[plan.OpSkipInPlace])

	zerolog.Ctx(ctx).Debug().Str("plan", p.ID).Int("entries", len(p.Entries)).Msg("rendered plan")
}

// 🚀 ApplySummary prints the outcome of an apply
func (l *Logger) ApplySummary(ctx context.Context, s operation.ApplySummary) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf("plan %s: %d moved, %d unchanged, %d skipped, %d failed, %d pending",
		s.PlanID, s.Moved, s.Unchanged, s.Skipped, s.Failed, s.Pending)
	if s.Failed == 0 && s.Pending == 0 {
		pterm.Success.WithWriter(l.console).Println(msg)
		return
	}
	pterm.Warning.WithWriter(l.console).Println(msg)
	if s.Failure != nil {
		pterm.Error.WithWriter(l.console).Println(s.Failure.Error())
	}
	fmt.Fprintf(l.console, "undo with: shelf revert %s\n", s.PlanID)
}

// ↩️ RevertSummary prints the outcome of a revert
func (l *Logger) RevertSummary(ctx context.Context, s operation.RevertSummary) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf("plan %s: %d restored, %d failed", s.PlanID, s.Reverted, s.Failed)
	if s.Failed == 0 {
		pterm.Success.WithWriter(l.console).Println(msg)
		return
	}
	pterm.Warning.WithWriter(l.console).Println(msg)
	for _, f := range s.Failures {
		pterm.Error.WithWriter(l.console).Println(f.Error())
	}
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("shelf")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
