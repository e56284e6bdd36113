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

// Package category holds the path-like category value shared by the rule
// engine, the bucketer and the planner.
package category

import (
	"path"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Other is the fallback category for files nothing else claims.
const Other = "Other"

// 📁 Category is an ordered list of path segments plus where it came from
type Category struct {
	Segments []string `json:"segments"`
	Origin   string   `json:"origin,omitempty"` // rule id or bucketer decision
}

// 🏭 New builds a category from segments
func New(origin string, segments ...string) Category {
	return Category{Segments: append([]string(nil), segments...), Origin: origin}
}

// 🔍 Parse splits a slash separated category string
func Parse(s, origin string) (Category, error) {
	s = strings.Trim(filepath.ToSlash(s), "/")
	if s == "" {
		return Category{}, errors.New("empty category")
	}
	segs := strings.Split(s, "/")
	c := Category{Segments: segs, Origin: origin}
	if err := c.Validate(0); err != nil {
		return Category{}, err
	}
	return c, nil
}

// Depth is the number of segments.
func (c Category) Depth() int {
	return len(c.Segments)
}

// IsZero reports whether the category has no segments.
func (c Category) IsZero() bool {
	return len(c.Segments) == 0
}

// String joins the segments with forward slashes.
func (c Category) String() string {
	return path.Join(c.Segments...)
}

// Path returns the category as an OS path below root.
func (c Category) Path(root string) string {
	return filepath.Join(append([]string{root}, c.Segments...)...)
}

// Last returns the final segment or an empty string.
func (c Category) Last() string {
	if len(c.Segments) == 0 {
		return ""
	}
	return c.Segments[len(c.Segments)-1]
}

// 🌱 Child returns a copy extended by one segment
func (c Category) Child(segment, origin string) Category {
	segs := make([]string, 0, len(c.Segments)+1)
	segs = append(segs, c.Segments...)
	segs = append(segs, Sanitize(segment))
	return Category{Segments: segs, Origin: origin}
}

// Equal compares segments only.
func (c Category) Equal(o Category) bool {
	if len(c.Segments) != len(o.Segments) {
		return false
	}
	for i := range c.Segments {
		if c.Segments[i] != o.Segments[i] {
			return false
		}
	}
	return true
}

// ✅ Validate checks segment hygiene and the depth bound (maxDepth <= 0 disables it)
func (c Category) Validate(maxDepth int) error {
	if len(c.Segments) == 0 {
		return errors.New("category has no segments")
	}
	if maxDepth > 0 && len(c.Segments) > maxDepth {
		return errors.Errorf("category %q exceeds max depth %d", c.String(), maxDepth)
	}
	for i, s := range c.Segments {
		switch {
		case strings.TrimSpace(s) == "":
			return errors.Errorf("category %q: segment %d is empty", c.String(), i)
		case s == "." || s == "..":
			return errors.Errorf("category %q: segment %d is %q", c.String(), i, s)
		case strings.ContainsAny(s, `/\`):
			return errors.Errorf("category %q: segment %d contains a path separator", c.String(), i)
		}
	}
	return nil
}

// 🧹 Sanitize makes a single segment safe to use as a directory name
func Sanitize(s string) string {
	s = strings.TrimSpace(strings.NewReplacer("/", "-", `\`, "-", "\x00", "").Replace(s))
	switch s {
	case "", ".", "..":
		return "misc"
	}
	return s
}
