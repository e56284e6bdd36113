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

	"gitlab.com/tozd/go/errors"
)

// 🔗 CompanionRule pairs primary extensions with companion extensions
type CompanionRule struct {
	Primary    []string `json:"primary" yaml:"primary"`
	Companions []string `json:"companions" yaml:"companions"`
	// SameDirectory also claims companion-extension files in the primary's
	// directory whose names do not share its stem.
	SameDirectory bool `json:"same_directory,omitempty" yaml:"same_directory,omitempty"`
}

// 🎬 MediaConfig describes media-companion detection
type MediaConfig struct {
	Primary         []string `json:"primary" yaml:"primary"`
	Companions      []string `json:"companions" yaml:"companions"`
	MaxEditDistance int      `json:"max_edit_distance" yaml:"max_edit_distance"`
}

// 🌐 WebConfig describes web-bundle detection
type WebConfig struct {
	Primary        []string `json:"primary" yaml:"primary"`
	MaxScanBytes   int64    `json:"max_scan_bytes" yaml:"max_scan_bytes"`
	FilesDirSuffix []string `json:"files_dir_suffix" yaml:"files_dir_suffix"`
}

// ⚙️ Config holds every association table
type Config struct {
	Companions     []CompanionRule `json:"companions" yaml:"companions"`
	Media          MediaConfig     `json:"media" yaml:"media"`
	Web            WebConfig       `json:"web" yaml:"web"`
	ProjectMarkers []string        `json:"project_markers" yaml:"project_markers"`
}

// DefaultConfig returns the built-in association tables.
func DefaultConfig() Config {
	return Config{
		Companions: []CompanionRule{
			{Primary: []string{".exe"}, Companions: []string{".dll", ".ini", ".cfg", ".dat", ".manifest", ".config"}, SameDirectory: true},
			{Primary: []string{".msi"}, Companions: []string{".cab", ".ini"}},
			{Primary: []string{".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".odt", ".pdf", ".txt", ".md"}, Companions: []string{".bak", ".tmp", ".old", ".orig", ".swp"}},
			{Primary: []string{".psd", ".ai", ".sketch", ".fig"}, Companions: []string{".png", ".jpg", ".jpeg", ".svg", ".pdf"}},
			{Primary: []string{".cue"}, Companions: []string{".bin", ".img", ".iso"}},
			{Primary: []string{".shp"}, Companions: []string{".shx", ".dbf", ".prj", ".cpg"}},
		},
		Media: MediaConfig{
			Primary:         []string{".mp4", ".mkv", ".avi", ".mov", ".wmv", ".m4v", ".webm", ".mp3", ".flac", ".m4a", ".wav", ".ogg"},
			Companions:      []string{".srt", ".ass", ".ssa", ".vtt", ".sub", ".idx", ".nfo", ".jpg", ".jpeg", ".png", ".lrc", ".cue"},
			MaxEditDistance: 3,
		},
		Web: WebConfig{
			Primary:        []string{".html", ".htm", ".xhtml"},
			MaxScanBytes:   2 << 20,
			FilesDirSuffix: []string{"_files"},
		},
		ProjectMarkers: []string{
			".git", "go.mod", "package.json", "Cargo.toml", "pom.xml", "build.gradle",
			"requirements.txt", "setup.py", "pyproject.toml", "composer.json", "CMakeLists.txt",
			"Makefile", "Gemfile",
		},
	}
}

// ✅ Validate normalises extensions and rejects empty tables
func (c *Config) Validate() error {
	for i := range c.Companions {
		r := &c.Companions[i]
		if len(r.Primary) == 0 || len(r.Companions) == 0 {
			return errors.Errorf("companion rule %d: primary and companions are required", i)
		}
		r.Primary = normalizeExts(r.Primary)
		r.Companions = normalizeExts(r.Companions)
	}
	c.Media.Primary = normalizeExts(c.Media.Primary)
	c.Media.Companions = normalizeExts(c.Media.Companions)
	if c.Media.MaxEditDistance < 0 {
		return errors.Errorf("media max edit distance must not be negative")
	}
	c.Web.Primary = normalizeExts(c.Web.Primary)
	if c.Web.MaxScanBytes <= 0 {
		c.Web.MaxScanBytes = 2 << 20
	}
	return nil
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func extSet(exts []string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range normalizeExts(exts) {
		m[e] = true
	}
	return m
}
