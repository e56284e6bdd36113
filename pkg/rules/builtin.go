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

package rules

import (
	"regexp"
)

// Built-in top level categories.
const (
	TypeImages        = "Images"
	TypeDocuments     = "Documents"
	TypeSpreadsheets  = "Spreadsheets"
	TypePresentations = "Presentations"
	TypeEbooks        = "Ebooks"
	TypeAudio         = "Audio"
	TypeVideos        = "Videos"
	TypeArchives      = "Archives"
	TypeExecutables   = "Executables"
	TypeCode          = "Code"
	TypeData          = "Data"
	TypeFonts         = "Fonts"
	TypeProjects      = "Projects"
	TypeWebPages      = "Web Pages"
)

var extensionTable = map[string][]string{
	TypeImages:        {".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".tif", ".webp", ".svg", ".heic", ".heif", ".ico", ".icns", ".raw", ".cr2", ".nef", ".arw", ".dng", ".psd", ".ai", ".sketch", ".fig", ".xd", ".eps"},
	TypeDocuments:     {".pdf", ".doc", ".docx", ".txt", ".md", ".rtf", ".odt", ".pages", ".tex", ".rst"},
	TypeSpreadsheets:  {".xls", ".xlsx", ".csv", ".tsv", ".ods", ".numbers"},
	TypePresentations: {".ppt", ".pptx", ".odp", ".key"},
	TypeEbooks:        {".epub", ".mobi", ".azw", ".azw3", ".fb2"},
	TypeAudio:         {".mp3", ".flac", ".wav", ".aac", ".ogg", ".m4a", ".wma", ".aiff", ".opus", ".ape"},
	TypeVideos:        {".mp4", ".mkv", ".avi", ".mov", ".wmv", ".flv", ".webm", ".m4v", ".3gp"},
	TypeArchives:      {".zip", ".rar", ".7z", ".tar", ".gz", ".tgz", ".bz2", ".xz", ".iso", ".img", ".dmg", ".bak", ".backup"},
	TypeExecutables:   {".exe", ".msi", ".pkg", ".deb", ".rpm", ".apk", ".appimage", ".bat", ".cmd"},
	TypeCode:          {".go", ".py", ".js", ".jsx", ".ts", ".tsx", ".java", ".kt", ".c", ".h", ".cpp", ".hpp", ".cs", ".rb", ".php", ".rs", ".swift", ".sh", ".ps1", ".html", ".htm", ".css", ".scss", ".vue", ".sql", ".dart", ".lua"},
	TypeData:          {".json", ".xml", ".yaml", ".yml", ".toml", ".ini", ".conf", ".cfg", ".db", ".sqlite", ".sqlite3", ".log"},
	TypeFonts:         {".ttf", ".otf", ".woff", ".woff2", ".eot"},
}

var typeByExt = func() map[string]string {
	m := map[string]string{}
	for typ, exts := range extensionTable {
		for _, e := range exts {
			m[e] = typ
		}
	}
	return m
}()

// Subtypes detected from file names and image headers.
const (
	SubtypeScreenshot = "screenshot"
	SubtypePhoto      = "photo"
	SubtypeLogo       = "logo"
	SubtypeReport     = "report"
	SubtypeNote       = "note"
	SubtypeManual     = "manual"
	SubtypeTutorial   = "tutorial"
	SubtypeTVShow     = "tv-show"
	SubtypeMovie      = "movie"
	SubtypeBackup     = "backup"
	SubtypeTemp       = "temp"
)

type subtypePattern struct {
	subtype string
	types   map[string]bool // empty means any type
	re      *regexp.Regexp
	path    []string // built-in category below the type, nil keeps the type alone
}

func types(ts ...string) map[string]bool {
	m := make(map[string]bool, len(ts))
	for _, t := range ts {
		m[t] = true
	}
	return m
}

// checked in order; type specific families come before the generic ones
var subtypePatterns = []subtypePattern{
	{SubtypeScreenshot, types(TypeImages), regexp.MustCompile(`(?i)^(screenshot|screen[ _-]?shot|capture|snipaste|snap.*\d+|屏幕截图|截图)`), []string{"screenshots"}},
	{SubtypePhoto, types(TypeImages), regexp.MustCompile(`(?i)^(img_\d+|photo_\d+|dsc_?\d+|dscn\d+|pxl_\d+|p\d{8}_\d+|wp_\d+|mmexport\d+|wechat)`), []string{"photos"}},
	{SubtypeLogo, types(TypeImages), regexp.MustCompile(`(?i)(logo|brand|icon|favicon)`), []string{"logos"}},
	{SubtypeReport, types(TypeDocuments, TypePresentations, TypeSpreadsheets), regexp.MustCompile(`(?i)(report|summary|analysis|报告|总结|分析|汇报)`), []string{"work", "reports"}},
	{SubtypeNote, types(TypeDocuments), regexp.MustCompile(`(?i)(note|memo|diary|journal|笔记|备忘|日记|记录)`), []string{"personal", "notes"}},
	{SubtypeManual, types(TypeDocuments, TypeEbooks), regexp.MustCompile(`(?i)(manual|guide|handbook|说明|手册|指南)`), []string{"reference", "manuals"}},
	{SubtypeTutorial, types(TypeDocuments, TypeVideos), regexp.MustCompile(`(?i)(tutorial|how[ _-]?to|course|lesson|教程|课程)`), []string{"tutorials"}},
	{SubtypeTVShow, types(TypeVideos), regexp.MustCompile(`(?i)(s\d{1,2}e\d{1,3}|\bep\d+|episode|第.*季.*集)`), []string{"tv-shows"}},
	{SubtypeMovie, types(TypeVideos), regexp.MustCompile(`(?i)(bluray|blu-ray|1080p|2160p|720p|\b4k\b|web-?dl|电影)`), []string{"movies"}},
	{SubtypeBackup, nil, regexp.MustCompile(`(?i)(backup|\bbak\b|\(\d+\)|副本|备份|\bcopy\b)`), nil},
	{SubtypeTemp, nil, regexp.MustCompile(`(?i)(^~|\.tmp$|\.temp$|^temp|临时)`), nil},
}

var projectLanguages = map[string]string{
	"go.mod":           "go",
	"package.json":     "node",
	"Cargo.toml":       "rust",
	"pom.xml":          "java",
	"build.gradle":     "java",
	"requirements.txt": "python",
	"setup.py":         "python",
	"pyproject.toml":   "python",
	"composer.json":    "php",
	"CMakeLists.txt":   "c",
	"Makefile":         "c",
	"Gemfile":          "ruby",
}

// TypeOf returns the built-in type for a lower-cased extension.
func TypeOf(ext string) (string, bool) {
	t, ok := typeByExt[ext]
	return t, ok
}
