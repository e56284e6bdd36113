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
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/walteh/shelf/pkg/catalog"
)

// 📐 DimensionProbe reads pixel dimensions from an image header
type DimensionProbe interface {
	Dimensions(path string) (width, height int, ok bool)
}

// HeaderProbe decodes png, jpeg and gif headers from disk.
type HeaderProbe struct{}

func (HeaderProbe) Dimensions(path string) (int, int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// common desktop and phone screen sizes, landscape
var screenSizes = map[[2]int]bool{
	{1280, 720}: true, {1280, 800}: true, {1366, 768}: true, {1440, 900}: true,
	{1536, 864}: true, {1600, 900}: true, {1680, 1050}: true, {1920, 1080}: true,
	{1920, 1200}: true, {2560, 1440}: true, {2560, 1600}: true, {2880, 1800}: true,
	{3024, 1964}: true, {3456, 2234}: true, {3840, 2160}: true, {5120, 2880}: true,
	{1334, 750}: true, {1792, 828}: true, {2340, 1080}: true, {2160, 1620}: true,
	{2400, 1080}: true, {2436, 1125}: true, {2532, 1170}: true, {2556, 1179}: true,
	{2688, 1242}: true, {2778, 1284}: true, {2796, 1290}: true, {3200, 1440}: true,
}

func isScreenSize(w, h int) bool {
	if w < h {
		w, h = h, w
	}
	return screenSizes[[2]int{w, h}]
}

// detectSubtype returns the first matching name family for the given type,
// falling back to image dimensions to tell screenshots from photos.
func (e *Engine) detectSubtype(rec catalog.FileRecord, typ string) (string, []string) {
	for _, p := range subtypePatterns {
		if len(p.types) > 0 && !p.types[typ] {
			continue
		}
		if p.re.MatchString(rec.Name) {
			return p.subtype, p.path
		}
	}

	if typ != TypeImages || e.probe == nil {
		return "", nil
	}
	switch rec.Ext {
	case ".png", ".jpg", ".jpeg", ".gif":
	default:
		return "", nil
	}
	w, h, ok := e.probe.Dimensions(rec.Path)
	if !ok {
		return "", nil
	}
	if isScreenSize(w, h) && rec.Ext == ".png" {
		return SubtypeScreenshot, []string{"screenshots"}
	}
	if (rec.Ext == ".jpg" || rec.Ext == ".jpeg") && max(w, h) >= 2000 && !isScreenSize(w, h) {
		return SubtypePhoto, []string{"photos"}
	}
	return "", nil
}
