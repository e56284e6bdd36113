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
	"context"
	"io"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

var (
	attrRefRe = regexp.MustCompile(`(?i)\b(?:src|href)\s*=\s*["']([^"']+)["']`)
	cssURLRe  = regexp.MustCompile(`(?i)url\(\s*["']?([^"')]+)["']?\s*\)`)
)

// detectWeb joins a page with the local assets it links to. Assets shared by
// two pages merge both pages into one group.
func (d *Detector) detectWeb(ctx context.Context, s *state) {
	primaries := extSet(d.cfg.Web.Primary)
	if len(primaries) == 0 {
		return
	}
	logger := zerolog.Ctx(ctx)

	for i, f := range s.files {
		// a page linked from an earlier page still brings its own assets
		if !primaries[f.Ext] || (s.claimed(i) && s.kind[i] != KindWebBundle) {
			continue
		}

		var assets []int
		refs, err := d.readRefs(f.Path)
		if err != nil {
			logger.Debug().Err(err).Str("path", f.Path).Msg("cannot scan page for assets")
		}
		for _, ref := range refs {
			target, ok := resolveRef(f.Dir, ref)
			if !ok {
				continue
			}
			j, ok := s.index[target]
			if !ok || j == i {
				// missing assets are dropped
				continue
			}
			assets = append(assets, j)
		}

		for _, suffix := range d.cfg.Web.FilesDirSuffix {
			dir := filepath.Join(f.Dir, f.Stem+suffix)
			for j, other := range s.files {
				if within(dir, other.Path) {
					assets = append(assets, j)
				}
			}
		}

		for _, j := range assets {
			if s.claimed(j) && s.kind[j] != KindWebBundle {
				continue
			}
			s.join(i, j, KindWebBundle)
		}
	}
}

func (d *Detector) readRefs(path string) ([]string, error) {
	rc, err := d.open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, d.cfg.Web.MaxScanBytes))
	if err != nil {
		return nil, err
	}

	var refs []string
	for _, re := range []*regexp.Regexp{attrRefRe, cssURLRe} {
		for _, m := range re.FindAllSubmatch(data, -1) {
			refs = append(refs, string(m[1]))
		}
	}
	return refs, nil
}

// resolveRef turns a relative link into an absolute path inside dir.
func resolveRef(dir, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if ref == "" || strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, `\`) {
		return "", false
	}
	if u, err := url.Parse(ref); err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	if unescaped, err := url.PathUnescape(ref); err == nil {
		ref = unescaped
	}
	target := filepath.Clean(filepath.Join(dir, filepath.FromSlash(ref)))
	if !within(dir, target) || target == dir {
		return "", false
	}
	return target, true
}
