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

package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 🔐 Digest returns the cached SHA-256 of path, computing it on first use
func (c *Catalog) Digest(ctx context.Context, path string) (string, error) {
	path = filepath.Clean(path)

	c.mu.RLock()
	rec, ok := c.files[path]
	var cached string
	var size int64
	if ok {
		cached, size = rec.Digest, rec.Size
	}
	c.mu.RUnlock()

	if !ok {
		return "", errors.Errorf("path %s is not cataloged", path)
	}
	if cached != "" {
		return cached, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sum, err := hashFile(path)
	if err != nil {
		c.addError(ctx, path, err)
		return "", &ReadError{Path: path, Err: err}
	}

	c.mu.Lock()
	if cur, ok := c.files[path]; ok && cur.Size == size {
		cur.Digest = sum
	}
	c.mu.Unlock()
	return sum, nil
}

// ⚡ DigestAll computes digests for many paths on the worker pool.
// Unreadable paths are left out of the result.
func (c *Catalog) DigestAll(ctx context.Context, paths []string) (map[string]string, error) {
	var mu sync.Mutex
	out := make(map[string]string, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for _, p := range paths {
		p := p
		g.Go(func() error {
			sum, err := c.Digest(gctx, p)
			if err != nil {
				var re *ReadError
				if errors.As(err, &re) {
					return nil
				}
				return err
			}
			mu.Lock()
			out[filepath.Clean(p)] = sum
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Errorf("computing digests: %w", err)
	}
	return out, nil
}

// 🧾 Fingerprint is the content identity of one file
type Fingerprint struct {
	Size   int64
	Digest string
}

// Fingerprint maps every relative path to its size and digest.
func (c *Catalog) Fingerprint(ctx context.Context) (map[string]Fingerprint, error) {
	snap := c.Snapshot()
	paths := make([]string, 0, len(snap))
	for _, r := range snap {
		paths = append(paths, r.Path)
	}
	sums, err := c.DigestAll(ctx, paths)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Fingerprint, len(snap))
	for _, r := range snap {
		out[r.RelPath] = Fingerprint{Size: r.Size, Digest: sums[r.Path]}
	}
	return out, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
