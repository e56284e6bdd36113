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


package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"testing"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/shelf/cmd/shelf/opts"
	"github.com/walteh/shelf/pkg/config"
)

type cli struct {
	dir string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	color.NoColor = true
	pterm.DisableStyling()
	t.Cleanup(func() {
		color.NoColor = false
		pterm.EnableStyling()
	})

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err, "resolving temp dir")
	t.Setenv(config.EnvDir, filepath.Join(dir, "data"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755), "creating source")
	return &cli{dir: dir}
}

func (c *cli) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(c.dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755), "creating parent of %s", rel)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "writing %s", rel)
}

func (c *cli) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	root := newRootCmd(&opts.RootOpts{}, stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	t.Logf("stderr:\n%s", stderr.String())
	return stdout.String(), err
}

func TestApplyHistoryRevert(t *testing.T) {
	c := newCLI(t)
	c.write(t, "config.yaml", `
source: src
target: dst
journal:
  backend: file
  path: journal.lock
`)
	c.write(t, "src/report.docx", "quarterly numbers")
	c.write(t, "src/report.docx.bak", "older numbers")
	cfgPath := filepath.Join(c.dir, "config.yaml")
	doc := filepath.Join(c.dir, "src", "report.docx")

	out, err := c.run(t, "-c", cfgPath, "preview")
	require.NoError(t, err, "preview")
	assert.Contains(t, out, "report.docx", "entry listed")
	assert.Contains(t, out, "1 to move", "count line")
	assert.FileExists(t, doc, "preview moves nothing")

	out, err = c.run(t, "-c", cfgPath, "apply", "--yes")
	require.NoError(t, err, "apply")
	m := regexp.MustCompile(`plan (\S+): 1 moved`).FindStringSubmatch(out)
	require.Len(t, m, 2, "apply summary names the plan: %s", out)
	planID := m[1]
	assert.NoFileExists(t, doc, "document moved")
	assert.FileExists(t, filepath.Join(c.dir, "journal.lock"), "journal written next to the config")

	out, err = c.run(t, "-c", cfgPath, "history")
	require.NoError(t, err, "history")
	assert.Contains(t, out, planID, "plan listed")
	assert.Contains(t, out, "applied", "status listed")

	out, err = c.run(t, "-c", cfgPath, "history", "--show", planID)
	require.NoError(t, err, "history --show")
	assert.Contains(t, out, "report.docx", "stored entries printed")

	out, err = c.run(t, "-c", cfgPath, "revert", planID)
	require.NoError(t, err, "revert")
	assert.Contains(t, out, "2 restored, 0 failed", "both files restored")
	assert.FileExists(t, doc, "document back in the source")

	out, err = c.run(t, "-c", cfgPath, "revert", planID)
	require.NoError(t, err, "reverting twice")
	assert.Contains(t, out, "0 restored, 0 failed", "nothing left to undo")

	_, err = c.run(t, "-c", cfgPath, "revert", "no-such-plan")
	assert.Error(t, err, "unknown plan")
}

func TestFlagsWithoutConfig(t *testing.T) {
	c := newCLI(t)
	c.write(t, "src/notes.txt", "hello")
	missing := filepath.Join(c.dir, "absent.yaml")

	_, err := c.run(t, "-c", missing, "preview")
	require.Error(t, err, "no config and no flags")
	assert.Contains(t, err.Error(), "loading config", "error names the config")

	out, err := c.run(t, "-c", missing,
		"--source", filepath.Join(c.dir, "src"),
		"--target", filepath.Join(c.dir, "dst"),
		"preview")
	require.NoError(t, err, "flags are enough")
	assert.Contains(t, out, "notes.txt", "entry listed")
}

func TestRecommendWithoutFindings(t *testing.T) {
	c := newCLI(t)
	c.write(t, "src/notes.txt", "hello")

	out, err := c.run(t, "-c", filepath.Join(c.dir, "absent.yaml"),
		"--source", filepath.Join(c.dir, "src"),
		"--target", filepath.Join(c.dir, "dst"),
		"recommend")
	require.NoError(t, err, "recommend")
	assert.Contains(t, out, "nothing to recommend", "clean folder")
}

func TestVersionCommand(t *testing.T) {
	c := newCLI(t)

	out, err := c.run(t, "-c", filepath.Join(c.dir, "absent.yaml"), "version")
	require.NoError(t, err, "version needs no config")
	assert.Contains(t, out, "🚀 shelf ", "header")
	assert.Contains(t, out, runtime.Version(), "go version row")

	out, err = c.run(t, "version", "--json")
	require.NoError(t, err, "json version")
	var v versionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &v), "output is JSON")
	assert.Equal(t, runtime.Version(), v.Go, "go version")
	assert.NotEmpty(t, v.Version, "version always set")
}
