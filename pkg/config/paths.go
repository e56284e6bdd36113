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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/walteh/shelf/pkg/journal"
	"github.com/walteh/shelf/pkg/journal/sqlitestore"
)

// AppName names the per-user config and data directories.
const AppName = "shelf"

// DefaultFileName is the config file looked up in the config directory.
const DefaultFileName = "config.yaml"

// EnvDir overrides every per-user directory when set.
const EnvDir = "SHELF_DIR"

// ConfigDir returns $SHELF_DIR or $XDG_CONFIG_HOME/shelf.
func ConfigDir() string {
	if dir := os.Getenv(EnvDir); dir != "" {
		return dir
	}
	xdg.Reload()
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DataDir returns $SHELF_DIR or $XDG_DATA_HOME/shelf.
func DataDir() string {
	if dir := os.Getenv(EnvDir); dir != "" {
		return dir
	}
	xdg.Reload()
	return filepath.Join(xdg.DataHome, AppName)
}

// DefaultPath is the config file used when none is given.
func DefaultPath() string {
	return filepath.Join(ConfigDir(), DefaultFileName)
}

// DefaultJournalPath is where a backend keeps its data when no path is configured.
func DefaultJournalPath(backend string) string {
	switch backend {
	case BackendFile:
		return filepath.Join(DataDir(), journal.DefaultFileName)
	case BackendMemory:
		return ""
	default:
		return filepath.Join(DataDir(), sqlitestore.DefaultFileName)
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home := xdg.Home
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return path
		}
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func loadLocation(name string) (*time.Location, error) {
	if strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
