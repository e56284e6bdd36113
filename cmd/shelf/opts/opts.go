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

package opts

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/walteh/shelf/pkg/config"
	"github.com/walteh/shelf/pkg/engine"
	"github.com/walteh/shelf/pkg/journal"
	"gitlab.com/tozd/go/errors"
)

// RootOpts contains shared options used by all commands
type RootOpts struct {
	ConfigFile string
	Debug      bool
	Source     string
	Target     string

	Config  *config.Config
	Journal journal.Store
	Engine  *engine.Engine
}

// 🔧 LoadConfig reads the config file and applies the --source and --target
// overrides. A missing file is fine when both roots come from flags.
func (o *RootOpts) LoadConfig(ctx context.Context) (*config.Config, error) {
	logger := zerolog.Ctx(ctx)

	cfg, err := config.Load(ctx, o.ConfigFile)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && o.Source != "" && o.Target != "":
		logger.Debug().Str("path", o.ConfigFile).Msg("no config file, using flags")
		cfg = config.Default(o.Source, o.Target)
	default:
		return nil, errors.Errorf("loading config: %w", err)
	}

	if o.Source != "" {
		if cfg.Source, err = filepath.Abs(o.Source); err != nil {
			return nil, errors.Errorf("resolving --source: %w", err)
		}
	}
	if o.Target != "" {
		if cfg.Target, err = filepath.Abs(o.Target); err != nil {
			return nil, errors.Errorf("resolving --target: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// 🏭 Open loads the config, opens the journal and builds the engine
func (o *RootOpts) Open(ctx context.Context) error {
	cfg, err := o.LoadConfig(ctx)
	if err != nil {
		return err
	}
	ecfg, err := cfg.Engine()
	if err != nil {
		return errors.Errorf("building engine config: %w", err)
	}
	store, err := cfg.OpenJournal(ctx)
	if err != nil {
		return err
	}
	eng, err := engine.New(ctx, ecfg, store)
	if err != nil {
		store.Close()
		return errors.Errorf("creating engine: %w", err)
	}

	o.Config = cfg
	o.Journal = store
	o.Engine = eng
	return nil
}

// Close releases the journal.
func (o *RootOpts) Close() error {
	if o.Journal == nil {
		return nil
	}
	err := o.Journal.Close()
	o.Journal = nil
	return err
}
