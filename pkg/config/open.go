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
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/shelf/pkg/engine"
	"github.com/walteh/shelf/pkg/journal"
	"github.com/walteh/shelf/pkg/journal/sqlitestore"
	"github.com/walteh/shelf/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// 🧭 Engine converts a validated config into the engine's value config
func (cfg *Config) Engine() (engine.Config, error) {
	b, err := cfg.bucketConfig()
	if err != nil {
		return engine.Config{}, errors.Errorf("bucket: %w", err)
	}
	r, err := cfg.recommendConfig()
	if err != nil {
		return engine.Config{}, errors.Errorf("recommend: %w", err)
	}
	assoc := cfg.associationConfig()
	if err := assoc.Validate(); err != nil {
		return engine.Config{}, errors.Errorf("association: %w", err)
	}

	out := engine.DefaultConfig(cfg.Source, cfg.Target)
	out.Catalog = cfg.catalogOptions()
	out.Association = assoc
	out.Rules = cfg.Rules
	out.Bucket = b
	out.Recommend = r
	if cfg.MaxSuffix > 0 {
		out.MaxSuffix = cfg.MaxSuffix
	}
	out.AllowCopyFallback = cfg.AllowCopyFallback
	out.AutoApply = cfg.Monitor.AutoApply
	return out, nil
}

// 📜 OpenJournal opens the configured plan history backend
func (cfg *Config) OpenJournal(ctx context.Context) (journal.Store, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("backend", cfg.Journal.Backend).Str("path", cfg.Journal.Path).Msg("opening journal")

	switch cfg.Journal.Backend {
	case BackendMemory:
		return journal.NewMemoryStore(journal.WithKeepPlans(cfg.Journal.KeepPlans)), nil
	case BackendFile:
		s, err := journal.OpenFile(ctx, cfg.Journal.Path, status.New(logger), journal.WithKeepPlans(cfg.Journal.KeepPlans))
		if err != nil {
			return nil, errors.Errorf("opening journal file: %w", err)
		}
		return s, nil
	case BackendSQLite, "":
		s, err := sqlitestore.Open(ctx, cfg.Journal.Path, sqlitestore.WithKeepPlans(cfg.Journal.KeepPlans))
		if err != nil {
			return nil, errors.Errorf("opening journal database: %w", err)
		}
		return s, nil
	}
	return nil, errors.Errorf("unknown journal backend %q", cfg.Journal.Backend)
}
