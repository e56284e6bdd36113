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

package journal

import (
	"context"
	"encoding/json"
	"io/fs"

	"github.com/rs/zerolog"
	"github.com/walteh/shelf/pkg/plan"
	"gitlab.com/tozd/go/errors"
)

// SchemaVersion is written into every journal file.
const SchemaVersion = "1.0.0"

// DefaultFileName is the journal file name inside the data directory.
const DefaultFileName = "journal.lock"

// 💾 FileIO is the slice of status.FileManager the file store needs
type FileIO interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFileAtomic(ctx context.Context, path string, content []byte) error
}

// journalFile is the on-disk layout.
type journalFile struct {
	SchemaVersion string              `json:"schema_version"`
	Plans         []*plan.Plan        `json:"plans"`
	Records       map[string][]Record `json:"records"`
}

// 📄 FileStore keeps the whole journal in one JSON file, rewritten atomically
// after every change
type FileStore struct {
	*MemoryStore
	path string
	io   FileIO
}

var _ Store = (*FileStore)(nil)

// 📂 OpenFile loads path if it exists and returns a store that persists to it
func OpenFile(ctx context.Context, path string, io FileIO, opts ...Option) (*FileStore, error) {
	s := &FileStore{MemoryStore: NewMemoryStore(opts...), path: path, io: io}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the journal file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", s.path).Msg("loading journal")

	content, err := s.io.ReadFile(ctx, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug().Str("path", s.path).Msg("no journal yet, starting clean")
			return nil
		}
		return errors.Errorf("reading journal: %w", err)
	}

	var f journalFile
	if err := json.Unmarshal(content, &f); err != nil {
		return errors.Errorf("parsing journal %s: %w", s.path, err)
	}
	if f.SchemaVersion != SchemaVersion {
		return errors.Errorf("journal %s has schema version %q, want %q", s.path, f.SchemaVersion, SchemaVersion)
	}

	for _, p := range f.Plans {
		s.plans[p.ID] = p
	}
	for id, recs := range f.Records {
		if _, ok := s.plans[id]; ok {
			s.records[id] = recs
		}
	}
	return nil
}

// save must be called with the lock held.
func (s *FileStore) save(ctx context.Context) error {
	f := journalFile{
		SchemaVersion: SchemaVersion,
		Plans:         s.list(),
		Records:       s.records,
	}
	content, err := json.MarshalIndent(f, "", "\t")
	if err != nil {
		return errors.Errorf("encoding journal: %w", err)
	}
	if err := s.io.WriteFileAtomic(ctx, s.path, content); err != nil {
		return errors.Errorf("writing journal: %w", err)
	}
	zerolog.Ctx(ctx).Trace().Str("path", s.path).Int("plans", len(f.Plans)).Msg("journal written")
	return nil
}

func (s *FileStore) SavePlan(ctx context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savePlan(p)
	return s.save(ctx)
}

func (s *FileStore) Append(ctx context.Context, r Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.append(r)
	if err != nil {
		return Record{}, err
	}
	if err := s.save(ctx); err != nil {
		recs := s.records[r.PlanID]
		s.records[r.PlanID] = recs[:len(recs)-1]
		return Record{}, err
	}
	return out, nil
}
