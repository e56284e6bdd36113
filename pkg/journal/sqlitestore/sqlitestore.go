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

// Package sqlitestore is a journal.Store backed by a SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/shelf/pkg/journal"
	"github.com/walteh/shelf/pkg/plan"
	"gitlab.com/tozd/go/errors"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version, tracked in user_version.
const CurrentSchemaVersion = 1

// DefaultFileName is the database file name inside the data directory.
const DefaultFileName = "journal.db"

// 🗃️ Store keeps plans and records in SQLite
type Store struct {
	db   *sql.DB
	keep int
	now  func() time.Time
}

var _ journal.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithKeepPlans bounds history; n <= 0 keeps everything.
func WithKeepPlans(n int) Option {
	return func(s *Store) { s.keep = n }
}

// WithClock sets the time stamped on appended records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// 📂 Open creates or migrates the database at path
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Errorf("creating journal directory: %w", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Errorf("opening journal database: %w", err)
	}
	// one writer keeps sequence assignment serial
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, keep: journal.DefaultKeepPlans, now: time.Now}
	for _, o := range opts {
		o(s)
	}

	zerolog.Ctx(ctx).Debug().Str("path", path).Int("schema", CurrentSchemaVersion).Msg("journal database ready")
	return s, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	version, err := UserVersion(ctx, db)
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS plans (
		  id          TEXT PRIMARY KEY,
		  created_at  INTEGER NOT NULL,
		  status      TEXT NOT NULL,
		  body        TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_plans_created
		ON plans(created_at DESC, id DESC);

		CREATE TABLE IF NOT EXISTS records (
		  plan_id   TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		  seq       INTEGER NOT NULL,
		  group_id  TEXT NOT NULL,
		  from_path TEXT NOT NULL,
		  to_path   TEXT NOT NULL,
		  kind      TEXT NOT NULL,
		  at        INTEGER NOT NULL,
		  PRIMARY KEY (plan_id, seq)
		);
		`
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return errors.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(ctx, db, 1); err != nil {
			return err
		}
	}

	return nil
}

// UserVersion returns the schema version recorded in the database.
func UserVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version;").Scan(&version); err != nil {
		return 0, errors.Errorf("reading user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(ctx context.Context, db *sql.DB, version int) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return errors.Errorf("setting user_version: %w", err)
	}
	return nil
}

// DB exposes the handle for inspection.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) SavePlan(ctx context.Context, p *plan.Plan) error {
	body, err := json.Marshal(p)
	if err != nil {
		return errors.Errorf("encoding plan: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans WHERE id = ?`, p.ID).Scan(&exists); err != nil {
		return errors.Errorf("checking plan: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plans (id, created_at, status, body) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, body = excluded.body
	`, p.ID, p.CreatedAt.UnixNano(), string(p.Status), string(body))
	if err != nil {
		return errors.Errorf("saving plan %s: %w", p.ID, err)
	}

	if exists == 0 && s.keep > 0 {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM plans ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?`, s.keep)
		if err != nil {
			return errors.Errorf("listing evicted plans: %w", err)
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return errors.Errorf("scanning plan id: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE plan_id = ?`, id); err != nil {
				return errors.Errorf("evicting records of %s: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id); err != nil {
				return errors.Errorf("evicting plan %s: %w", id, err)
			}
		}
		if len(ids) > 0 {
			zerolog.Ctx(ctx).Debug().Strs("plans", ids).Msg("evicted old plans")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Errorf("committing plan: %w", err)
	}
	return nil
}

func (s *Store) Plan(ctx context.Context, id string) (*plan.Plan, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM plans WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Errorf("%w: %s", journal.ErrPlanNotFound, id)
	}
	if err != nil {
		return nil, errors.Errorf("loading plan %s: %w", id, err)
	}
	return decodePlan(body)
}

func (s *Store) Plans(ctx context.Context) ([]*plan.Plan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM plans ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, errors.Errorf("listing plans: %w", err)
	}
	defer rows.Close()

	var out []*plan.Plan
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, errors.Errorf("scanning plan: %w", err)
		}
		p, err := decodePlan(body)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("listing plans: %w", err)
	}
	return out, nil
}

func (s *Store) Append(ctx context.Context, r journal.Record) (journal.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return journal.Record{}, errors.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans WHERE id = ?`, r.PlanID).Scan(&exists); err != nil {
		return journal.Record{}, errors.Errorf("checking plan: %w", err)
	}
	if exists == 0 {
		return journal.Record{}, errors.Errorf("appending record: %w: %s", journal.ErrPlanNotFound, r.PlanID)
	}

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM records WHERE plan_id = ?`, r.PlanID).Scan(&r.Seq); err != nil {
		return journal.Record{}, errors.Errorf("next sequence: %w", err)
	}
	if r.Time.IsZero() {
		r.Time = s.now()
	}
	r.Time = time.Unix(0, r.Time.UnixNano()).UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (plan_id, seq, group_id, from_path, to_path, kind, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.PlanID, r.Seq, r.GroupID, r.From, r.To, string(r.Kind), r.Time.UnixNano())
	if err != nil {
		return journal.Record{}, errors.Errorf("inserting record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return journal.Record{}, errors.Errorf("committing record: %w", err)
	}
	return r, nil
}

func (s *Store) Records(ctx context.Context, planID string) ([]journal.Record, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans WHERE id = ?`, planID).Scan(&exists); err != nil {
		return nil, errors.Errorf("checking plan: %w", err)
	}
	if exists == 0 {
		return nil, errors.Errorf("%w: %s", journal.ErrPlanNotFound, planID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT plan_id, seq, group_id, from_path, to_path, kind, at
		FROM records WHERE plan_id = ? ORDER BY seq
	`, planID)
	if err != nil {
		return nil, errors.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var out []journal.Record
	for rows.Next() {
		var (
			r    journal.Record
			kind string
			at   int64
		)
		if err := rows.Scan(&r.PlanID, &r.Seq, &r.GroupID, &r.From, &r.To, &kind, &at); err != nil {
			return nil, errors.Errorf("scanning record: %w", err)
		}
		r.Kind = journal.Kind(kind)
		r.Time = time.Unix(0, at).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("listing records: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func decodePlan(body string) (*plan.Plan, error) {
	var p plan.Plan
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, errors.Errorf("decoding plan: %w", err)
	}
	return &p, nil
}
