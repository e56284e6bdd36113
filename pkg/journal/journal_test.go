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

package journal_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/shelf/pkg/journal"
	"github.com/walteh/shelf/pkg/status"
	"github.com/walteh/shelf/pkg/testutils"
	"gitlab.com/tozd/go/errors"
)

func TestMemoryStore(t *testing.T) {
	testutils.RunStoreSuite(t, func(t *testing.T, keep int) journal.Store {
		return journal.NewMemoryStore(journal.WithKeepPlans(keep))
	})
}

func TestFileStore(t *testing.T) {
	testutils.RunStoreSuite(t, func(t *testing.T, keep int) journal.Store {
		logger := zerolog.New(zerolog.TestWriter{T: t}).With().Timestamp().Logger()
		path := filepath.Join(t.TempDir(), journal.DefaultFileName)
		s, err := journal.OpenFile(logger.WithContext(context.Background()), path, status.New(&logger), journal.WithKeepPlans(keep))
		require.NoError(t, err, "opening file store")
		return s
	})
}

func TestFileStoreReopen(t *testing.T) {
	ctx := testutils.Context(t)
	logger := zerolog.Ctx(ctx)
	path := filepath.Join(t.TempDir(), "data", journal.DefaultFileName)
	base := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

	s, err := journal.OpenFile(ctx, path, status.New(logger))
	require.NoError(t, err, "opening new store")
	require.NoError(t, s.SavePlan(ctx, testutils.SamplePlan("p1", base)), "saving plan")
	_, err = s.Append(ctx, journal.Record{PlanID: "p1", GroupID: "g0001", From: "/src/a", To: "/dst/a", Kind: journal.KindMove, Time: base})
	require.NoError(t, err, "appending")
	require.NoError(t, s.Close(), "closing")

	assert.FileExists(t, path, "journal written")
	assert.NoFileExists(t, path+".tmp", "temp file renamed away")

	again, err := journal.OpenFile(ctx, path, status.New(logger))
	require.NoError(t, err, "reopening store")
	recs, err := again.Records(ctx, "p1")
	require.NoError(t, err, "listing records")
	require.Len(t, recs, 1, "record persisted")
	assert.Equal(t, "/dst/a", recs[0].To, "record content")
}

func TestFileStoreRejectsUnknownSchema(t *testing.T) {
	ctx := testutils.Context(t)
	path := filepath.Join(t.TempDir(), journal.DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"schema_version":"0.1"}`), 0644), "writing old journal")

	_, err := journal.OpenFile(ctx, path, status.New(zerolog.Ctx(ctx)))
	require.Error(t, err, "old schema rejected")
	assert.Contains(t, err.Error(), "schema version", "error names the problem")
}

type failingIO struct {
	journal.FileIO
	fail bool
}

func (f *failingIO) WriteFileAtomic(ctx context.Context, path string, content []byte) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.FileIO.WriteFileAtomic(ctx, path, content)
}

func TestFileStoreAppendFailureIsNotKept(t *testing.T) {
	ctx := testutils.Context(t)
	fio := &failingIO{FileIO: status.New(zerolog.Ctx(ctx))}
	s, err := journal.OpenFile(ctx, filepath.Join(t.TempDir(), journal.DefaultFileName), fio)
	require.NoError(t, err, "opening store")
	require.NoError(t, s.SavePlan(ctx, testutils.SamplePlan("p1", time.Now())), "saving plan")

	fio.fail = true
	_, err = s.Append(ctx, journal.Record{PlanID: "p1", From: "/a", To: "/b", Kind: journal.KindMove})
	require.Error(t, err, "write failure surfaces")

	recs, err := s.Records(ctx, "p1")
	require.NoError(t, err, "listing records")
	assert.Empty(t, recs, "failed append is not kept in memory")
}

func TestOutstanding(t *testing.T) {
	tests := []struct {
		name    string
		records []journal.Record
		want    []int
	}{
		{
			name: "no_reverts",
			records: []journal.Record{
				{Seq: 1, From: "/s/a", To: "/t/a", Kind: journal.KindMove},
				{Seq: 2, From: "/s/b", To: "/t/b", Kind: journal.KindMove},
			},
			want: []int{1, 2},
		},
		{
			name: "one_reverted",
			records: []journal.Record{
				{Seq: 1, From: "/s/a", To: "/t/a", Kind: journal.KindMove},
				{Seq: 2, From: "/s/b", To: "/t/b", Kind: journal.KindMove},
				{Seq: 3, From: "/t/b", To: "/s/b", Kind: journal.KindRevert},
			},
			want: []int{1},
		},
		{
			name: "all_reverted",
			records: []journal.Record{
				{Seq: 1, From: "/s/a", To: "/t/a", Kind: journal.KindMove},
				{Seq: 2, From: "/t/a", To: "/s/a", Kind: journal.KindRevert},
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			for _, r := range journal.Outstanding(tt.records) {
				got = append(got, r.Seq)
			}
			assert.Equal(t, tt.want, got, "outstanding sequence numbers")
		})
	}
}

func TestHistoryLastOrganized(t *testing.T) {
	ctx := testutils.Context(t)
	s := journal.NewMemoryStore()
	base := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.SavePlan(ctx, testutils.SamplePlan("p1", base)), "saving p1")
	require.NoError(t, s.SavePlan(ctx, testutils.SamplePlan("p2", base.Add(time.Hour))), "saving p2")
	_, err := s.Append(ctx, journal.Record{PlanID: "p1", From: "/src/inbox/a.pdf", To: "/dst/Documents/a.pdf", Kind: journal.KindMove, Time: base})
	require.NoError(t, err, "append p1")
	_, err = s.Append(ctx, journal.Record{PlanID: "p2", From: "/src/inbox/b.pdf", To: "/dst/Documents/b.pdf", Kind: journal.KindMove, Time: base.Add(2 * time.Hour)})
	require.NoError(t, err, "append p2")
	_, err = s.Append(ctx, journal.Record{PlanID: "p2", From: "/dst/Documents/b.pdf", To: "/src/inbox/b.pdf", Kind: journal.KindRevert, Time: base.Add(3 * time.Hour)})
	require.NoError(t, err, "revert p2")

	h := journal.NewHistory(s)

	when, ok := h.LastOrganized(ctx, "/src/inbox")
	require.True(t, ok, "inbox was organized")
	assert.True(t, when.Equal(base), "reverted moves do not count")

	_, ok = h.LastOrganized(ctx, "/elsewhere")
	assert.False(t, ok, "unknown directory")
}
