package db

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/diodescout/internal/ingest"
	"github.com/banshee-data/diodescout/internal/measurement"
	"github.com/banshee-data/diodescout/internal/timeutil"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func series(pairs ...[2]float64) measurement.Series {
	pts := make([]measurement.Point, len(pairs))
	for i, p := range pairs {
		pts[i] = measurement.Point{Voltage: p[0], Current: p[1]}
	}
	return measurement.NewSeries(pts...)
}

func TestNewDB_Migrates(t *testing.T) {
	db := newTestDB(t)
	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// a second open finds nothing to do
	again, err := NewDB(db.Path())
	require.NoError(t, err)
	again.Close()
}

func TestMigrateDown(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.MigrateDown())

	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='points'`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestRecordAndReadSeries(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.RecordSession(ctx, Session{ID: "s1", StartedAt: started, Source: "/dev/ttyACM0", PortOptions: "9600 8N1"}))
	require.NoError(t, db.RecordSession(ctx, Session{ID: "s1", StartedAt: started}))

	a := SeriesRecord{ID: "a", SessionID: "s1", Seq: 1, CompletedAt: started.Add(time.Minute), Series: series([2]float64{0, 0}, [2]float64{0.7, 3.5})}
	b := SeriesRecord{ID: "b", SessionID: "s1", Seq: 2, CompletedAt: started.Add(2 * time.Minute), Series: series([2]float64{0.1, 0.2})}
	require.NoError(t, db.RecordSeries(ctx, b))
	require.NoError(t, db.RecordSeries(ctx, a))

	got, err := db.SeriesForSession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, a.CompletedAt, got[0].CompletedAt)
	if diff := cmp.Diff(a.Series.Points(), got[0].Series.Points()); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(b.Series.Points(), got[1].Series.Points()); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}

	s, err := db.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, s.SeriesCount)
	assert.Equal(t, "9600 8N1", s.PortOptions)
	assert.Equal(t, started, s.StartedAt)
}

func TestRecordSeries_DuplicateSeqRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.RecordSession(ctx, Session{ID: "s1", StartedAt: time.Now()}))
	require.NoError(t, db.RecordSeries(ctx, SeriesRecord{ID: "a", SessionID: "s1", Seq: 1, Series: series([2]float64{1, 1})}))

	err := db.RecordSeries(ctx, SeriesRecord{ID: "b", SessionID: "s1", Seq: 1, Series: series([2]float64{2, 2})})
	require.Error(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM points WHERE series_id = 'b'`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestRecordSeries_UnknownSessionRejected(t *testing.T) {
	db := newTestDB(t)
	err := db.RecordSeries(context.Background(), SeriesRecord{ID: "a", SessionID: "missing", Seq: 1, Series: series([2]float64{1, 1})})
	assert.Error(t, err)
}

func TestSessionsAndLatest(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.LatestSession(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.RecordSession(ctx, Session{ID: "old", StartedAt: t0}))
	require.NoError(t, db.RecordSession(ctx, Session{ID: "new", StartedAt: t0.Add(time.Hour)}))
	require.NoError(t, db.RecordSession(ctx, Session{ID: "empty", StartedAt: t0.Add(2 * time.Hour)}))
	require.NoError(t, db.RecordSeries(ctx, SeriesRecord{ID: "x", SessionID: "old", Seq: 1, Series: series([2]float64{1, 1})}))
	require.NoError(t, db.RecordSeries(ctx, SeriesRecord{ID: "y", SessionID: "new", Seq: 1, Series: series([2]float64{1, 1})}))

	all, err := db.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"empty", "new", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})

	latest, err := db.LatestSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)

	_, err = db.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchiver_WithIngestSession(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	clock := timeutil.NewMockClock(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	sess := ingest.NewSession(measurement.NewStore(), clock)

	arch := NewArchiver(db, "capture.txt", "")
	require.NoError(t, arch.Begin(ctx, sess))
	sess.OnComplete(arch)

	sess.Feed(ctx, []byte("*\n0.1 0.2\n0.3 0.4\n#\n*\n0.5 0.6\n#\n"))
	sess.Store().RemoveAll()

	got, err := db.SeriesForSession(ctx, sess.ID.String())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Series.Len())

	s, err := db.GetSession(ctx, sess.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "capture.txt", s.Source)
	assert.Equal(t, sess.StartedAt, s.StartedAt)

	store := measurement.NewStore()
	n, err := db.LoadInto(ctx, sess.ID.String(), store)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0.6, store.MaxCurrent())
}

func TestArchiver_RecordsSessionLazily(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	arch := NewArchiver(db, "dev", "")

	c := ingest.Completed{SessionID: uuid.New(), SeriesID: uuid.New(), Seq: 1, CompletedAt: time.Now(), Series: series([2]float64{1, 2})}
	require.NoError(t, arch.HandleCompleted(ctx, c))

	_, err := db.GetSession(ctx, c.SessionID.String())
	assert.NoError(t, err)
}

func TestAttachAdminRoutes_Backup(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.RecordSession(context.Background(), Session{ID: "s1", StartedAt: time.Now()}))

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("SQLite format 3\x00")))
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dsn("a.db"))
	assert.Contains(t, dsn("file:a.db?mode=rwc"), "mode=rwc&_pragma=")
}
