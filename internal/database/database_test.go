package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/imstrack/imstrack/internal/cause"
	"github.com/imstrack/imstrack/internal/database/models"
	"github.com/imstrack/imstrack/internal/tracker"
	"github.com/imstrack/imstrack/internal/usage"
)

func TestOpenAndMigrate(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	// Verify database file was created.
	dbPath := filepath.Join(dir, "imstrack.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file was not created")
	}

	// Verify WAL mode is active.
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("querying journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want wal", journalMode)
	}

	// Verify all tables exist.
	tables := []string{"schema_migrations", "cdrs", "call_usage"}
	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Errorf("checking table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s not found", table)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	// Open twice to verify migrations don't fail on re-run.
	db1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open() error: %v", err)
	}
	db1.Close()

	db2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	db2.Close()
}

func TestCDRRepository(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := NewCDRRepository(db)

	start := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	connect := start.Add(5 * time.Second)
	end := start.Add(65 * time.Second)

	cdr := &models.CDR{
		CallID:      "call-1",
		Address:     "1001",
		Direction:   "outgoing",
		Video:       true,
		StartTime:   start,
		ConnectTime: &connect,
		EndTime:     end,
		Duration:    60,
		Cause:       "normal",
		UsageBytes:  4096,
	}
	if err := repo.Create(ctx, cdr); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if cdr.ID == 0 {
		t.Fatal("Create() did not set ID")
	}

	got, err := repo.GetByID(ctx, cdr.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got == nil {
		t.Fatal("GetByID() returned nil")
	}
	if got.Address != "1001" || got.Direction != "outgoing" || !got.Video {
		t.Errorf("GetByID() = %+v", got)
	}
	if got.ConnectTime == nil || !got.ConnectTime.Equal(connect) {
		t.Errorf("connect_time = %v, want %v", got.ConnectTime, connect)
	}

	got, err = repo.GetByCallID(ctx, "call-1")
	if err != nil {
		t.Fatalf("GetByCallID() error: %v", err)
	}
	if got == nil || got.ID != cdr.ID {
		t.Errorf("GetByCallID() = %+v", got)
	}

	// Missing records come back nil without an error.
	got, err = repo.GetByCallID(ctx, "nope")
	if err != nil {
		t.Fatalf("GetByCallID(missing) error: %v", err)
	}
	if got != nil {
		t.Errorf("GetByCallID(missing) = %+v, want nil", got)
	}

	// A never-connected incoming call has no connect_time.
	missed := &models.CDR{
		CallID:    "call-2",
		Address:   "2002",
		Direction: "incoming",
		StartTime: start.Add(time.Hour),
		EndTime:   start.Add(time.Hour + 30*time.Second),
		Cause:     "incoming-missed",
	}
	if err := repo.Create(ctx, missed); err != nil {
		t.Fatalf("Create(missed) error: %v", err)
	}
	got, err = repo.GetByID(ctx, missed.ID)
	if err != nil {
		t.Fatalf("GetByID(missed) error: %v", err)
	}
	if got.ConnectTime != nil {
		t.Errorf("missed call connect_time = %v, want nil", got.ConnectTime)
	}
}

func TestCDRList(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := NewCDRRepository(db)

	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	seed := []models.CDR{
		{CallID: "a", Address: "1001", Direction: "outgoing", Cause: "normal", StartTime: base, EndTime: base.Add(time.Minute)},
		{CallID: "b", Address: "1002", Direction: "incoming", Cause: "incoming-missed", StartTime: base.Add(time.Hour), EndTime: base.Add(61 * time.Minute)},
		{CallID: "c", Address: "2001", Direction: "outgoing", Cause: "busy", StartTime: base.Add(2 * time.Hour), EndTime: base.Add(121 * time.Minute)},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("seeding cdr %d: %v", i, err)
		}
	}

	// Direction filter.
	cdrs, total, err := repo.List(ctx, CDRListFilter{Direction: "outgoing", Limit: 10})
	if err != nil {
		t.Fatalf("List(outgoing) error: %v", err)
	}
	if total != 2 || len(cdrs) != 2 {
		t.Errorf("List(outgoing) total=%d len=%d, want 2/2", total, len(cdrs))
	}

	// Search matches the address.
	cdrs, total, err = repo.List(ctx, CDRListFilter{Search: "100", Limit: 10})
	if err != nil {
		t.Fatalf("List(search) error: %v", err)
	}
	if total != 2 {
		t.Errorf("List(search) total = %d, want 2", total)
	}

	// Cause filter.
	_, total, err = repo.List(ctx, CDRListFilter{Cause: "busy", Limit: 10})
	if err != nil {
		t.Fatalf("List(cause) error: %v", err)
	}
	if total != 1 {
		t.Errorf("List(cause) total = %d, want 1", total)
	}

	// Pagination, newest first.
	cdrs, total, err = repo.List(ctx, CDRListFilter{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("List(page) error: %v", err)
	}
	if total != 3 || len(cdrs) != 2 {
		t.Fatalf("List(page) total=%d len=%d, want 3/2", total, len(cdrs))
	}
	if cdrs[0].CallID != "c" || cdrs[1].CallID != "b" {
		t.Errorf("List(page) order = %s, %s; want c, b", cdrs[0].CallID, cdrs[1].CallID)
	}

	recent, err := repo.ListRecent(ctx, 1)
	if err != nil {
		t.Fatalf("ListRecent() error: %v", err)
	}
	if len(recent) != 1 || recent[0].CallID != "c" {
		t.Errorf("ListRecent() = %+v, want call c", recent)
	}
}

func TestCallUsageRepository(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := NewCallUsageRepository(db)

	samples := []models.CallUsage{
		{UID: 1000, RxBytes: 100, TxBytes: 100},
		{UID: 1000, RxBytes: 50, TxBytes: 50},
		{UID: 1001, RxBytes: 10, TxBytes: 10},
	}
	for i := range samples {
		if err := repo.Record(ctx, &samples[i]); err != nil {
			t.Fatalf("Record(%d) error: %v", i, err)
		}
	}

	totals, err := repo.TotalsByUID(ctx)
	if err != nil {
		t.Fatalf("TotalsByUID() error: %v", err)
	}
	if got := totals[1000]; got.RxBytes != 150 || got.TxBytes != 150 {
		t.Errorf("totals[1000] = %+v, want 150/150", got)
	}
	if got := totals[1001]; got.RxBytes != 10 || got.TxBytes != 10 {
		t.Errorf("totals[1001] = %+v, want 10/10", got)
	}
}

func TestCDRSink(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	repo := NewCDRRepository(db)
	sink := NewCDRSink(repo)

	start := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	err = sink.RecordCDR(tracker.CDR{
		ID:          "call-sink",
		Address:     "1001",
		Incoming:    true,
		StartTime:   start,
		ConnectTime: start.Add(2 * time.Second),
		EndTime:     start.Add(62 * time.Second),
		Cause:       cause.Normal,
		UsageBytes:  2048,
	})
	if err != nil {
		t.Fatalf("RecordCDR() error: %v", err)
	}

	got, err := repo.GetByCallID(context.Background(), "call-sink")
	if err != nil {
		t.Fatalf("GetByCallID() error: %v", err)
	}
	if got == nil {
		t.Fatal("sink did not persist the record")
	}
	if got.Direction != "incoming" || got.Cause != "normal" {
		t.Errorf("record = %+v", got)
	}
	if got.Duration != 60 {
		t.Errorf("duration = %d, want 60", got.Duration)
	}
	if got.UsageBytes != 2048 {
		t.Errorf("usage = %d, want 2048", got.UsageBytes)
	}
}

type fakeUsageSource struct {
	perUID map[int]usage.Snapshot
}

func (f *fakeUsageSource) UsagePerUID() map[int]usage.Snapshot {
	out := make(map[int]usage.Snapshot, len(f.perUID))
	for uid, s := range f.perUID {
		out[uid] = s
	}
	return out
}

func TestUsageFlusherWritesDeltas(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	repo := NewCallUsageRepository(db)
	src := &fakeUsageSource{perUID: map[int]usage.Snapshot{
		1001: {RxBytes: 500, TxBytes: 500},
	}}
	f := NewUsageFlusher(repo, src, nil)
	ctx := context.Background()

	if err := f.Flush(ctx); err != nil {
		t.Fatalf("first Flush: %v", err)
	}

	// Totals unchanged: the second flush must not write again.
	if err := f.Flush(ctx); err != nil {
		t.Fatalf("second Flush: %v", err)
	}

	// More usage on the same UID plus a new one.
	src.perUID[1001] = usage.Snapshot{RxBytes: 800, TxBytes: 800}
	src.perUID[usage.UnknownUID] = usage.Snapshot{RxBytes: 50, TxBytes: 50}
	if err := f.Flush(ctx); err != nil {
		t.Fatalf("third Flush: %v", err)
	}

	totals, err := repo.TotalsByUID(ctx)
	if err != nil {
		t.Fatalf("TotalsByUID: %v", err)
	}
	if got := totals[1001]; got.RxBytes != 800 || got.TxBytes != 800 {
		t.Errorf("uid 1001 totals = %+v, want 800/800", got)
	}
	if got := totals[usage.UnknownUID]; got.RxBytes != 50 || got.TxBytes != 50 {
		t.Errorf("unknown uid totals = %+v, want 50/50", got)
	}

	var samples int
	if err := db.QueryRow("SELECT COUNT(*) FROM call_usage").Scan(&samples); err != nil {
		t.Fatalf("counting samples: %v", err)
	}
	if samples != 3 {
		t.Errorf("samples = %d, want 3", samples)
	}
}

type failingUsageRepo struct {
	fail bool
	recs []models.CallUsage
}

func (r *failingUsageRepo) Record(ctx context.Context, u *models.CallUsage) error {
	if r.fail {
		return errors.New("disk full")
	}
	r.recs = append(r.recs, *u)
	return nil
}

func (r *failingUsageRepo) TotalsByUID(ctx context.Context) (map[int]models.CallUsage, error) {
	return nil, nil
}

func TestUsageFlusherRetriesAfterFailure(t *testing.T) {
	repo := &failingUsageRepo{fail: true}
	src := &fakeUsageSource{perUID: map[int]usage.Snapshot{
		1001: {RxBytes: 100, TxBytes: 100},
	}}
	f := NewUsageFlusher(repo, src, nil)
	ctx := context.Background()

	if err := f.Flush(ctx); err == nil {
		t.Fatal("Flush succeeded with a failing repository")
	}

	// The watermark did not advance, so the delta is written once the
	// repository recovers.
	repo.fail = false
	if err := f.Flush(ctx); err != nil {
		t.Fatalf("Flush after recovery: %v", err)
	}
	if len(repo.recs) != 1 {
		t.Fatalf("samples = %d, want 1", len(repo.recs))
	}
	if got := repo.recs[0]; got.UID != 1001 || got.RxBytes != 100 || got.TxBytes != 100 {
		t.Errorf("sample = %+v", got)
	}
}
