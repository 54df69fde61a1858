package own

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupRecorderDB creates an in-memory SQLite database with the required tables.
func setupRecorderDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE bus_traffic (
			gateway TEXT NOT NULL,
			who TEXT NOT NULL,
			where_addr TEXT NOT NULL,
			frame_kind TEXT NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 1,
			classified INTEGER NOT NULL DEFAULT 0,
			first_seen INTEGER NOT NULL,
			last_seen INTEGER NOT NULL,
			PRIMARY KEY (gateway, who, where_addr)
		) STRICT;

		CREATE TABLE discovery_sessions (
			id TEXT PRIMARY KEY,
			gateway TEXT NOT NULL,
			state TEXT NOT NULL,
			devices_found INTEGER NOT NULL DEFAULT 0,
			devices_written INTEGER NOT NULL DEFAULT 0,
			probes_sent INTEGER NOT NULL DEFAULT 0,
			probes_timed_out INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestBusRecorder_StartStop(t *testing.T) {
	db := setupRecorderDB(t)
	rec := NewBusRecorder(db)

	if err := rec.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	// Double-start is idempotent.
	if err := rec.Start(); err != nil {
		t.Fatalf("second Start() error: %v", err)
	}

	rec.Stop()
	rec.Stop()
}

func TestBusRecorder_RecordFrame(t *testing.T) {
	db := setupRecorderDB(t)
	rec := NewBusRecorder(db)
	if err := rec.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer rec.Stop()

	gw := "00:03:50:01:aa:bb"
	cmd, _ := DecodeFrame("*1*1*15##")
	dim, _ := DecodeFrame("*#1*15*2*50##")
	ack, _ := DecodeFrame(FrameACK)

	rec.RecordFrame(gw, cmd)
	rec.RecordFrame(gw, cmd) // Same address, bumps the count.
	rec.RecordFrame(gw, dim)
	rec.RecordFrame(gw, ack) // No address, must be ignored.

	entries, err := rec.Traffic(context.Background(), gw, 0)
	if err != nil {
		t.Fatalf("Traffic() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Traffic() returned %d entries, want 1", len(entries))
	}

	e := entries[0]
	if e.Who != "1" || e.Where != "15" {
		t.Errorf("entry address = who %q where %q, want 1/15", e.Who, e.Where)
	}
	if e.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", e.MessageCount)
	}
	if e.FrameKind != "dimension" {
		t.Errorf("FrameKind = %q, want dimension (latest wins)", e.FrameKind)
	}
	if e.Classified {
		t.Error("entry classified before MarkClassified")
	}
}

func TestBusRecorder_MarkClassified(t *testing.T) {
	db := setupRecorderDB(t)
	rec := NewBusRecorder(db)
	if err := rec.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer rec.Stop()

	gw := "00:03:50:01:aa:bb"
	cmd, _ := DecodeFrame("*2*0*41##")
	rec.RecordFrame(gw, cmd)

	if err := rec.MarkClassified(context.Background(), gw, "2", "41"); err != nil {
		t.Fatalf("MarkClassified() error: %v", err)
	}

	entries, err := rec.Traffic(context.Background(), gw, 0)
	if err != nil {
		t.Fatalf("Traffic() error: %v", err)
	}
	if len(entries) != 1 || !entries[0].Classified {
		t.Errorf("entry not marked classified: %+v", entries)
	}
}

func TestBusRecorder_RecordFrameAfterStop(t *testing.T) {
	db := setupRecorderDB(t)
	rec := NewBusRecorder(db)
	if err := rec.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	rec.Stop()

	cmd, _ := DecodeFrame("*1*1*15##")
	rec.RecordFrame("gw", cmd) // Must not panic, just drop.

	count, err := rec.TrafficCount(context.Background())
	if err != nil {
		t.Fatalf("TrafficCount() error: %v", err)
	}
	if count != 0 {
		t.Errorf("TrafficCount() = %d after Stop, want 0", count)
	}
}

func TestBusRecorder_Sessions(t *testing.T) {
	db := setupRecorderDB(t)
	rec := NewBusRecorder(db)
	if err := rec.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer rec.Stop()

	ctx := context.Background()
	gw := "00:03:50:01:aa:bb"
	base := time.Now().Add(-time.Hour).Truncate(time.Second)

	first := SessionRecord{
		ID: "s-1", Gateway: gw, State: "completed",
		DevicesFound: 4, DevicesWritten: 3, ProbesSent: 8, ProbesTimedOut: 2,
		StartedAt: base, FinishedAt: base.Add(40 * time.Second),
	}
	second := SessionRecord{
		ID: "s-2", Gateway: gw, State: "failed",
		DevicesFound: 1, ProbesSent: 3,
		StartedAt: base.Add(10 * time.Minute), FinishedAt: base.Add(11 * time.Minute),
	}

	if err := rec.RecordSession(ctx, first); err != nil {
		t.Fatalf("RecordSession() error: %v", err)
	}
	if err := rec.RecordSession(ctx, second); err != nil {
		t.Fatalf("RecordSession() error: %v", err)
	}

	records, err := rec.Sessions(ctx, gw, 0)
	if err != nil {
		t.Fatalf("Sessions() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Sessions() returned %d records, want 2", len(records))
	}
	// Newest first.
	if records[0].ID != "s-2" || records[1].ID != "s-1" {
		t.Errorf("Sessions() order = %s, %s; want s-2, s-1", records[0].ID, records[1].ID)
	}
	if records[1].DevicesFound != 4 || records[1].ProbesTimedOut != 2 {
		t.Errorf("session s-1 counters wrong: %+v", records[1])
	}
	if !records[1].StartedAt.Equal(first.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", records[1].StartedAt, first.StartedAt)
	}

	// Filtering by another gateway returns nothing.
	other, err := rec.Sessions(ctx, "no-such-gateway", 0)
	if err != nil {
		t.Fatalf("Sessions() error: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Sessions(other) returned %d records, want 0", len(other))
	}
}
