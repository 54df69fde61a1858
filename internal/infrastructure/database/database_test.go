package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpen(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "myhome.db")

		db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("creates directory if not exists", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "data", "nested", "myhome.db")

		db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
			t.Error("database directory was not created")
		}
	})

	t.Run("single writer pool", func(t *testing.T) {
		db := openTestDB(t)
		defer db.Close() //nolint:errcheck // Test cleanup

		if got := db.Stats().MaxOpenConnections; got != 1 {
			t.Errorf("MaxOpenConnections = %d, want 1", got)
		}
	})
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose(t *testing.T) {
	db := openTestDB(t)

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// Close after teardown is a no-op, not a crash.
	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}

// TestTrafficLedgerRoundTrip drives the handle the way the bus recorder
// does: upsert a traffic row, bump its counter, read it back.
func TestTrafficLedgerRoundTrip(t *testing.T) {
	useFixtureMigrations(t)

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	const upsert = `
		INSERT INTO bus_traffic (gateway, who, where_addr, message_count, last_seen)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT (gateway, who, where_addr)
		DO UPDATE SET message_count = message_count + 1, last_seen = excluded.last_seen
	`
	gw := "00:03:50:01:aa:bb"
	for i := range 3 {
		if _, err := db.ExecContext(ctx, upsert, gw, "1", "15", int64(1000+i)); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	var count, lastSeen int
	err := db.QueryRowContext(ctx,
		"SELECT message_count, last_seen FROM bus_traffic WHERE gateway = ? AND who = ? AND where_addr = ?",
		gw, "1", "15",
	).Scan(&count, &lastSeen)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if count != 3 {
		t.Errorf("message_count = %d, want 3", count)
	}
	if lastSeen != 1002 {
		t.Errorf("last_seen = %d, want 1002", lastSeen)
	}
}

// openTestDB creates a temporary database for testing.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "myhome.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}
