package own

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// BusRecorder passively records bus traffic per (gateway, who, where).
// Discovery sessions call it for every frame they see, building a ledger
// of addresses over time that survives restarts.
//
// The ledger feeds the traffic API and lets later sessions skip probing
// subsystems that have never produced a frame.
//
// Thread Safety: All methods are safe for concurrent use.
type BusRecorder struct {
	db     *sql.DB
	logger Logger

	// Prepared statements (created once, reused)
	trafficUpsertStmt *sql.Stmt
	stmtMu            sync.Mutex

	// Shutdown coordination
	closed bool
	mu     sync.RWMutex
}

// TrafficEntry is one row of the bus traffic ledger.
type TrafficEntry struct {
	Gateway      string    `json:"gateway"`
	Who          string    `json:"who"`
	Where        string    `json:"where"`
	FrameKind    string    `json:"frame_kind"`
	MessageCount int64     `json:"message_count"`
	Classified   bool      `json:"classified"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
}

// SessionRecord is the persisted summary of one discovery session.
type SessionRecord struct {
	ID             string
	Gateway        string
	State          string
	DevicesFound   int
	DevicesWritten int
	ProbesSent     int
	ProbesTimedOut int
	StartedAt      time.Time
	FinishedAt     time.Time
}

// NewBusRecorder creates a recorder over an opened database.
// The bus_traffic and discovery_sessions tables must exist.
func NewBusRecorder(db *sql.DB) *BusRecorder {
	return &BusRecorder{
		db: db,
	}
}

// SetLogger sets the logger for the recorder.
func (r *BusRecorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Start prepares the recorder for use.
// Must be called before RecordFrame.
func (r *BusRecorder) Start() error {
	r.stmtMu.Lock()
	defer r.stmtMu.Unlock()

	if r.trafficUpsertStmt != nil {
		return nil // Already started
	}

	stmt, err := r.db.Prepare(`
		INSERT INTO bus_traffic (gateway, who, where_addr, frame_kind, message_count, first_seen, last_seen)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(gateway, who, where_addr) DO UPDATE SET
			last_seen = excluded.last_seen,
			frame_kind = excluded.frame_kind,
			message_count = message_count + 1
	`)
	if err != nil {
		return fmt.Errorf("preparing traffic upsert statement: %w", err)
	}

	r.trafficUpsertStmt = stmt
	r.log("bus recorder started")
	return nil
}

// Stop closes the recorder and releases resources.
func (r *BusRecorder) Stop() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.stmtMu.Lock()
	defer r.stmtMu.Unlock()

	if r.trafficUpsertStmt != nil {
		r.trafficUpsertStmt.Close()
		r.trafficUpsertStmt = nil
	}

	r.log("bus recorder stopped")
}

// RecordFrame records one decoded frame against the traffic ledger.
// Called for every frame a session sees, probed or passive.
func (r *BusRecorder) RecordFrame(gateway string, f Frame) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return
	}
	r.mu.RUnlock()

	r.stmtMu.Lock()
	stmt := r.trafficUpsertStmt
	r.stmtMu.Unlock()

	if stmt == nil {
		return // Not started
	}

	// ACKs and NACKs carry no address, nothing to ledger.
	if f.Who == "" || f.Where == "" {
		return
	}

	now := time.Now().Unix()
	if _, err := stmt.Exec(gateway, f.Who, f.Where.String(), f.Kind.String(), now, now); err != nil {
		r.logError("recording frame", err)
	}
}

// MarkClassified flags a ledger entry once the classifier has produced a
// device for it.
func (r *BusRecorder) MarkClassified(ctx context.Context, gateway, who, where string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE bus_traffic SET classified = 1
		WHERE gateway = ? AND who = ? AND where_addr = ?
	`, gateway, who, where)
	return err
}

// Traffic returns the ledger for one gateway, most recently seen first.
// An empty gateway returns all entries.
func (r *BusRecorder) Traffic(ctx context.Context, gateway string, limit int) ([]TrafficEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT gateway, who, where_addr, frame_kind, message_count, classified, first_seen, last_seen
		FROM bus_traffic
	`
	args := []any{}
	if gateway != "" {
		query += ` WHERE gateway = ?`
		args = append(args, gateway)
	}
	query += ` ORDER BY last_seen DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []TrafficEntry
	for rows.Next() {
		var e TrafficEntry
		var classified int
		var firstSeen, lastSeen int64
		if err := rows.Scan(&e.Gateway, &e.Who, &e.Where, &e.FrameKind,
			&e.MessageCount, &classified, &firstSeen, &lastSeen); err != nil {
			return nil, err
		}
		e.Classified = classified != 0
		e.FirstSeen = time.Unix(firstSeen, 0)
		e.LastSeen = time.Unix(lastSeen, 0)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// RecordSession persists the summary of a finished discovery session.
func (r *BusRecorder) RecordSession(ctx context.Context, rec SessionRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO discovery_sessions
			(id, gateway, state, devices_found, devices_written, probes_sent, probes_timed_out, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Gateway, rec.State, rec.DevicesFound, rec.DevicesWritten,
		rec.ProbesSent, rec.ProbesTimedOut, rec.StartedAt.Unix(), rec.FinishedAt.Unix())
	if err != nil {
		return fmt.Errorf("recording session: %w", err)
	}
	return nil
}

// Sessions returns persisted session summaries for one gateway, newest
// first. An empty gateway returns all sessions.
func (r *BusRecorder) Sessions(ctx context.Context, gateway string, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, gateway, state, devices_found, devices_written, probes_sent, probes_timed_out, started_at, finished_at
		FROM discovery_sessions
	`
	args := []any{}
	if gateway != "" {
		query += ` WHERE gateway = ?`
		args = append(args, gateway)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var startedAt, finishedAt int64
		if err := rows.Scan(&rec.ID, &rec.Gateway, &rec.State, &rec.DevicesFound,
			&rec.DevicesWritten, &rec.ProbesSent, &rec.ProbesTimedOut, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		rec.StartedAt = time.Unix(startedAt, 0)
		rec.FinishedAt = time.Unix(finishedAt, 0)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// TrafficCount returns the number of distinct ledger entries.
func (r *BusRecorder) TrafficCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bus_traffic`).Scan(&count)
	return count, err
}

// log logs an info message if logger is set.
func (r *BusRecorder) log(msg string, keysAndValues ...any) {
	if r.logger != nil {
		r.logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error if logger is set.
func (r *BusRecorder) logError(msg string, err error) {
	if r.logger != nil {
		r.logger.Error(msg, "error", err)
	}
}
