// Package database provides SQLite connectivity for the discovery
// daemon. One file holds the passive bus traffic ledger and the
// discovery session history; the bus recorder is the only writer and
// the API handlers read through it.
//
// The pool is pinned to a single connection (SQLite single-writer) and
// WAL mode keeps traffic queries from blocking a recording session.
// Schema migrations are additive-only *.up.sql files, embedded by the
// top-level migrations package and applied once at startup.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
