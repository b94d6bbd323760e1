package main

import (
	"database/sql"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection. It persists exactly one
// piece of gameplay state — the room name to passcode mapping — plus
// an operational event log for the metrics writer.
type DB struct {
	conn *sql.DB
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		name TEXT PRIMARY KEY,
		passcode TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		conn_id TEXT NOT NULL DEFAULT '',
		room TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("DB migration error: %v", err)
	}
	return err
}

// LookupPasscode returns the stored passcode for a room name. The
// second return is false when the room has never been created.
func (db *DB) LookupPasscode(name string) (string, bool, error) {
	var passcode string
	err := db.conn.QueryRow("SELECT passcode FROM rooms WHERE name = ?", name).Scan(&passcode)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return passcode, true, nil
}

// SavePasscode persists a room's passcode. Callers only invoke this
// when the lookup came back absent, so the mapping is first-writer-wins
// across process restarts.
func (db *DB) SavePasscode(name, passcode string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO rooms (name, passcode) VALUES (?, ?)",
		name, passcode,
	)
	return err
}

// InsertEvents writes a batch of operational events in one transaction
func (db *DB) InsertEvents(events []MetricEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		"INSERT INTO events (type, conn_id, room, created_at) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(e.Type, e.ConnID, e.Room, e.Timestamp); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// CountEvents returns the number of logged events of a given type
func (db *DB) CountEvents(evtType string) (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM events WHERE type = ?", evtType).Scan(&n)
	return n, err
}

// MetricEvent is one operational event bound for the events table
type MetricEvent struct {
	Type      string
	ConnID    string
	Room      string
	Timestamp time.Time
}
