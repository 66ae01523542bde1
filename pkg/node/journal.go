package node

import (
	"context"
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Journal is a best-effort node-local log of handled operations, kept in a
// sqlite file next to the node. It never fails a request: every method is
// nil-safe and swallows its own errors.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) the journal at path. Any failure logs and
// returns nil, which disables journaling.
func OpenJournal(path string) *Journal {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("journal mkdir failed: %v", err)
		return nil
	}
	dsn := "file:" + path + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Printf("journal open failed: %v", err)
		return nil
	}
	db.SetMaxOpenConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Printf("journal ping failed: %v", err)
		_ = db.Close()
		return nil
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS ops(op TEXT, target TEXT, outcome TEXT, ts INTEGER); CREATE INDEX IF NOT EXISTS idx_ops_op ON ops(op);`); err != nil {
		log.Printf("journal init schema failed: %v", err)
		_ = db.Close()
		return nil
	}
	return &Journal{db: db}
}

// Record appends one operation outcome.
func (j *Journal) Record(op, target, outcome string) {
	if j == nil || j.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _ = j.db.ExecContext(ctx, `INSERT INTO ops(op, target, outcome, ts) VALUES(?,?,?,?)`, op, target, outcome, time.Now().Unix())
}

// JournalEntry is one recorded operation.
type JournalEntry struct {
	Op      string
	Target  string
	Outcome string
	TS      int64
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) ([]JournalEntry, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rows, err := j.db.QueryContext(ctx, `SELECT op, target, outcome, ts FROM ops ORDER BY ts DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.Op, &e.Target, &e.Outcome, &e.TS); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *Journal) Close() {
	if j == nil || j.db == nil {
		return
	}
	_ = j.db.Close()
}
