// Package audit persists a local run-history log of every Execute/Query
// invocation the daemon performs, for operator troubleshooting. Nothing
// in the pipe dispatch or deployer execution path consults it (only the
// self-update watcher in cmd/wpkgbrokerd reads it back), so a corrupt or
// unavailable database must never block a run.
package audit

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/wpkg-gp/wpkgbroker/internal/logging"
	_ "modernc.org/sqlite"
)

// Log stores run records in a local SQLite database, WAL mode for
// durability under a long-lived service process.
type Log struct {
	db *sql.DB
	mu sync.Mutex
}

// Record is one Execute/Query run's audit entry.
type Record struct {
	ID         string
	Command    string // "Execute", "ExecuteNoReboot", "ExecuteFromGPE", "Query"
	CallerSID  string
	StartedAt  time.Time
	FinishedAt time.Time
	ExitCode   int
	StatusCode int
}

// Open opens (creating if necessary) the audit database at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			caller_sid TEXT,
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			exit_code INTEGER,
			status_code INTEGER
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}

	return &Log{db: db}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Begin records the start of a run under the caller-chosen id, which a
// later Finish call passes again.
func (l *Log) Begin(id, command, callerSID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.Exec(
		`INSERT INTO runs (id, command, caller_sid, started_at) VALUES (?, ?, ?, ?)`,
		id, command, callerSID, time.Now().UTC(),
	)
	if err != nil {
		logging.Errorf("[audit] failed to record run start: %v", err)
	}
}

// Finish records the outcome of a previously Begin'd run.
func (l *Log) Finish(id string, exitCode, statusCode int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.db.Exec(
		`UPDATE runs SET finished_at = ?, exit_code = ?, status_code = ? WHERE id = ?`,
		time.Now().UTC(), exitCode, statusCode, id,
	)
	if err != nil {
		logging.Errorf("[audit] failed to record run outcome: %v", err)
	}
}

// ConsecutiveFailures reports how many of the most recent completed runs,
// starting from the newest, failed in a row. A run counts as failed when
// the deployer itself reported an error (ExitCode 1) or the broker never
// reached the deployer (StatusCode 200); still-running entries are
// skipped. This is the signal cmd/wpkgbrokerd's watchForUpdate uses to
// decide when to call the updater's CheckAndUpdate, in place of the
// heartbeat-response trigger a remote-managed deployment would have.
func (l *Log) ConsecutiveFailures(limit int) (int, error) {
	recent, err := l.Recent(limit)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, r := range recent {
		if r.FinishedAt.IsZero() {
			continue
		}
		if r.ExitCode == 1 || r.StatusCode == 200 {
			count++
			continue
		}
		break
	}
	return count, nil
}

// Recent returns the most recent n run records, newest first.
func (l *Log) Recent(n int) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(
		`SELECT id, command, caller_sid, started_at, finished_at, exit_code, status_code
		 FROM runs ORDER BY started_at DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var callerSID sql.NullString
		var finishedAt sql.NullTime
		var exitCode, statusCode sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Command, &callerSID, &r.StartedAt, &finishedAt, &exitCode, &statusCode); err != nil {
			return nil, err
		}
		r.CallerSID = callerSID.String
		r.FinishedAt = finishedAt.Time
		r.ExitCode = int(exitCode.Int64)
		r.StatusCode = int(statusCode.Int64)
		out = append(out, r)
	}
	return out, rows.Err()
}
