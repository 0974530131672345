// Package postgres implements the interface for PostgreSQL.
package postgres

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/cheesemint/sra/lib/store"
)

const schema = `CREATE TABLE IF NOT EXISTS jobs (
	id TEXT NOT NULL,
	status TEXT NOT NULL,
	event_type TEXT NOT NULL,
	wallet TEXT NOT NULL,
	wallet_type TEXT NOT NULL DEFAULT '',
	attempts INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	processed_at TIMESTAMPTZ NOT NULL
)`

// prune keeps the recently-completed set bounded; failed jobs are retained indefinitely for inspection.
const prune = `DELETE FROM jobs WHERE status = $1 AND processed_at < (
	SELECT processed_at FROM jobs WHERE status = $1 ORDER BY processed_at DESC LIMIT 1 OFFSET $2)`

type Postgres struct {
	db *sql.DB
}

// New returns a postgres client connection to the specified database in 'connection'.
func New(connection string) (*Postgres, error) {
	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB in %s: %w", connection, err)
	}

	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("cannot declare jobs table: %w", err)
	}

	return &Postgres{db: db}, nil
}

// ClosePostgres will close any database connection. Must be called at termination time.
func (p *Postgres) ClosePostgres() error {
	return p.db.Close()
}

// SaveJob inserts the record, pruning completed records beyond the bound.
func (p *Postgres) SaveJob(j store.JobRecord) error {
	if j.Status != store.StatusCompleted && j.Status != store.StatusFailed {
		return fmt.Errorf("%w: %q", store.ErrBadStatus, j.Status)
	}

	_, err := p.db.Exec(
		`INSERT INTO jobs (id, status, event_type, wallet, wallet_type, attempts, error, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		j.ID, j.Status, j.EventType, j.Wallet, j.WalletType, j.Attempts, j.Error, j.ProcessedAt)
	if err != nil {
		return fmt.Errorf("could not insert job record in db: %w", err)
	}

	if j.Status == store.StatusCompleted {
		if _, err = p.db.Exec(prune, store.StatusCompleted, store.CompletedBound-1); err != nil {
			return fmt.Errorf("could not prune completed jobs: %w", err)
		}
	}

	return nil
}

// GetJobs returns the retained records for the statuses indicated, or for all statuses when none are given.
func (p *Postgres) GetJobs(statuses []string) ([]store.JobRecord, error) {
	if len(statuses) == 0 {
		statuses = []string{store.StatusCompleted, store.StatusFailed}
	}

	rows, err := p.db.Query(
		`SELECT id, status, event_type, wallet, wallet_type, attempts, error, processed_at
		 FROM jobs WHERE status = ANY($1) ORDER BY processed_at DESC`, pq.Array(statuses))
	if err != nil {
		return nil, fmt.Errorf("error reading jobs: %w", err)
	}
	defer rows.Close()

	recs := []store.JobRecord{}

	for rows.Next() {
		var j store.JobRecord
		if err = rows.Scan(&j.ID, &j.Status, &j.EventType, &j.Wallet, &j.WalletType,
			&j.Attempts, &j.Error, &j.ProcessedAt); err != nil {
			return nil, fmt.Errorf("error scanning job record: %w", err)
		}

		recs = append(recs, j)
	}

	return recs, rows.Err()
}

// Counts returns the number of retained records per status.
func (p *Postgres) Counts() (map[string]int, error) {
	rows, err := p.db.Query(`SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("error counting jobs: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{store.StatusCompleted: 0, store.StatusFailed: 0}

	for rows.Next() {
		var status string

		var n int

		if err = rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("error scanning count: %w", err)
		}

		counts[status] = n
	}

	return counts, rows.Err()
}
