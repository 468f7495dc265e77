package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mescon/Cachearr/internal/domain"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// CreateRun inserts a new run row from s.
func (r *Repository) CreateRun(s domain.RunSummary) error {
	_, err := ExecWithRetry(r.DB, `
		INSERT INTO runs (id, status, started_at, seen, matched, added)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.RunID, string(s.Status), FormatTime(s.StartedAt), s.Seen, s.Matched, s.Added)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun stores the final status and counters of s.
func (r *Repository) FinishRun(s domain.RunSummary) error {
	var finished interface{}
	if s.FinishedAt != nil {
		finished = FormatTime(*s.FinishedAt)
	}
	var errMsg interface{}
	if s.Error != "" {
		errMsg = s.Error
	}

	result, err := ExecWithRetry(r.DB, `
		UPDATE runs SET status = ?, finished_at = ?, seen = ?, matched = ?, added = ?, error_message = ?
		WHERE id = ?
	`, string(s.Status), finished, s.Seen, s.Matched, s.Added, errMsg, s.RunID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to finish run %s: %w", s.RunID, ErrRunNotFound)
	}
	return nil
}

// SaveRecord appends rec to the run's records at the given position.
func (r *Repository) SaveRecord(runID string, position int, rec domain.ProcessedRecord) error {
	var hash, errMsg interface{}
	if rec.InfoHash != "" {
		hash = rec.InfoHash.String()
	}
	if rec.Error != "" {
		errMsg = rec.Error
	}

	_, err := ExecWithRetry(r.DB, `
		INSERT INTO processed_records (run_id, position, title, size, seeders, peers, info_hash, added, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, position, rec.Title, nullableInt(rec.Size), nullableInt(rec.Seeders), nullableInt(rec.Peers), hash, rec.Added, errMsg)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

const runColumns = `id, status, started_at, finished_at, seen, matched, added, error_message`

// ListRuns returns up to limit runs, newest first, skipping offset rows.
func (r *Repository) ListRuns(limit, offset int) ([]domain.RunSummary, error) {
	rows, err := QueryWithRetry(r.DB, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.RunSummary{}
	for rows.Next() {
		s, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// CountRuns returns the number of stored runs.
func (r *Repository) CountRuns() (int, error) {
	var n int
	if err := r.DB.QueryRow("SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

// GetRun loads a single run.
func (r *Repository) GetRun(id string) (domain.RunSummary, error) {
	row := r.DB.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	s, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunSummary{}, ErrRunNotFound
	}
	return s, err
}

// GetRunRecords returns the records of a run in processing order.
func (r *Repository) GetRunRecords(runID string) ([]domain.ProcessedRecord, error) {
	rows, err := QueryWithRetry(r.DB, `
		SELECT title, size, seeders, peers, info_hash, added, error_message
		FROM processed_records WHERE run_id = ? ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	defer rows.Close()

	records := []domain.ProcessedRecord{}
	for rows.Next() {
		var (
			rec                  domain.ProcessedRecord
			size, seeders, peers sql.NullInt64
			hash, errMsg         sql.NullString
		)
		if err := rows.Scan(&rec.Title, &size, &seeders, &peers, &hash, &rec.Added, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Size = intPtr(size)
		rec.Seeders = intPtr(seeders)
		rec.Peers = intPtr(peers)
		rec.InfoHash = domain.InfoHash(hash.String)
		rec.Error = errMsg.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (domain.RunSummary, error) {
	var (
		s        domain.RunSummary
		status   string
		started  string
		finished sql.NullString
		errMsg   sql.NullString
	)
	if err := row.Scan(&s.RunID, &status, &started, &finished, &s.Seen, &s.Matched, &s.Added, &errMsg); err != nil {
		return domain.RunSummary{}, err
	}
	s.Status = domain.RunStatus(status)
	s.Error = errMsg.String

	t, err := ParseTime(started)
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("run %s: bad started_at: %w", s.RunID, err)
	}
	s.StartedAt = t
	if finished.Valid {
		f, err := ParseTime(finished.String)
		if err != nil {
			return domain.RunSummary{}, fmt.Errorf("run %s: bad finished_at: %w", s.RunID, err)
		}
		s.FinishedAt = &f
	}
	return s, nil
}

func nullableInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
