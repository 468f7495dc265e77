package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mescon/Cachearr/internal/logger"
)

// MaxRetries is the number of attempts made while SQLite reports the database as busy.
const MaxRetries = 5

// RetryDelay is the first backoff step; each further attempt doubles it.
const RetryDelay = 100 * time.Millisecond

// sleep is swapped in tests.
var sleep = time.Sleep

// IsBusyError reports whether err is SQLite's "database is locked" condition.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withRetry runs fn until it succeeds, fails with a non-busy error, or
// MaxRetries busy attempts have been made.
func withRetry(what string, fn func() error) error {
	var err error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		err = fn()
		if err == nil || !IsBusyError(err) {
			return err
		}
		if attempt < MaxRetries-1 {
			delay := RetryDelay * time.Duration(1<<attempt)
			logger.Debugf("Database busy on %s, retrying in %v (attempt %d/%d)", what, delay, attempt+1, MaxRetries)
			sleep(delay)
		}
	}
	return fmt.Errorf("database busy after %d retries: %w", MaxRetries, err)
}

// ExecWithRetry executes a statement, retrying while the database is busy.
func ExecWithRetry(db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	err := withRetry("exec", func() error {
		var execErr error
		result, execErr = db.Exec(query, args...)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// QueryWithRetry runs a query, retrying while the database is busy.
func QueryWithRetry(db *sql.DB, query string, args ...interface{}) (*sql.Rows, error) {
	var rows *sql.Rows
	err := withRetry("query", func() error {
		var queryErr error
		rows, queryErr = db.Query(query, args...)
		return queryErr
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
