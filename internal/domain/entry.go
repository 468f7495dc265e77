package domain

import (
	"encoding/hex"
	"strings"
	"time"
)

// CacheEntry is one search result from the indexer's result cache, as the
// indexer serializes it. Numeric fields are pointers because the indexer
// omits or nulls them for some trackers.
type CacheEntry struct {
	Title    string `json:"Title"`
	Category []int  `json:"Category"`
	Size     *int64 `json:"Size"`
	Seeders  *int64 `json:"Seeders"`
	Peers    *int64 `json:"Peers"`
	Details  string `json:"Details"`
	Link     string `json:"Link"`
}

// InfoHash is the 40 character lowercase hex SHA-1 of a torrent's info dictionary.
type InfoHash string

// ParseInfoHash lowercases s and reports whether it is a well-formed info hash.
func ParseInfoHash(s string) (InfoHash, bool) {
	h := InfoHash(strings.ToLower(strings.TrimSpace(s)))
	return h, h.Valid()
}

// Valid reports whether h is exactly 40 lowercase hex characters.
func (h InfoHash) Valid() bool {
	if len(h) != 40 || strings.ToLower(string(h)) != string(h) {
		return false
	}
	_, err := hex.DecodeString(string(h))
	return err == nil
}

func (h InfoHash) String() string {
	return string(h)
}

// Equal compares two hashes case-insensitively.
func (h InfoHash) Equal(other string) bool {
	return strings.EqualFold(string(h), other)
}

// ProcessedRecord is the outcome of one matching cache entry within a run.
type ProcessedRecord struct {
	Title    string   `json:"title"`
	Size     *int64   `json:"size"`
	Seeders  *int64   `json:"seeders"`
	Peers    *int64   `json:"peers"`
	InfoHash InfoHash `json:"info_hash,omitempty"`
	Added    bool     `json:"added"`
	Error    string   `json:"error,omitempty"`
}

// NewProcessedRecord copies the reportable fields of entry.
func NewProcessedRecord(entry CacheEntry) ProcessedRecord {
	return ProcessedRecord{
		Title:   entry.Title,
		Size:    entry.Size,
		Seeders: entry.Seeders,
		Peers:   entry.Peers,
	}
}

// Availability is the instant-availability verdict for one hash.
type Availability int

const (
	AvailabilityError Availability = iota
	AvailabilityNotAvailable
	AvailabilityDownloaded
)

func (a Availability) String() string {
	switch a {
	case AvailabilityDownloaded:
		return "downloaded"
	case AvailabilityNotAvailable:
		return "not_available"
	default:
		return "error"
	}
}

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	// StatusEmpty means the indexer returned nothing usable; no report was written.
	StatusEmpty  RunStatus = "empty"
	StatusFailed RunStatus = "failed"
)

// RunSummary describes one pipeline run.
type RunSummary struct {
	RunID      string     `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	Seen       int        `json:"seen"`
	Matched    int        `json:"matched"`
	Added      int        `json:"added"`
	Error      string     `json:"error,omitempty"`
}

// Failed returns the number of matched entries that were not added.
func (s RunSummary) Failed() int {
	return s.Matched - s.Added
}

// Duration returns the run's wall time, or zero while it is still running.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
