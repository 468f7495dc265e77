package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/google/uuid"

	"github.com/mescon/Cachearr/internal/domain"
)

// =============================================================================
// Torrent fixtures
// =============================================================================

// TorrentBytes builds a minimal single-file .torrent for name and returns
// it with the info-hash a client would compute for it.
func TorrentBytes(name string) ([]byte, domain.InfoHash, error) {
	info := metainfo.Info{
		Name:        name,
		PieceLength: 16384,
		Length:      int64(len(name)),
		Pieces:      make([]byte, 20),
	}
	infoBytes, err := bencode.Marshal(info)
	if err != nil {
		return nil, "", fmt.Errorf("marshal info: %w", err)
	}

	mi := metainfo.MetaInfo{
		Announce:  "udp://tracker.example.com:80",
		InfoBytes: infoBytes,
	}
	var buf bytes.Buffer
	if err := mi.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("write metainfo: %w", err)
	}

	hash, ok := domain.ParseInfoHash(metainfo.HashBytes(infoBytes).HexString())
	if !ok {
		return nil, "", fmt.Errorf("invalid info hash %q", hash)
	}
	return buf.Bytes(), hash, nil
}

// WriteTorrentFile writes a TorrentBytes fixture into a temp directory.
func WriteTorrentFile(t testing.TB, name string) (string, domain.InfoHash) {
	t.Helper()
	data, hash, err := TorrentBytes(name)
	if err != nil {
		t.Fatalf("build torrent fixture: %v", err)
	}
	return WriteFile(t, name+".torrent", data), hash
}

// WriteFile writes data to name inside a per-test temp directory.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

// =============================================================================
// Cache entry fixtures
// =============================================================================

// EntryOption is a functional option for configuring test cache entries.
type EntryOption func(*domain.CacheEntry)

// WithCategories replaces the entry's category codes.
func WithCategories(codes ...int) EntryOption {
	return func(e *domain.CacheEntry) {
		e.Category = codes
	}
}

// WithStats sets size, seeders and peers.
func WithStats(size, seeders, peers int64) EntryOption {
	return func(e *domain.CacheEntry) {
		e.Size = &size
		e.Seeders = &seeders
		e.Peers = &peers
	}
}

// WithDetails sets the entry's details URL.
func WithDetails(details string) EntryOption {
	return func(e *domain.CacheEntry) {
		e.Details = details
	}
}

// NewCacheEntry returns a movie-category entry from the default tracker
// that downloads from link.
func NewCacheEntry(title, link string, opts ...EntryOption) domain.CacheEntry {
	e := domain.CacheEntry{
		Title:    title,
		Category: []int{2000},
		Details:  "https://www.ygg.re/torrent/" + uuid.New().String(),
		Link:     link,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// =============================================================================
// Event fixtures
// =============================================================================

// EventOption is a functional option for configuring test events.
type EventOption func(*domain.Event)

// WithCreatedAt sets the event creation time.
func WithCreatedAt(t time.Time) EventOption {
	return func(e *domain.Event) {
		e.CreatedAt = t
	}
}

func applyEventOptions(e domain.Event, opts []EventOption) domain.Event {
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// NewRunFinishedEvent builds a RunCompleted (or RunFailed) event for a
// fresh run ID with the given counters.
func NewRunFinishedEvent(status domain.RunStatus, seen, matched, added int, opts ...EventOption) domain.Event {
	start := time.Now().Add(-time.Minute)
	end := start.Add(30 * time.Second)
	s := domain.RunSummary{
		RunID:      uuid.New().String(),
		StartedAt:  start,
		FinishedAt: &end,
		Status:     status,
		Seen:       seen,
		Matched:    matched,
		Added:      added,
	}
	if status == domain.StatusFailed {
		s.Error = "jackett login: HTTP 401"
	}
	return applyEventOptions(domain.RunFinishedEvent(s), opts)
}

// NewEntryProcessedEvent builds an EntryProcessed event for title.
func NewEntryProcessedEvent(title string, added bool, opts ...EventOption) domain.Event {
	rec := domain.ProcessedRecord{Title: title, Added: added}
	if !added {
		rec.Error = "torrent is not cached on Real-Debrid"
	}
	return applyEventOptions(domain.EntryProcessedEvent(uuid.New().String(), rec), opts)
}
