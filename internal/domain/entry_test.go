package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCacheEntry_UnmarshalIndexerJSON(t *testing.T) {
	raw := `{
		"Title": "Film.2024.MULTi.1080p",
		"Category": [2000, 102183],
		"Size": 4294967296,
		"Seeders": 57,
		"Peers": null,
		"Details": "https://www.ygg.re/torrent/films/123",
		"Link": "http://jackett:9117/dl/ygg/?jackett_apikey=x&path=y"
	}`

	var e CacheEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if e.Title != "Film.2024.MULTi.1080p" || len(e.Category) != 2 || e.Category[0] != 2000 {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Size == nil || *e.Size != 4294967296 {
		t.Errorf("Size = %v", e.Size)
	}
	if e.Seeders == nil || *e.Seeders != 57 {
		t.Errorf("Seeders = %v", e.Seeders)
	}
	if e.Peers != nil {
		t.Errorf("Peers = %v, want nil", *e.Peers)
	}
}

func TestParseInfoHash(t *testing.T) {
	tests := []struct {
		input string
		want  InfoHash
		valid bool
	}{
		{"0123456789abcdef0123456789abcdef01234567", "0123456789abcdef0123456789abcdef01234567", true},
		{"0123456789ABCDEF0123456789ABCDEF01234567", "0123456789abcdef0123456789abcdef01234567", true},
		{"  0123456789abcdef0123456789abcdef01234567 ", "0123456789abcdef0123456789abcdef01234567", true},
		{"0123456789abcdef", "0123456789abcdef", false},
		{"zz23456789abcdef0123456789abcdef01234567", "zz23456789abcdef0123456789abcdef01234567", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseInfoHash(tt.input)
			if got != tt.want || ok != tt.valid {
				t.Errorf("ParseInfoHash(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.valid)
			}
		})
	}
}

func TestInfoHash_Valid_RejectsUppercase(t *testing.T) {
	if InfoHash("0123456789ABCDEF0123456789ABCDEF01234567").Valid() {
		t.Error("uppercase hash should not be valid without normalisation")
	}
}

func TestInfoHash_Equal(t *testing.T) {
	h := InfoHash("0123456789abcdef0123456789abcdef01234567")
	if !h.Equal("0123456789ABCDEF0123456789ABCDEF01234567") {
		t.Error("Equal should ignore case")
	}
	if h.Equal("1123456789abcdef0123456789abcdef01234567") {
		t.Error("Equal matched a different hash")
	}
}

func TestNewProcessedRecord(t *testing.T) {
	size := int64(10)
	rec := NewProcessedRecord(CacheEntry{Title: "T", Size: &size, Details: "d", Link: "l"})

	if rec.Title != "T" || rec.Size != &size || rec.Seeders != nil || rec.Added {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestAvailability_String(t *testing.T) {
	tests := map[Availability]string{
		AvailabilityDownloaded:   "downloaded",
		AvailabilityNotAvailable: "not_available",
		AvailabilityError:        "error",
		Availability(99):         "error",
	}
	for a, want := range tests {
		if got := a.String(); got != want {
			t.Errorf("Availability(%d).String() = %q, want %q", int(a), got, want)
		}
	}
}

func TestRunSummary_Counters(t *testing.T) {
	start := time.Now()
	s := RunSummary{StartedAt: start, Matched: 5, Added: 2}

	if s.Failed() != 3 {
		t.Errorf("Failed() = %d, want 3", s.Failed())
	}
	if s.Duration() != 0 {
		t.Errorf("Duration() while running = %v, want 0", s.Duration())
	}

	end := start.Add(time.Minute)
	s.FinishedAt = &end
	if s.Duration() != time.Minute {
		t.Errorf("Duration() = %v, want 1m", s.Duration())
	}
}
