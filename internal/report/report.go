// Package report writes the per-run CSV outcome file.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mescon/Cachearr/internal/domain"
)

// Header is the fixed column order of the report.
var Header = []string{"title", "size", "seeders", "peers", "added_to_rd"}

const (
	unknown = "Unknown"
	yes     = "Yes"
	no      = "No"
)

// Row is one parsed report line. Numeric columns stay textual because they
// may read "Unknown".
type Row struct {
	Title   string `json:"title"`
	Size    string `json:"size"`
	Seeders string `json:"seeders"`
	Peers   string `json:"peers"`
	Added   bool   `json:"added_to_rd"`
}

// Write replaces the file at path with a header and one row per record.
// The file is written next to its final location and renamed into place.
func Write(records []domain.ProcessedRecord, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".results-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	w := csv.NewWriter(tmp)
	if err := w.Write(Header); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write report header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(formatRecord(r)); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to write report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set report permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace report: %w", err)
	}
	return nil
}

func formatRecord(r domain.ProcessedRecord) []string {
	added := no
	if r.Added {
		added = yes
	}
	return []string{r.Title, formatCount(r.Size), formatCount(r.Seeders), formatCount(r.Peers), added}
}

func formatCount(v *int64) string {
	if v == nil {
		return unknown
	}
	return strconv.FormatInt(*v, 10)
}

// Read parses a report written by Write.
func Read(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)
	lines, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("report %s has no header", path)
	}
	for i, col := range Header {
		if lines[0][i] != col {
			return nil, fmt.Errorf("report %s: unexpected column %q", path, lines[0][i])
		}
	}

	rows := make([]Row, 0, len(lines)-1)
	for _, l := range lines[1:] {
		rows = append(rows, Row{
			Title:   l[0],
			Size:    l[1],
			Seeders: l[2],
			Peers:   l[3],
			Added:   l[4] == yes,
		})
	}
	return rows, nil
}
