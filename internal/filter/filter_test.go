package filter

import (
	"testing"

	"github.com/mescon/Cachearr/internal/domain"
)

func entry(details string, cats ...int) domain.CacheEntry {
	return domain.CacheEntry{Title: "t", Category: cats, Details: details}
}

func TestIsTargetCategory(t *testing.T) {
	f := New(DefaultCategories, "")

	tests := []struct {
		name string
		cats []int
		want bool
	}{
		{"movies", []int{2000}, true},
		{"tv among others", []int{102183, 5000}, true},
		{"sub-category only", []int{2040}, false},
		{"audio", []int{3000}, false},
		{"no categories", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.IsTargetCategory(entry("", tt.cats...)); got != tt.want {
				t.Errorf("IsTargetCategory(%v) = %v, want %v", tt.cats, got, tt.want)
			}
		})
	}
}

func TestIsFromTracker(t *testing.T) {
	tests := []struct {
		name    string
		domain  string
		details string
		want    bool
	}{
		{"exact host", "ygg.re", "https://ygg.re/torrent/1", true},
		{"subdomain", "ygg.re", "https://www.ygg.re/torrent/1", true},
		{"other tracker", "ygg.re", "https://example.org/t/1", false},
		{"domain only in path", "ygg.re", "https://example.org/ygg.re/1", false},
		{"empty details", "ygg.re", "", false},
		{"unparseable details", "ygg.re", "http://[::1", false},
		{"no domain configured", "", "https://example.org/t/1", true},
		{"whitespace domain", "  ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(DefaultCategories, tt.domain)
			if got := f.IsFromTracker(entry(tt.details, 2000)); got != tt.want {
				t.Errorf("IsFromTracker(%q) = %v, want %v", tt.details, got, tt.want)
			}
		})
	}
}

func TestMatches_RequiresBoth(t *testing.T) {
	f := New([]int{2000, 5000}, "ygg.re")

	tests := []struct {
		name string
		e    domain.CacheEntry
		want bool
	}{
		{"both hold", entry("https://ygg.re/x", 5000), true},
		{"wrong category", entry("https://ygg.re/x", 4000), false},
		{"wrong tracker", entry("https://other.net/x", 2000), false},
		{"neither", entry("https://other.net/x", 4000), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Matches(tt.e); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApply_PreservesOrder(t *testing.T) {
	f := New([]int{2000}, "ygg.re")
	in := []domain.CacheEntry{
		{Title: "a", Category: []int{2000}, Details: "https://ygg.re/a"},
		{Title: "b", Category: []int{3000}, Details: "https://ygg.re/b"},
		{Title: "c", Category: []int{2000}, Details: "https://ygg.re/c"},
	}

	out := f.Apply(in)
	if len(out) != 2 || out[0].Title != "a" || out[1].Title != "c" {
		t.Errorf("Apply() = %+v", out)
	}
}
