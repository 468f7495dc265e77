// Package filter decides which indexer cache entries the pipeline processes.
package filter

import (
	"net/url"
	"strings"

	"github.com/mescon/Cachearr/internal/domain"
)

// DefaultCategories are the Torznab movie (2000) and TV (5000) roots.
var DefaultCategories = []int{2000, 5000}

// Filter keeps entries whose category is allow-listed and whose details page
// lives on the configured tracker.
type Filter struct {
	categories    map[int]bool
	trackerDomain string
}

// New builds a Filter. An empty trackerDomain accepts every source.
func New(categories []int, trackerDomain string) *Filter {
	allowed := make(map[int]bool, len(categories))
	for _, c := range categories {
		allowed[c] = true
	}
	return &Filter{
		categories:    allowed,
		trackerDomain: strings.TrimSpace(trackerDomain),
	}
}

// IsTargetCategory reports whether any of the entry's category codes is allow-listed.
// Codes are matched exactly, so sub-categories such as 2040 must be listed on their own.
func (f *Filter) IsTargetCategory(entry domain.CacheEntry) bool {
	for _, c := range entry.Category {
		if f.categories[c] {
			return true
		}
	}
	return false
}

// IsFromTracker reports whether the host of the entry's details URL contains
// the tracker domain.
func (f *Filter) IsFromTracker(entry domain.CacheEntry) bool {
	if f.trackerDomain == "" {
		return true
	}
	u, err := url.Parse(entry.Details)
	if err != nil {
		return false
	}
	return strings.Contains(u.Host, f.trackerDomain)
}

// Matches applies both predicates.
func (f *Filter) Matches(entry domain.CacheEntry) bool {
	return f.IsTargetCategory(entry) && f.IsFromTracker(entry)
}

// Apply returns the matching entries in their original order.
func (f *Filter) Apply(entries []domain.CacheEntry) []domain.CacheEntry {
	out := make([]domain.CacheEntry, 0, len(entries))
	for _, e := range entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}
