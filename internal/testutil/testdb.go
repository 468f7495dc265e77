package testutil

import (
	"fmt"

	"github.com/mescon/Cachearr/internal/db"
)

// NewTestDB opens a migrated in-memory repository. The caller closes it.
func NewTestDB() (*db.Repository, error) {
	repo, err := db.NewRepository(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return repo, nil
}
