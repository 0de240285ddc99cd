package blob

import (
	memorystore "landledger/internal/infra/blob/memory"
)

// NewMemory returns an in-memory store.
func NewMemory() Store { return memorystore.New() }
