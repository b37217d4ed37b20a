package postgres

import "github.com/pkg/errors"

// Sentinel errors shared by the postgres repositories.
var (
	ErrNotFound         = errors.New("row not found")
	ErrDuplicateRequest = errors.New("a pending device change request already exists")
	ErrAlreadyResolved  = errors.New("device change request already resolved")
	ErrVersionConflict  = errors.New("day ledger was modified concurrently")
)
