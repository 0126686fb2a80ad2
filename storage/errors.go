package storage

import "errors"

// Storage error constants
var (
	// ErrScanNotFound is returned when no scan history exists for a hash.
	ErrScanNotFound = errors.New("scan not found")

	// ErrDatabaseClosed is returned when attempting to use a closed database connection.
	ErrDatabaseClosed = errors.New("database is closed")
)
