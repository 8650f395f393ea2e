// Package errors defines the sentinel errors shared across the
// services and their mapping onto HTTP status codes.
package errors

import (
	"errors"
	"net/http"
)

// Index lifecycle sentinels. Producers wrap them with %w so callers
// can branch with errors.Is across package boundaries.
var (
	ErrIndexNotFound = errors.New("index not found")
	ErrIndexCorrupt  = errors.New("index record corrupt")
	ErrNoDocuments   = errors.New("no documents to index")
)

// HTTPStatusCode maps an error onto the status the API should answer
// with. A missing index is the caller's problem; everything else is
// ours.
func HTTPStatusCode(err error) int {
	if errors.Is(err, ErrIndexNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
