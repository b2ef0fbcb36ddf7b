package models

import (
	"fmt"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// RunID extracts the string key of a ledger record id.
// Ledger ids are always created from uuid strings, so any other key type is
// an error.
func RunID(id surrealmodels.RecordID) (string, error) {
	s, ok := id.ID.(string)
	if !ok {
		return "", fmt.Errorf("unexpected run id type: %T (expected string)", id.ID)
	}
	return s, nil
}

// ShortRunID returns the first 8 characters of a run id for display.
func ShortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
