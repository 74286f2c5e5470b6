package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for history operations.
var (
	// ErrTransactionConflict indicates concurrent writes to the same row.
	// Callers may retry.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("job record not found")
)

// wrapQueryError maps known SurrealDB query errors onto sentinels.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		if strings.Contains(queryErr.Message, "Transaction conflict") {
			return fmt.Errorf("%w: %s", ErrTransactionConflict, queryErr.Message)
		}
	}
	return err
}
