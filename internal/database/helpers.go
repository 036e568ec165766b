package database

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// placeholder returns the $N positional placeholder for argument n (1-based).
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// isUniqueViolation reports whether err is a Postgres unique constraint violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// uuidArray renders ids as a Postgres array parameter accepted by ANY($1).
func uuidArray(ids []uuid.UUID) interface{} {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	return pq.Array(strs)
}

// isForeignKeyViolation reports whether err is a Postgres foreign key violation
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}
