package storage

import (
	"errors"

	"github.com/lib/pq"
)

// pqUniqueViolation is the Postgres error code for unique-constraint
// violations; a concurrent writer racing on a unique name surfaces as
// this and is treated as success-with-existing-row.
const pqUniqueViolation = "23505"

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
