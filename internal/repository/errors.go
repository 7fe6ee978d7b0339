package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrPendingConsumed means the pending registration was replaced or
	// materialized by a concurrent caller.
	ErrPendingConsumed = errors.New("pending registration already consumed")
	// ErrDuplicateEmail means an account with the e-mail already exists.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateEvent means a payment event was already applied.
	ErrDuplicateEvent = errors.New("payment event already applied")
	// ErrDuplicateRequest means an open request for the pair already exists.
	ErrDuplicateRequest = errors.New("open connection request already exists")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// Page bounds list queries.
type Page struct {
	Limit  int
	Offset int
}
