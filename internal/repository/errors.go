package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrSessionNotActive is returned when a conditional session update matched no active row.
	ErrSessionNotActive = errors.New("watch session is not active")

	// ErrActiveSessionExists is returned when a profile already has an active session.
	ErrActiveSessionExists = errors.New("profile already has an active watch session")

	// ErrDuplicate is returned on unique constraint violations for CRUD tables.
	ErrDuplicate = errors.New("record already exists")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
