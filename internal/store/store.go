// Package store persists notifications in PostgreSQL and reads the user
// directory and push registrations the dispatcher delivers to.
package store

import (
	"database/sql"
)

// Store is the PostgreSQL-backed notification store.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}
