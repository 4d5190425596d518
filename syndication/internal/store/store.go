// Package store provides the data access layer for the syndication service.
//
// The store receives an already-opened *sql.DB (see dbopen) and never opens
// its own database. All timestamps are milliseconds since epoch.
package store

import "database/sql"

// Store wraps the syndication database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}
