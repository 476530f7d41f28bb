package db

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// NewMySQLConnection opens a *sqlx.DB and fails when the server is unreachable.
func NewMySQLConnection(dsn string, opts PoolOpts) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty MySQL DSN")
	}
	return openAndPing("mysql", dsn, opts)
}

// OpenMySQL configures the pool without contacting the server. The handle
// connects lazily, so callers can keep serving while MySQL is down.
func OpenMySQL(dsn string, opts PoolOpts) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty MySQL DSN")
	}
	dbx, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	opts.apply(dbx)
	return dbx, nil
}
