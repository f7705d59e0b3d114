package postgres

import (
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver
)

// Supported database/sql driver names.
const (
	DriverPgx = "pgx"
	DriverPq  = "postgres"
)
