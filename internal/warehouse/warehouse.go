// Package warehouse holds the execution adapters behind the gateway: one
// *sql.DB-backed executor per supported back-end plus a shared dispatch
// governor. Adapters run exactly the statement the pipeline approved and
// never rewrite it further.
package warehouse

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
)

// driverNames maps configured backend names to registered driver names.
var driverNames = map[string]string{
	"duckdb":   "duckdb",
	"postgres": "pgx",
	"mssql":    "sqlserver",
}

// Open opens a connection pool for the configured warehouse backend.
func Open(backend, dsn string) (*sql.DB, error) {
	driver, ok := driverNames[backend]
	if !ok {
		return nil, fmt.Errorf("unsupported warehouse backend %q", backend)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s warehouse: %w", backend, err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}
