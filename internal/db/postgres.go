package db

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a Postgres connection using the given DSN. Caller must call Close when done.
func Open(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// Status reports connectivity and which of the expected tables exist. Used by
// the debug endpoint; best-effort, so per-table errors read as "missing".
type Status struct {
	Connected bool            `json:"connected"`
	Tables    map[string]bool `json:"tables"`
}

// CheckStatus probes the database and the presence of the schema tables.
func CheckStatus(ctx context.Context, conn *sql.DB) Status {
	st := Status{Tables: map[string]bool{}}
	if err := conn.PingContext(ctx); err != nil {
		return st
	}
	st.Connected = true
	for _, table := range []string{"users", "device_sessions", "tasks", "audit_logs"} {
		var exists bool
		err := conn.QueryRowContext(ctx,
			`SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		st.Tables[table] = err == nil && exists
	}
	return st
}
