package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQL stores documents in a single table. It runs on sqlite3 and postgres.
type SQL struct {
	conn *sqlx.DB
}

// NewSQL opens a database connection and initializes tables.
// driver is "sqlite3" or "postgres".
func NewSQL(driver, dsn string) (*SQL, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == "sqlite3" {
		// sqlite allows one writer; a single connection avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err = createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQL{conn: db}, nil
}

// Close closes the database connection
func (s *SQL) Close() error {
	return s.conn.Close()
}

// createTables creates the necessary tables if they don't exist
func createTables(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			guild_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			body TEXT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (guild_id, kind)
		)
	`)
	return err
}

// Get returns the stored document body
func (s *SQL) Get(ctx context.Context, guildID string, kind Kind) ([]byte, error) {
	var body string
	err := s.conn.GetContext(ctx, &body,
		s.conn.Rebind("SELECT body FROM documents WHERE guild_id = ? AND kind = ?"),
		guildID, string(kind),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

// Put inserts or replaces the whole document
func (s *SQL) Put(ctx context.Context, guildID string, kind Kind, data []byte) error {
	_, err := s.conn.ExecContext(ctx,
		s.conn.Rebind(`INSERT INTO documents (guild_id, kind, body, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (guild_id, kind) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`),
		guildID, string(kind), string(data), time.Now().Unix(),
	)
	return err
}

// Ping checks the connection
func (s *SQL) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}
