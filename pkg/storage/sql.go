package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLKV stores slots in a kv_slots table. It works with the sqlite3,
// postgres and mysql drivers.
type SQLKV struct {
	db *sqlx.DB
}

// OpenSQL connects with driver and dsn and makes sure the table exists.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLKV, error) {
	if dsn == "" {
		return nil, fmt.Errorf("storage: %s driver needs a dsn", driver)
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: connect %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// A second pooled connection to ":memory:" would see an empty database.
		db.SetMaxOpenConns(1)
	}
	kv, err := NewSQLKV(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return kv, nil
}

// NewSQLKV wraps an open connection and creates the table if needed.
func NewSQLKV(ctx context.Context, db *sqlx.DB) (*SQLKV, error) {
	payloadType := "TEXT"
	if db.DriverName() == DriverMySQL {
		payloadType = "MEDIUMTEXT"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS kv_slots (
  slot VARCHAR(191) NOT NULL PRIMARY KEY,
  payload %s NOT NULL,
  updated_at TIMESTAMP NOT NULL
)`, payloadType)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("storage: create kv_slots: %w", err)
	}
	return &SQLKV{db: db}, nil
}

func (s *SQLKV) Get(ctx context.Context, key string) ([]byte, error) {
	var payload string
	err := s.db.GetContext(ctx, &payload, s.db.Rebind(`SELECT payload FROM kv_slots WHERE slot = ?`), key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(payload), nil
}

func (s *SQLKV) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(s.upsert()), key, string(value), time.Now().UTC())
	return err
}

func (s *SQLKV) upsert() string {
	const insert = `INSERT INTO kv_slots (slot, payload, updated_at) VALUES (?, ?, ?)`
	if s.db.DriverName() == DriverMySQL {
		return insert + ` ON DUPLICATE KEY UPDATE payload = VALUES(payload), updated_at = VALUES(updated_at)`
	}
	return insert + ` ON CONFLICT (slot) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
}

func (s *SQLKV) Close() error { return s.db.Close() }
