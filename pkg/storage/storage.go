// Package storage provides the single-slot key-value backends the task
// store persists its collection into.
package storage

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("storage: key not found")

// KV is a durable key-value slot.
type KV interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Options selects and configures a backend.
type Options struct {
	Driver string
	// Dir is the directory used by the file driver.
	Dir string
	// DSN is the data source name used by the SQL drivers.
	DSN string
}

// Open returns the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (KV, error) {
	switch opts.Driver {
	case "", DriverFile:
		return NewFileKV(opts.Dir)
	case DriverMemory:
		return NewMemoryKV(), nil
	case DriverSQLite, DriverPostgres, DriverMySQL:
		return OpenSQL(ctx, opts.Driver, opts.DSN)
	}
	return nil, fmt.Errorf("storage: unknown driver %q", opts.Driver)
}
