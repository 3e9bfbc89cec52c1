package ledger

import (
	"context"
	"fmt"

	"github.com/radieske/parimutuel-pools/internal/shared/db"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Options struct {
	Driver      string
	PostgresDSN string
	SQLitePath  string
}

// Open escolhe a implementação do livro pelo driver configurado.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		conn, err := db.ConnectSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		s, err := NewSQL(ctx, conn, SQLite)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return s, nil
	case DriverPostgres, "":
		conn, err := db.ConnectPostgres(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s, err := NewSQL(ctx, conn, Postgres)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("ledger: unknown driver %q", opts.Driver)
}
