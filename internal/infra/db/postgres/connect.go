package postgres

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/bryanwahyu/healthwave/internal/infra/db"
)

func Connect(ctx context.Context, dsn string, pool db.Pool) (*sql.DB, error) {
	return db.Open(ctx, "postgres", dsn, pool)
}
