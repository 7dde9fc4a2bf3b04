package mysql

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"

	"github.com/bryanwahyu/healthwave/internal/infra/db"
)

// Connect opens MySQL. The DSN must carry parseTime=true so DATETIME columns
// scan into time.Time.
func Connect(ctx context.Context, dsn string, pool db.Pool) (*sql.DB, error) {
	return db.Open(ctx, "mysql", dsn, pool)
}
