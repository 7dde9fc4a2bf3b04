package mysql

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bryanwahyu/healthwave/internal/domain/failures"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pageBounds normalizes 1-based paging input into LIMIT and OFFSET
func pageBounds(page, pageSize int) (limit, offset int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pageSize, (page - 1) * pageSize
}

// nullIfEmpty stores blank optional strings as NULL
func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", failures.ErrNotFound, what)
	}
	return err
}
