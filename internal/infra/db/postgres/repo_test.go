package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/healthwave/internal/domain/analysis"
	"github.com/bryanwahyu/healthwave/internal/domain/failures"
)

func TestAnalysisRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewAnalysisRepository(db)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)")).
		WithArgs(domain.AnalysisID("a1"), int64(7), "Lung Cancer Detection", "No signs of lung cancer",
			0.5, domain.RiskLow, "Continue routine screening", "chest.png", domain.DomainLung,
			sql.NullString{String: "http://minio/x", Valid: true}, at, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Save(context.Background(), &domain.Result{
		ID: "a1", PatientID: 7, AnalysisType: "Lung Cancer Detection", Result: "No signs of lung cancer",
		Confidence: 0.5, RiskLevel: domain.RiskLow, Recommendation: "Continue routine screening",
		ImageFilename: "chest.png", ImageDomain: domain.DomainLung, ImageURL: "http://minio/x",
		AnalyzedAt: at, AnalyzedBy: 3,
	}))

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id=$1")).
		WithArgs(domain.AnalysisID("nope")).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, failures.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTurnHistoryLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTurnRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1")).
		WithArgs(int64(9), defaultPageSize).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "role", "content", "is_file", "file_name", "created_at"}))

	turns, err := repo.History(context.Background(), 9, 0)
	require.NoError(t, err)
	assert.Empty(t, turns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaStopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS ai_analysis")).
		WillReturnError(sql.ErrConnDone)

	err = EnsureSchema(context.Background(), db)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}
