package mysql

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
	"github.com/bryanwahyu/healthwave/internal/domain/conversation"
	"github.com/bryanwahyu/healthwave/internal/domain/failures"
)

var analysisCols = []string{
	"id", "patient_id", "analysis_type", "result", "confidence_score", "risk_level",
	"recommendations", "image_filename", "image_type", "image_url", "analyzed_at", "analyzed_by",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestAnalysisSave(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAnalysisRepository(db)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ai_analysis")).
		WithArgs(domain.AnalysisID("a1"), int64(7), "Lung Cancer Detection", "Potential lung malignancy",
			0.92, domain.RiskHigh, "Urgent referral", "chest.png", domain.DomainLung, sql.NullString{}, at, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), &domain.Result{
		ID: "a1", PatientID: 7, AnalysisType: "Lung Cancer Detection", Result: "Potential lung malignancy",
		Confidence: 0.92, RiskLevel: domain.RiskHigh, Recommendation: "Urgent referral",
		ImageFilename: "chest.png", ImageDomain: domain.DomainLung, AnalyzedAt: at, AnalyzedBy: 3,
	})
	require.NoError(t, err)
}

func TestAnalysisGet(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAnalysisRepository(db)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM ai_analysis")).
		WithArgs(domain.AnalysisID("a1")).
		WillReturnRows(sqlmock.NewRows(analysisCols).
			AddRow("a1", 7, "Brain Cancer Detection", "No signs of brain tumor", 0.123456789, "low",
				"Continue routine screening", "mri.png", "brain", "http://minio/scans/mri.png", at, 3))

	got, err := repo.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 0.123456789, got.Confidence)
	assert.Equal(t, domain.RiskLow, got.RiskLevel)
	assert.Equal(t, domain.DomainBrain, got.ImageDomain)
	assert.Equal(t, "http://minio/scans/mri.png", got.ImageURL)
	assert.Equal(t, at, got.AnalyzedAt)
}

func TestAnalysisGetNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAnalysisRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM ai_analysis")).
		WithArgs(domain.AnalysisID("missing")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, failures.ErrNotFound)
}

func TestAnalysisListByPatientPaging(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAnalysisRepository(db)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE patient_id=?")).
		WithArgs(int64(7), 100, 100).
		WillReturnRows(sqlmock.NewRows(analysisCols).
			AddRow("a2", 7, "Lung Cancer Detection", "No signs of lung cancer", 0.3, "low", "r", "c.png", "lung", nil, at, 3))

	got, err := repo.ListByPatient(context.Background(), 7, 2, 500)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].ImageURL)
}

func TestAnalysisListByDoctorEmpty(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAnalysisRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE analyzed_by=?")).
		WithArgs(int64(3), defaultPageSize, 0).
		WillReturnRows(sqlmock.NewRows(analysisCols))

	got, err := repo.ListByDoctor(context.Background(), 3, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestTurnSaveAndHistory(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTurnRepository(db)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_conversation")).
		WithArgs(conversation.TurnID("t1"), int64(5), conversation.RoleUser, "notes text", true,
			sql.NullString{String: "notes.pdf", Valid: true}, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), &conversation.Turn{
		ID: "t1", UserID: 5, Role: conversation.RoleUser, Content: "notes text",
		IsFile: true, FileName: "notes.pdf", CreatedAt: at,
	}))

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC")).
		WithArgs(int64(5), 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "role", "content", "is_file", "file_name", "created_at"}).
			AddRow("t2", 5, "assistant", "reply", false, nil, at.Add(time.Second)).
			AddRow("t1", 5, "user", "notes text", true, "notes.pdf", at))

	turns, err := repo.History(context.Background(), 5, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, conversation.RoleAssistant, turns[0].Role)
	assert.Empty(t, turns[0].FileName)
	assert.Equal(t, "notes.pdf", turns[1].FileName)
	assert.True(t, turns[1].IsFile)
}

func TestEnsureSchema(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS ai_analysis")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS chat_conversation")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureSchema(context.Background(), db))
}
