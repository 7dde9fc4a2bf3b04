package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/healthwave/internal/domain/analysis"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const analysisColumns = `id, patient_id, analysis_type, result, confidence_score, risk_level,
       recommendations, image_filename, image_type, image_url, analyzed_at, analyzed_by`

// Save inserts an analysis record. Results are immutable so there is no upsert.
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Result) error {
	const q = `
INSERT INTO ai_analysis
  (id, patient_id, analysis_type, result, confidence_score, risk_level,
   recommendations, image_filename, image_type, image_url, analyzed_at, analyzed_by)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?);
`
	analyzed := a.AnalyzedAt
	if analyzed.IsZero() {
		analyzed = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.PatientID, a.AnalysisType, a.Result, a.Confidence, a.RiskLevel,
		a.Recommendation, a.ImageFilename, a.ImageDomain, nullIfEmpty(a.ImageURL), analyzed, a.AnalyzedBy,
	)
	return err
}

// Get by ID
func (r *AnalysisRepository) Get(ctx context.Context, id domain.AnalysisID) (*domain.Result, error) {
	const q = `SELECT ` + analysisColumns + `
FROM ai_analysis
WHERE id=? LIMIT 1;`
	a, err := scanAnalysis(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err, "analysis "+string(id))
	}
	return a, nil
}

// ListByPatient returns a page of the patient's analyses, newest first
func (r *AnalysisRepository) ListByPatient(ctx context.Context, patientID int64, page, pageSize int) ([]*domain.Result, error) {
	const q = `SELECT ` + analysisColumns + `
FROM ai_analysis
WHERE patient_id=?
ORDER BY analyzed_at DESC, id DESC
LIMIT ? OFFSET ?;`
	limit, offset := pageBounds(page, pageSize)
	return r.list(ctx, q, patientID, limit, offset)
}

// ListByDoctor returns a page of the analyses a doctor requested, newest first
func (r *AnalysisRepository) ListByDoctor(ctx context.Context, doctorID int64, page, pageSize int) ([]*domain.Result, error) {
	const q = `SELECT ` + analysisColumns + `
FROM ai_analysis
WHERE analyzed_by=?
ORDER BY analyzed_at DESC, id DESC
LIMIT ? OFFSET ?;`
	limit, offset := pageBounds(page, pageSize)
	return r.list(ctx, q, doctorID, limit, offset)
}

func (r *AnalysisRepository) list(ctx context.Context, q string, args ...any) ([]*domain.Result, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Result{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*domain.Result, error) {
	var (
		a        domain.Result
		imageURL sql.NullString
		analyzed time.Time
	)
	if err := row.Scan(
		&a.ID, &a.PatientID, &a.AnalysisType, &a.Result, &a.Confidence, &a.RiskLevel,
		&a.Recommendation, &a.ImageFilename, &a.ImageDomain, &imageURL, &analyzed, &a.AnalyzedBy,
	); err != nil {
		return nil, err
	}
	a.ImageURL = imageURL.String
	a.AnalyzedAt = analyzed.UTC()
	return &a, nil
}
