package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/bryanwahyu/healthwave/internal/application"
	domain "github.com/bryanwahyu/healthwave/internal/domain/analysis"
	"github.com/bryanwahyu/healthwave/internal/domain/failures"
)

// Service implements the scan analysis use-cases.
// Service is designed to be used concurrently and is thread-safe
type Service struct {
	Repo       domain.Repository
	Classifier domain.Classifier
	Detector   domain.DomainDetector
	// Archive is optional; without it scans only live in scratch space.
	Archive        domain.ImageArchive
	Scratch        *application.Scratch
	Clock          application.Clock
	Logger         *slog.Logger
	MaxUploadBytes int64
}

// AnalyzeCommand is one uploaded scan to classify for a patient.
type AnalyzeCommand struct {
	DoctorID  int64     `validate:"gt=0"`
	PatientID int64     `validate:"gt=0"`
	Filename  string    `validate:"required"`
	Domain    string    `validate:"omitempty,max=16"`
	Image     io.Reader `validate:"required"`
}

// Analyze runs intake, domain detection, inference, interpretation, archive
// and persistence for one scan. The scratch copy of the upload is removed on
// every path, and a failed insert removes the archived copy again.
func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (*domain.Result, error) {
	if err := application.Validate(cmd); err != nil {
		return nil, err
	}
	name := application.SanitizeFilename(cmd.Filename)
	if name == "" {
		return nil, fmt.Errorf("%w: unusable filename %q", failures.ErrInvalidInput, cmd.Filename)
	}

	path, release, err := s.Scratch.Write(name, cmd.Image, s.MaxUploadBytes)
	if err != nil {
		return nil, err
	}
	defer release()

	imageDomain, err := s.Detector.Detect(name, domain.ImageDomain(cmd.Domain))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scratch file: %w", err)
	}
	if mt := mimetype.Detect(data); !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: %s is %s, not an image", failures.ErrInvalidInput, name, mt.String())
	}

	confidence, err := s.Classifier.Classify(ctx, data, imageDomain)
	if err != nil {
		return nil, fmt.Errorf("classify %s scan: %w", imageDomain, err)
	}
	reading := domain.Interpret(imageDomain, confidence)

	res := &domain.Result{
		ID:             domain.AnalysisID(application.NewID()),
		PatientID:      cmd.PatientID,
		AnalysisType:   reading.AnalysisType,
		Result:         reading.Result,
		Confidence:     confidence,
		RiskLevel:      reading.RiskLevel,
		Recommendation: reading.Recommendation,
		ImageFilename:  name,
		ImageDomain:    imageDomain,
		AnalyzedAt:     s.Clock.Now(),
		AnalyzedBy:     cmd.DoctorID,
	}

	var archiveKey string
	if s.Archive != nil {
		key := fmt.Sprintf("patients/%d/%s/%s", cmd.PatientID, res.ID, name)
		url, err := s.Archive.Upload(ctx, path, key)
		if err != nil {
			return nil, fmt.Errorf("%w: archive scan: %w", failures.ErrPersistence, err)
		}
		res.ImageURL = url
		archiveKey = key
	}

	if err := s.Repo.Save(ctx, res); err != nil {
		if archiveKey != "" {
			if rmErr := s.Archive.Remove(context.WithoutCancel(ctx), archiveKey); rmErr != nil {
				s.Logger.Error("failed to remove archived scan after save error",
					"key", archiveKey, "error", rmErr)
			}
		}
		return nil, fmt.Errorf("%w: save analysis: %w", failures.ErrPersistence, err)
	}

	s.Logger.Info("analysis stored",
		"id", res.ID,
		"patient_id", res.PatientID,
		"doctor_id", res.AnalyzedBy,
		"domain", res.ImageDomain,
		"risk_level", res.RiskLevel,
	)
	return res, nil
}

// Get ambil 1 analysis by id
func (s *Service) Get(ctx context.Context, id domain.AnalysisID) (*domain.Result, error) {
	res, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, storeErr("get analysis", err)
	}
	return res, nil
}

// ListByPatient returns the analyses owned by a patient, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID int64, page, pageSize int) ([]*domain.Result, error) {
	out, err := s.Repo.ListByPatient(ctx, patientID, page, pageSize)
	if err != nil {
		return nil, storeErr("list patient analyses", err)
	}
	return out, nil
}

// ListByDoctor returns the analyses a doctor ordered, newest first.
func (s *Service) ListByDoctor(ctx context.Context, doctorID int64, page, pageSize int) ([]*domain.Result, error) {
	out, err := s.Repo.ListByDoctor(ctx, doctorID, page, pageSize)
	if err != nil {
		return nil, storeErr("list doctor analyses", err)
	}
	return out, nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, failures.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", failures.ErrPersistence, op, err)
}
