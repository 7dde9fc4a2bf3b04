package analysis

import "context"

// Repository port for persisting and querying analysis results
type Repository interface {
	Save(ctx context.Context, r *Result) error
	Get(ctx context.Context, id AnalysisID) (*Result, error)
	ListByPatient(ctx context.Context, patientID int64, page, pageSize int) ([]*Result, error)
	ListByDoctor(ctx context.Context, doctorID int64, page, pageSize int) ([]*Result, error)
}

// Classifier runs the pre-trained model of a domain on an encoded image and
// returns a confidence in [0,1].
type Classifier interface {
	Classify(ctx context.Context, image []byte, domain ImageDomain) (float64, error)
}

// DomainDetector decides which classifier an upload belongs to.
type DomainDetector interface {
	Detect(filename string, explicit ImageDomain) (ImageDomain, error)
}

// ImageArchive keeps a copy of analysed scans outside the scratch directory.
type ImageArchive interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
	Remove(ctx context.Context, key string) error
}
