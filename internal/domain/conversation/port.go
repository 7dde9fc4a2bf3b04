package conversation

import (
	"context"
	"io"
)

// Repository port for the append-only turn log
type Repository interface {
	Save(ctx context.Context, t *Turn) error
	// History returns at most limit turns of the user, newest first.
	History(ctx context.Context, userID int64, limit int) ([]*Turn, error)
}

// Extractor turns an attachment into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ExtractorSet resolves an extractor from a file extension such as ".pdf".
type ExtractorSet interface {
	For(ext string) (Extractor, bool)
}

// Attachment is an uploaded chat file.
type Attachment struct {
	Name string
	Body io.Reader
}
