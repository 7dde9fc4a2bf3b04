package failures

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Callers wrap these with fmt.Errorf("...: %w", Err...)
// and match with errors.Is.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnsupportedFileType = fmt.Errorf("%w: unsupported file type", ErrInvalidInput)
	ErrUnknownDomain       = errors.New("could not determine image domain")
	ErrModelUnavailable    = errors.New("model unavailable")
	ErrExternalService     = errors.New("external service failed")
	ErrPersistence         = errors.New("persistence failed")
	ErrNotFound            = errors.New("not found")
)

// Kind is the stable, machine readable name of an error category.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindUnsupportedFileType Kind = "unsupported_file_type"
	KindUnknownDomain       Kind = "unknown_domain"
	KindModelUnavailable    Kind = "model_unavailable"
	KindExternalService     Kind = "external_service"
	KindPersistence         Kind = "persistence"
	KindNotFound            Kind = "not_found"
	KindInternal            Kind = "internal"
)

// KindOf reports the category of err. Unsupported file type is checked
// before invalid input since it wraps it.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedFileType):
		return KindUnsupportedFileType
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrUnknownDomain):
		return KindUnknownDomain
	case errors.Is(err, ErrModelUnavailable):
		return KindModelUnavailable
	case errors.Is(err, ErrExternalService):
		return KindExternalService
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
