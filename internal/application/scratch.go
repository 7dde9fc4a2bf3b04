package application

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/bryanwahyu/healthwave/internal/domain/failures"
)

const maxFilenameLen = 200

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces an uploaded name to a safe base name: directory
// components and traversal are dropped, whitespace becomes "_", and only
// ASCII letters, digits, "_", "." and "-" survive. It returns "" when nothing
// usable is left.
func SanitizeFilename(name string) string {
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	if len(name) > maxFilenameLen {
		ext := filepath.Ext(name)
		if len(ext) >= maxFilenameLen {
			ext = ""
		}
		name = name[:maxFilenameLen-len(ext)] + ext
	}
	return name
}

// Scratch hands out uniquely named files in one directory. Each file belongs
// to a single pipeline call and is deleted by the release func returned with it.
type Scratch struct {
	Dir    string
	Logger *slog.Logger
}

func NewScratch(dir string, logger *slog.Logger) (*Scratch, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scratch{Dir: dir, Logger: logger}, nil
}

// Write copies r into <dir>/<uuid>-<name>. A positive maxBytes caps the
// content size. release is idempotent and must be deferred by the caller.
func (s *Scratch) Write(name string, r io.Reader, maxBytes int64) (path string, release func(), err error) {
	path = filepath.Join(s.Dir, uuid.NewString()+"-"+name)
	release = func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.Logger.Warn("failed to remove scratch file", "path", path, "error", rmErr)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", func() {}, fmt.Errorf("create scratch file: %w", err)
	}

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		release()
		return "", func() {}, fmt.Errorf("write scratch file: %w", err)
	}
	if maxBytes > 0 && n > maxBytes {
		release()
		return "", func() {}, fmt.Errorf("%w: file exceeds %d bytes", failures.ErrInvalidInput, maxBytes)
	}
	if n == 0 {
		release()
		return "", func() {}, fmt.Errorf("%w: empty file", failures.ErrInvalidInput)
	}
	return path, release, nil
}
