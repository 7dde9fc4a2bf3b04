// Package extract pulls plain text out of chat attachments.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/bryanwahyu/healthwave/internal/domain/conversation"
)

// MaxTextBytes caps what a single extractor accumulates in memory.
const MaxTextBytes = 8 << 20

var ErrTooMuchText = errors.New("document holds too much text")

// Registry maps lower-case extensions to extractors.
type Registry map[string]conversation.Extractor

// Default knows .pdf, .doc, .docx and .txt. A .doc is read as Office Open
// XML, which covers the common case of renamed .docx files; legacy binary
// .doc content fails extraction and surfaces as invalid input.
func Default() Registry {
	return Registry{
		".pdf":  PDF{},
		".doc":  Word{},
		".docx": Word{},
		".txt":  Text{},
	}
}

func (r Registry) For(ext string) (conversation.Extractor, bool) {
	e, ok := r[strings.ToLower(ext)]
	return e, ok
}

// Text reads the file as UTF-8.
type Text struct{}

func (Text) Extract(_ context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("text file is not valid UTF-8")
	}
	return string(b), nil
}
