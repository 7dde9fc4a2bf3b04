package extract

import (
	"archive/zip"
	"context"
	"fmt"
	"strings"

	"baliance.com/gooxml/document"
)

// maxUnpackedBytes bounds the inflated size of every part of a .docx.
// archive/zip refuses entries that inflate past their declared size, so the
// header sum is a hard limit.
const maxUnpackedBytes = 64 << 20

// Word reads the paragraphs of an Office Open XML (.docx) document, one per
// line.
type Word struct{}

func (Word) Extract(ctx context.Context, path string) (string, error) {
	if err := checkUnpackedSize(path, maxUnpackedBytes); err != nil {
		return "", err
	}

	doc, err := document.Open(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	var sb strings.Builder
	for _, p := range doc.Paragraphs() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		for _, r := range p.Runs() {
			sb.WriteString(r.Text())
		}
		sb.WriteByte('\n')
		if sb.Len() > MaxTextBytes {
			return "", fmt.Errorf("%w: more than %d bytes", ErrTooMuchText, MaxTextBytes)
		}
	}
	return sb.String(), nil
}

func checkUnpackedSize(path string, limit uint64) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("not a docx archive: %w", err)
	}
	defer zr.Close()

	var total uint64
	for _, f := range zr.File {
		total += f.UncompressedSize64
		if total > limit {
			return fmt.Errorf("%w: docx unpacks past %d bytes", ErrTooMuchText, limit)
		}
	}
	return nil
}
