package failures

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"invalid input", fmt.Errorf("empty body: %w", ErrInvalidInput), KindInvalidInput},
		{"unsupported type wins over invalid input", fmt.Errorf(".xyz: %w", ErrUnsupportedFileType), KindUnsupportedFileType},
		{"unknown domain", ErrUnknownDomain, KindUnknownDomain},
		{"model", fmt.Errorf("lung: %w", ErrModelUnavailable), KindModelUnavailable},
		{"external", fmt.Errorf("%w: timeout", ErrExternalService), KindExternalService},
		{"persistence", fmt.Errorf("save turn: %w", ErrPersistence), KindPersistence},
		{"not found", ErrNotFound, KindNotFound},
		{"anything else", context.Canceled, KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestUnsupportedFileTypeIsInvalidInput(t *testing.T) {
	assert.ErrorIs(t, fmt.Errorf("upload: %w", ErrUnsupportedFileType), ErrInvalidInput)
}
