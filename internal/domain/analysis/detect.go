package analysis

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/healthwave/internal/domain/failures"
)

// FilenameDetector picks the domain from keywords in the upload name. It is a
// heuristic, so an explicitly requested domain always wins.
type FilenameDetector struct{}

var keywords = []struct {
	domain ImageDomain
	words  []string
}{
	{DomainLung, []string{"lung", "chest"}},
	{DomainBrain, []string{"brain", "mri"}},
}

func (FilenameDetector) Detect(filename string, explicit ImageDomain) (ImageDomain, error) {
	if explicit != "" {
		d := ImageDomain(strings.ToLower(string(explicit)))
		if !d.Valid() {
			return "", fmt.Errorf("%w: unknown domain %q", failures.ErrUnknownDomain, explicit)
		}
		return d, nil
	}

	lower := strings.ToLower(filename)
	for _, k := range keywords {
		for _, w := range k.words {
			if strings.Contains(lower, w) {
				return k.domain, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q", failures.ErrUnknownDomain, filename)
}
