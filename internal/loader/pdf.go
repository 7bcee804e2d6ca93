package loader

import (
	"context"
	"fmt"
	"strings"
)

// pdfCommand is the poppler text extractor. "-" sends the text to stdout.
const pdfCommand = "pdftotext"

// parsePDF shells out to pdftotext via the command runner. Layout mode
// keeps columns readable; page breaks (form feeds) become paragraph
// breaks so the chunker can prefer them as boundaries.
func (l *Loader) parsePDF(ctx context.Context, path string) ([]string, error) {
	out, err := l.runner.Run(ctx, pdfCommand, "-layout", path, "-")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pdfCommand, err)
	}

	text := strings.ReplaceAll(string(out), "\f", "\n\n")
	return []string{text}, nil
}
