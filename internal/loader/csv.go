package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// parseCSV emits one document per data row, rendered as "header: value"
// lines so column meaning survives embedding.
func (l *Loader) parseCSV(_ context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	var segments []string
	for _, row := range rows[1:] {
		var b strings.Builder
		for i, field := range row {
			if i > 0 {
				b.WriteByte('\n')
			}
			name := fmt.Sprintf("column_%d", i+1)
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				name = strings.TrimSpace(header[i])
			}
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(strings.TrimSpace(field))
		}
		segments = append(segments, b.String())
	}
	return segments, nil
}
