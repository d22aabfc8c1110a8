package memory

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// DescriptionColumn is the header the reference file must carry; a file
// without it cannot seed the memory.
const DescriptionColumn = "Description of Contract"

// ReadCSV parses a reference export into examples. Every column other than
// the description is kept as a classification field, so the grounding prompt
// can quote whatever the analyst worksheet carried.
func ReadCSV(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read reference header: %w", err)
	}
	descIdx := -1
	for i, h := range header {
		if strings.TrimSpace(h) == DescriptionColumn {
			descIdx = i
			break
		}
	}
	if descIdx < 0 {
		return nil, fmt.Errorf("reference file has no %q column", DescriptionColumn)
	}

	var examples []Example
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read reference row: %w", err)
		}
		if descIdx >= len(row) || strings.TrimSpace(row[descIdx]) == "" {
			continue
		}
		ex := Example{
			Description: strings.TrimSpace(row[descIdx]),
			Fields:      make(map[string]string),
		}
		for i, v := range row {
			if i == descIdx || i >= len(header) {
				continue
			}
			if v = strings.TrimSpace(v); v != "" {
				ex.Fields[strings.TrimSpace(header[i])] = v
			}
		}
		examples = append(examples, ex)
	}
	return examples, nil
}
