package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"defrec/internal/record"
)

// Input flag column; any other column besides description and date is
// ignored on read.
const flagColumn = "Flag"

// Output-only columns appended after the target fields.
const (
	scoreColumn = "Validation Score"
	notesColumn = "Notes"
)

// ReadRows parses a scraper export. The description column is required; the
// contract date and flag columns are optional. Rows without a description
// are skipped.
func ReadRows(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read input header: %w", err)
	}
	descIdx, dateIdx, flagIdx := -1, -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case record.FieldDescription:
			descIdx = i
		case record.FieldContractDate:
			dateIdx = i
		case flagColumn:
			flagIdx = i
		}
	}
	if descIdx < 0 {
		return nil, fmt.Errorf("input file has no %q column", record.FieldDescription)
	}

	cell := func(row []string, idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var rows []Row
	for {
		raw, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read input row: %w", err)
		}
		if cell(raw, descIdx) == "" {
			continue
		}
		rows = append(rows, Row{
			Description:  cell(raw, descIdx),
			ContractDate: cell(raw, dateIdx),
			PreFlag:      cell(raw, flagIdx),
		})
	}
	return rows, nil
}

// WriteRecords exports finished records as CSV: the target fields in
// worksheet order, the validation score, and the degrade notes.
func WriteRecords(path string, records []*record.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := append(append([]string{}, record.TargetFields...), scoreColumn, notesColumn)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write output header: %w", err)
	}

	for _, rec := range records {
		row := make([]string, 0, len(header))
		for _, field := range record.TargetFields {
			row = append(row, rec.Fields[field])
		}
		row = append(row, strconv.FormatFloat(rec.Score, 'f', 2, 64), rec.Annotation)
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write output row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
