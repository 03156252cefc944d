package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rojenarda/electricity-data-fetching-tr/internal/table"
)

// CSVWriter persists merged frames as comma-separated rows
type CSVWriter struct{}

// Create writes the header and every row of frame to path, replacing any
// existing file.
func (CSVWriter) Create(path string, frame *table.Frame) (int, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create dataset directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create dataset file: %w", err)
	}
	defer file.Close()

	columns := frame.Columns()
	w := csv.NewWriter(file)
	if err := w.Write(append([]string{IndexColumn}, columns...)); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	n, err := writeRows(w, frame, columns)
	if err != nil {
		return n, err
	}

	log.Printf("Saved %d rows to %s", n, path)
	return n, file.Close()
}

// Append writes the rows of frame to the end of an existing dataset without
// a header, in the column order of the file's header. Columns the header
// does not know are dropped.
func (CSVWriter) Append(path string, frame *table.Frame) (int, error) {
	header, err := ReadHeader(path)
	if err != nil {
		return 0, err
	}
	columns := header[1:]
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
		if !frame.Has(c) {
			log.Printf("Warning: column %s missing from new rows, writing empty values", c)
		}
	}
	for _, c := range frame.Columns() {
		if !known[c] {
			log.Printf("Warning: column %s is not in the header of %s, dropping it", c, path)
		}
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	if err := terminateLastLine(file); err != nil {
		return 0, err
	}

	w := csv.NewWriter(file)
	n, err := writeRows(w, frame, columns)
	if err != nil {
		return n, err
	}

	log.Printf("Appended %d rows to %s", n, path)
	return n, file.Close()
}

func writeRows(w *csv.Writer, frame *table.Frame, columns []string) (int, error) {
	values := make([][]float64, len(columns))
	for i, c := range columns {
		values[i] = frame.Column(c)
	}

	record := make([]string, len(columns)+1)
	for row, ts := range frame.Index {
		record[0] = ts.Format(TimeLayout)
		for i := range columns {
			if values[i] == nil {
				record[i+1] = ""
				continue
			}
			record[i+1] = formatValue(values[i][row])
		}
		if err := w.Write(record); err != nil {
			return row, fmt.Errorf("failed to write data: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("failed to write data: %w", err)
	}
	return frame.Len(), nil
}

func formatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// terminateLastLine adds a newline when the file does not end with one
func terminateLastLine(file *os.File) error {
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat dataset file: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, info.Size()-1); err != nil {
		return fmt.Errorf("failed to read dataset file: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = file.Write([]byte("\n"))
	return err
}

// ReadHeader returns the first row of the dataset
func ReadHeader(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	header, err := csv.NewReader(bufio.NewReader(file)).Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}
	if len(header) == 0 || header[0] != IndexColumn {
		return nil, fmt.Errorf("dataset %s has no %q header column", path, IndexColumn)
	}
	return header, nil
}
