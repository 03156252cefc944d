package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"time"
)

const tailChunkSize = 4096

// lastLines locates the last n lines of a file by reading backwards from its
// end. It returns the start offset of each line, last line first, and the
// offset just past the final line's content.
func lastLines(file *os.File, n int) ([]int64, int64, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat dataset file: %w", err)
	}

	buf := make([]byte, tailChunkSize)
	pos := info.Size()

	// trailing newlines do not start a line
	end := int64(-1)
	var starts []int64
	for pos > 0 && len(starts) < n {
		chunkStart := pos - tailChunkSize
		if chunkStart < 0 {
			chunkStart = 0
		}
		chunk := buf[:pos-chunkStart]
		if _, err := file.ReadAt(chunk, chunkStart); err != nil {
			return nil, 0, fmt.Errorf("failed to read dataset file: %w", err)
		}
		for i := len(chunk) - 1; i >= 0; i-- {
			offset := chunkStart + int64(i)
			c := chunk[i]
			if end < 0 {
				if c != '\n' && c != '\r' {
					end = offset + 1
				}
				continue
			}
			if c == '\n' {
				starts = append(starts, offset+1)
				if len(starts) == n {
					break
				}
			}
		}
		pos = chunkStart
	}
	if end < 0 {
		return nil, 0, nil
	}
	if len(starts) < n {
		starts = append(starts, 0)
	}
	return starts, end, nil
}

func readLine(file *os.File, from, to int64) ([]string, error) {
	line := make([]byte, to-from)
	if _, err := file.ReadAt(line, from); err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}
	line = bytes.TrimRight(line, "\r\n")
	record, err := csv.NewReader(bytes.NewReader(line)).Read()
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset row: %w", err)
	}
	return record, nil
}

// ReadLastRow returns the fields of the final row without reading the
// whole file.
func ReadLastRow(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	starts, end, err := lastLines(file, 1)
	if err != nil {
		return nil, err
	}
	if len(starts) == 0 {
		return nil, fmt.Errorf("dataset %s is empty", path)
	}
	return readLine(file, starts[0], end)
}

// LastTimestamp parses the timestamp of the final row
func LastTimestamp(path string, loc *time.Location) (time.Time, error) {
	row, err := ReadLastRow(path)
	if err != nil {
		return time.Time{}, &CorruptDatasetError{Path: path, Err: err}
	}
	ts, err := ParseTimestamp(row[0], loc)
	if err != nil {
		return time.Time{}, &CorruptDatasetError{Path: path, Value: row[0], Err: err}
	}
	return ts, nil
}

// TruncateLastRows removes up to n data rows from the end of the dataset,
// never the header, and returns the timestamp of the first removed row.
func TruncateLastRows(path string, n int, loc *time.Location) (time.Time, int, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	// one extra line tells whether the header is among the last n
	starts, end, err := lastLines(file, n+1)
	if err != nil {
		return time.Time{}, 0, err
	}

	removed := n
	if len(starts) <= n {
		removed = len(starts) - 1
	}
	if removed <= 0 {
		return time.Time{}, 0, &CorruptDatasetError{Path: path, Err: fmt.Errorf("no data rows")}
	}

	cut := starts[removed-1]
	lineEnd := end
	if removed > 1 {
		lineEnd = starts[removed-2]
	}
	row, err := readLine(file, cut, lineEnd)
	if err != nil {
		return time.Time{}, 0, &CorruptDatasetError{Path: path, Err: err}
	}
	first, err := ParseTimestamp(row[0], loc)
	if err != nil {
		return time.Time{}, 0, &CorruptDatasetError{Path: path, Value: row[0], Err: err}
	}

	if err := file.Truncate(cut); err != nil {
		return time.Time{}, 0, fmt.Errorf("failed to truncate dataset file: %w", err)
	}
	return first, removed, file.Close()
}
