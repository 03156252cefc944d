package pipeline

import (
	"fmt"
	"os"
	"time"
)

const rangeLayout = "2006-01-02 15:04"

// InvalidRangeError is returned when a run ends before it starts
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: end %s is before start %s",
		e.End.Format(rangeLayout), e.Start.Format(rangeLayout))
}

// FileNotFoundError is returned when an append or update targets a missing
// dataset. It matches os.ErrNotExist.
type FileNotFoundError struct {
	Path string
	Err  error
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("dataset file %s not found", e.Path)
}

func (e *FileNotFoundError) Unwrap() error {
	if e.Err == nil {
		return os.ErrNotExist
	}
	return e.Err
}

// checkExists returns a FileNotFoundError for a missing path
func checkExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &FileNotFoundError{Path: path, Err: err}
		}
		return fmt.Errorf("failed to stat dataset file: %w", err)
	}
	return nil
}
