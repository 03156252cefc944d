package dataset

import (
	"fmt"
	"time"
)

// TimeLayout is how timestamps are written to the first column
const TimeLayout = "2006-01-02 15:04:05"

// IndexColumn is the header name of the timestamp column
const IndexColumn = "date"

var parseLayouts = []string{
	TimeLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// CorruptDatasetError reports a dataset whose rows cannot be read back
type CorruptDatasetError struct {
	Path  string
	Value string
	Err   error
}

func (e *CorruptDatasetError) Error() string {
	if e.Value == "" && e.Err != nil {
		return fmt.Sprintf("corrupt dataset %s: %v", e.Path, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("corrupt dataset %s: cannot parse timestamp %q: %v", e.Path, e.Value, e.Err)
	}
	return fmt.Sprintf("corrupt dataset %s: cannot parse timestamp %q", e.Path, e.Value)
}

func (e *CorruptDatasetError) Unwrap() error {
	return e.Err
}

// ParseTimestamp parses a dataset timestamp in loc
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	var lastErr error
	for _, layout := range parseLayouts {
		ts, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
