package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/rojenarda/electricity-data-fetching-tr/internal/table"
)

// ReadFrame loads the whole dataset. Empty or unparsable cells are NaN.
func ReadFrame(path string, loc *time.Location) (*table.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(bufio.NewReader(file))
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}
	columns := append([]string(nil), header[1:]...)

	var index []time.Time
	values := make([][]float64, len(columns))
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset record: %w", err)
		}

		ts, err := ParseTimestamp(record[0], loc)
		if err != nil {
			return nil, &CorruptDatasetError{Path: path, Value: record[0], Err: err}
		}
		index = append(index, ts)
		for i := range columns {
			values[i] = append(values[i], parseFloatOrNaN(record, i+1))
		}
	}

	frame := table.NewFrame(index)
	for i, c := range columns {
		if values[i] == nil {
			values[i] = []float64{}
		}
		if err := frame.Set(c, values[i]); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

func parseFloatOrNaN(record []string, i int) float64 {
	if i >= len(record) || record[i] == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(record[i], 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
