package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rojenarda/electricity-data-fetching-tr/internal/dataset"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/merge"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/recorder"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/table"
)

var istanbul = time.FixedZone("+03", 3*60*60)

func day(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, istanbul)
}

// fakeMerger returns a single column holding each row's unix hour.
type fakeMerger struct {
	calls  []Window
	failAt int
	cancel context.CancelFunc
}

func (m *fakeMerger) Merge(_ context.Context, _ merge.FactorResolver, start, end time.Time) (*table.Frame, error) {
	m.calls = append(m.calls, Window{Start: start, End: end})
	if m.failAt > 0 && len(m.calls) == m.failAt {
		return nil, merge.ErrEmptyMerge
	}
	if m.cancel != nil {
		m.cancel()
	}
	frame := table.NewHourlyFrame(start, end)
	values := make([]float64, frame.Len())
	for i, ts := range frame.Index {
		values[i] = float64(ts.Unix() / 3600)
	}
	if err := frame.Set("Price", values); err != nil {
		return nil, err
	}
	return frame, nil
}

type memRecorder struct {
	recorder.NoopRecorder
	windows []*recorder.WindowEvent
	results []*recorder.RunResult
}

func (r *memRecorder) RecordWindow(evt *recorder.WindowEvent) error {
	r.windows = append(r.windows, evt)
	return nil
}

func (r *memRecorder) FinishRun(_ string, result *recorder.RunResult) error {
	r.results = append(r.results, result)
	return nil
}

// readTimestamps returns the timestamp column of a dataset
func readTimestamps(t *testing.T, path string) []time.Time {
	t.Helper()
	frame, err := dataset.ReadFrame(path, istanbul)
	if err != nil {
		t.Fatalf("ReadFrame error = %v", err)
	}
	return frame.Index
}

func assertContiguous(t *testing.T, index []time.Time, first, last time.Time) {
	t.Helper()
	if len(index) == 0 {
		t.Fatal("dataset is empty")
	}
	if !index[0].Equal(first) {
		t.Errorf("first row = %v, want %v", index[0], first)
	}
	if !index[len(index)-1].Equal(last) {
		t.Errorf("last row = %v, want %v", index[len(index)-1], last)
	}
	for i := 1; i < len(index); i++ {
		if d := index[i].Sub(index[i-1]); d != time.Hour {
			t.Fatalf("rows %d and %d are %v apart", i-1, i, d)
		}
	}
}

func TestSplitWindowsSevenYears(t *testing.T) {
	start := day(2015, 1, 1, 0)
	end := day(2021, 12, 31, 23)

	windows := SplitWindows(start, end, DefaultWindowSpan)
	if len(windows) != 3 {
		t.Fatalf("got %d windows, want 3", len(windows))
	}
	if !windows[0].Start.Equal(start) || !windows[len(windows)-1].End.Equal(end) {
		t.Errorf("windows do not cover the range: %v", windows)
	}
	for i, w := range windows {
		if w.End.Sub(w.Start) > DefaultWindowSpan {
			t.Errorf("window %d spans %v", i, w.End.Sub(w.Start))
		}
		if i == 0 {
			continue
		}
		if got := w.Start.Sub(windows[i-1].End); got != time.Hour {
			t.Errorf("window %d starts %v after the previous end", i, got)
		}
		if w.Start.Hour() != 0 || windows[i-1].End.Hour() != 23 {
			t.Errorf("window %d boundary %v / %v is not a day boundary", i, windows[i-1].End, w.Start)
		}
	}
}

func TestSplitWindowsShortRange(t *testing.T) {
	start := day(2024, 1, 1, 0)
	end := day(2024, 1, 5, 23)
	windows := SplitWindows(start, end, DefaultWindowSpan)
	if len(windows) != 1 || !windows[0].Start.Equal(start) || !windows[0].End.Equal(end) {
		t.Errorf("windows = %v, want the range itself", windows)
	}
	if got := SplitWindows(end, start, DefaultWindowSpan); got != nil {
		t.Errorf("reversed range gave %v", got)
	}
}

func TestRunAcrossWindows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	merger := &fakeMerger{}
	rec := &memRecorder{}
	p := New(merger, dataset.CSVWriter{}, istanbul, WithWindowSpan(48*time.Hour), WithRecorder(rec))

	start, end := day(2024, 1, 1, 0), day(2024, 1, 7, 23)
	if err := p.Run(context.Background(), start, end, path, false); err != nil {
		t.Fatalf("Run error = %v", err)
	}

	if len(merger.calls) != 4 {
		t.Errorf("merged %d windows, want 4", len(merger.calls))
	}
	assertContiguous(t, readTimestamps(t, path), start, end)

	if len(rec.windows) != 4 || len(rec.results) != 1 {
		t.Fatalf("recorded %d windows and %d results", len(rec.windows), len(rec.results))
	}
	if got := rec.results[0]; got.Status != recorder.StatusSucceeded || got.Rows != 7*24 {
		t.Errorf("result = %+v", got)
	}

	header, err := dataset.ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader error = %v", err)
	}
	if strings.Join(header, ",") != "date,Price" {
		t.Errorf("header = %v", header)
	}
}

func TestRunRejectsInvalidRange(t *testing.T) {
	merger := &fakeMerger{}
	p := New(merger, dataset.CSVWriter{}, istanbul)

	err := p.Run(context.Background(), day(2024, 1, 2, 0), day(2024, 1, 1, 0), filepath.Join(t.TempDir(), "x.csv"), false)
	var invalid *InvalidRangeError
	if !errors.As(err, &invalid) {
		t.Fatalf("Run error = %v, want InvalidRangeError", err)
	}
	if len(merger.calls) != 0 {
		t.Error("no window should be fetched for an invalid range")
	}
}

func TestRunAppendToMissingFile(t *testing.T) {
	merger := &fakeMerger{}
	p := New(merger, dataset.CSVWriter{}, istanbul)

	err := p.Run(context.Background(), day(2024, 1, 1, 0), day(2024, 1, 1, 23), filepath.Join(t.TempDir(), "missing.csv"), true)
	var notFound *FileNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Run error = %v, want FileNotFoundError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("FileNotFoundError should match os.ErrNotExist")
	}
	if len(merger.calls) != 0 {
		t.Error("no window should be fetched when the target is missing")
	}
}

func TestRunStopsOnFailedWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	merger := &fakeMerger{failAt: 2}
	rec := &memRecorder{}
	p := New(merger, dataset.CSVWriter{}, istanbul, WithWindowSpan(24*time.Hour), WithRecorder(rec))

	err := p.Run(context.Background(), day(2024, 1, 1, 0), day(2024, 1, 3, 23), path, false)
	if !errors.Is(err, merge.ErrEmptyMerge) {
		t.Fatalf("Run error = %v, want ErrEmptyMerge", err)
	}
	if len(merger.calls) != 2 {
		t.Errorf("merged %d windows, want 2", len(merger.calls))
	}
	assertContiguous(t, readTimestamps(t, path), day(2024, 1, 1, 0), day(2024, 1, 1, 23))
	if got := rec.results[0].Status; got != recorder.StatusFailed {
		t.Errorf("status = %s, want %s", got, recorder.StatusFailed)
	}
}

func TestRunChecksContextBetweenWindows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	merger := &fakeMerger{cancel: cancel}
	rec := &memRecorder{}
	p := New(merger, dataset.CSVWriter{}, istanbul, WithWindowSpan(24*time.Hour), WithRecorder(rec))

	err := p.Run(ctx, day(2024, 1, 1, 0), day(2024, 1, 3, 23), path, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	// the window in progress still completes
	assertContiguous(t, readTimestamps(t, path), day(2024, 1, 1, 0), day(2024, 1, 1, 23))
	if got := rec.results[0].Status; got != recorder.StatusCancelled {
		t.Errorf("status = %s, want %s", got, recorder.StatusCancelled)
	}
}

func TestRunExportsParquet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	p := New(&fakeMerger{}, dataset.CSVWriter{}, istanbul, WithParquetExport(filepath.Join(dir, "parquet")))

	if err := p.Run(context.Background(), day(2024, 1, 1, 0), day(2024, 1, 1, 23), path, false); err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "parquet", "data_2024-01.parquet")); err != nil {
		t.Errorf("parquet file missing: %v", err)
	}
}
