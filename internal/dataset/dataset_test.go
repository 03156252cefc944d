package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rojenarda/electricity-data-fetching-tr/internal/table"
)

var istanbul = time.FixedZone("+03", 3*60*60)

func hourlyFrame(t *testing.T, start time.Time, hours int, cols ...string) *table.Frame {
	t.Helper()
	frame := table.NewHourlyFrame(start, start.Add(time.Duration(hours-1)*time.Hour))
	for ci, c := range cols {
		values := make([]float64, hours)
		for i := range values {
			values[i] = float64(ci*1000 + i)
		}
		if err := frame.Set(c, values); err != nil {
			t.Fatalf("Set(%s) error = %v", c, err)
		}
	}
	return frame
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error = %v", err)
	}
	return strings.Split(strings.TrimRight(string(b), "\n"), "\n")
}

func TestCreateWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.csv")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, istanbul)
	frame := hourlyFrame(t, start, 3, "Price", "Hour")
	frame.Column("Price")[1] = math.NaN()

	n, err := CSVWriter{}.Create(path, frame)
	if err != nil {
		t.Fatalf("Create error = %v", err)
	}
	if n != 3 {
		t.Errorf("Create wrote %d rows, want 3", n)
	}

	lines := readLines(t, path)
	want := []string{
		"date,Price,Hour",
		"2024-01-01 00:00:00,0,1000",
		"2024-01-01 01:00:00,,1001",
		"2024-01-01 02:00:00,2,1002",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestAppendFollowsHeaderOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, istanbul)
	if _, err := (CSVWriter{}).Create(path, hourlyFrame(t, start, 2, "A", "B")); err != nil {
		t.Fatalf("Create error = %v", err)
	}

	next := table.NewHourlyFrame(start.Add(2*time.Hour), start.Add(2*time.Hour))
	_ = next.Set("C", []float64{9})
	_ = next.Set("A", []float64{7})

	n, err := CSVWriter{}.Append(path, next)
	if err != nil {
		t.Fatalf("Append error = %v", err)
	}
	if n != 1 {
		t.Errorf("Append wrote %d rows, want 1", n)
	}

	lines := readLines(t, path)
	if got := lines[0]; got != "date,A,B" {
		t.Errorf("header = %q, header must not change", got)
	}
	if got := lines[len(lines)-1]; got != "2024-01-01 02:00:00,7," {
		t.Errorf("appended row = %q, want %q", got, "2024-01-01 02:00:00,7,")
	}
}

func TestAppendTerminatesUnfinishedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	content := "date,A\n2024-01-01 00:00:00,1"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	frame := table.NewHourlyFrame(time.Date(2024, 1, 1, 1, 0, 0, 0, istanbul), time.Date(2024, 1, 1, 1, 0, 0, 0, istanbul))
	_ = frame.Set("A", []float64{2})

	if _, err := (CSVWriter{}).Append(path, frame); err != nil {
		t.Fatalf("Append error = %v", err)
	}
	lines := readLines(t, path)
	if len(lines) != 3 || lines[2] != "2024-01-01 01:00:00,2" {
		t.Errorf("lines = %v", lines)
	}
}

func TestReadHeaderRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.csv")
	if err := os.WriteFile(path, []byte("time,A\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadHeader(path); err == nil {
		t.Error("ReadHeader should reject a file without a date column")
	}
}

func TestLastTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, istanbul)
	if _, err := (CSVWriter{}).Create(path, hourlyFrame(t, start, 300, "A")); err != nil {
		t.Fatalf("Create error = %v", err)
	}

	last, err := LastTimestamp(path, istanbul)
	if err != nil {
		t.Fatalf("LastTimestamp error = %v", err)
	}
	want := start.Add(299 * time.Hour)
	if !last.Equal(want) {
		t.Errorf("LastTimestamp = %v, want %v", last, want)
	}
}

func TestLastTimestampCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte("date,A\nyesterday,1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LastTimestamp(path, istanbul)
	var corrupt *CorruptDatasetError
	if !errors.As(err, &corrupt) {
		t.Fatalf("LastTimestamp error = %v, want CorruptDatasetError", err)
	}
	if corrupt.Value != "yesterday" {
		t.Errorf("corrupt value = %q, want %q", corrupt.Value, "yesterday")
	}
}

func TestTruncateLastRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, istanbul)
	if _, err := (CSVWriter{}).Create(path, hourlyFrame(t, start, 72, "A")); err != nil {
		t.Fatalf("Create error = %v", err)
	}

	first, removed, err := TruncateLastRows(path, 24, istanbul)
	if err != nil {
		t.Fatalf("TruncateLastRows error = %v", err)
	}
	if removed != 24 {
		t.Errorf("removed = %d, want 24", removed)
	}
	if want := start.Add(48 * time.Hour); !first.Equal(want) {
		t.Errorf("first removed = %v, want %v", first, want)
	}

	last, err := LastTimestamp(path, istanbul)
	if err != nil {
		t.Fatalf("LastTimestamp error = %v", err)
	}
	if want := start.Add(47 * time.Hour); !last.Equal(want) {
		t.Errorf("last after truncate = %v, want %v", last, want)
	}
	if lines := readLines(t, path); len(lines) != 49 {
		t.Errorf("got %d lines after truncate, want 49", len(lines))
	}
}

func TestTruncateLastRowsKeepsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, istanbul)
	if _, err := (CSVWriter{}).Create(path, hourlyFrame(t, start, 5, "A")); err != nil {
		t.Fatalf("Create error = %v", err)
	}

	first, removed, err := TruncateLastRows(path, 24, istanbul)
	if err != nil {
		t.Fatalf("TruncateLastRows error = %v", err)
	}
	if removed != 5 {
		t.Errorf("removed = %d, want 5", removed)
	}
	if !first.Equal(start) {
		t.Errorf("first removed = %v, want %v", first, start)
	}
	lines := readLines(t, path)
	if len(lines) != 1 || lines[0] != "date,A" {
		t.Errorf("lines after truncate = %v, want only the header", lines)
	}

	if _, _, err := TruncateLastRows(path, 24, istanbul); err == nil {
		t.Error("truncating a header-only dataset should fail")
	}
}

func TestReadFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	content := "date,A,B\n2024-01-01 00:00:00,1,\n2024-01-01 01:00:00,2.5,3\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	frame, err := ReadFrame(path, istanbul)
	if err != nil {
		t.Fatalf("ReadFrame error = %v", err)
	}
	if frame.Len() != 2 {
		t.Fatalf("Len = %d, want 2", frame.Len())
	}
	if got := frame.Columns(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("Columns = %v, want [A B]", got)
	}
	if !math.IsNaN(frame.Column("B")[0]) {
		t.Errorf("empty cell = %v, want NaN", frame.Column("B")[0])
	}
	if got := frame.Column("A")[1]; got != 2.5 {
		t.Errorf("A[1] = %v, want 2.5", got)
	}
	if want := time.Date(2024, 1, 1, 1, 0, 0, 0, istanbul); !frame.Index[1].Equal(want) {
		t.Errorf("Index[1] = %v, want %v", frame.Index[1], want)
	}
}

func TestExportParquetSplitsByMonth(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	start := time.Date(2024, 1, 31, 20, 0, 0, 0, istanbul)
	if _, err := (CSVWriter{}).Create(path, hourlyFrame(t, start, 8, "Price")); err != nil {
		t.Fatalf("Create error = %v", err)
	}

	files, err := ExportParquet(path, filepath.Join(dir, "parquet"), istanbul)
	if err != nil {
		t.Fatalf("ExportParquet error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("ExportParquet wrote %d files, want 2: %v", len(files), files)
	}
	if !strings.HasSuffix(files[0], "data_2024-01.parquet") || !strings.HasSuffix(files[1], "data_2024-02.parquet") {
		t.Errorf("files = %v", files)
	}
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			t.Fatalf("Stat(%s) error = %v", f, err)
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", f)
		}
	}
}

func TestParquetSchemaRejectsBadNames(t *testing.T) {
	if _, err := parquetSchema([]string{"bad name"}); err == nil {
		t.Error("parquetSchema should reject names with spaces")
	}
}
