package table

import (
	"fmt"
	"math"
	"time"
)

// Frame is an hourly, time-indexed table of float64 columns.
// Undefined values are stored as NaN.
type Frame struct {
	Index   []time.Time
	order   []string
	columns map[string][]float64
}

// HourlyIndex returns every whole hour from start to end inclusive.
func HourlyIndex(start, end time.Time) []time.Time {
	start = TruncateHour(start)
	end = TruncateHour(end)
	if end.Before(start) {
		return nil
	}
	n := int(end.Sub(start)/time.Hour) + 1
	index := make([]time.Time, 0, n)
	for t := start; !t.After(end); t = t.Add(time.Hour) {
		index = append(index, t)
	}
	return index
}

// TruncateHour zeroes minutes, seconds and nanoseconds in t's own location.
func TruncateHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// TruncateDay returns midnight of t's calendar day in t's location.
func TruncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NewFrame creates an empty frame over the given index.
func NewFrame(index []time.Time) *Frame {
	return &Frame{
		Index:   index,
		columns: make(map[string][]float64),
	}
}

// NewHourlyFrame creates an empty frame spanning [start, end] hourly.
func NewHourlyFrame(start, end time.Time) *Frame {
	return NewFrame(HourlyIndex(start, end))
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Index)
}

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Has reports whether the frame contains the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// Column returns the named column, or nil when absent.
func (f *Frame) Column(name string) []float64 {
	return f.columns[name]
}

// Set adds or replaces a column. The values must match the index length.
func (f *Frame) Set(name string, values []float64) error {
	if len(values) != len(f.Index) {
		return fmt.Errorf("column %s has %d values, index has %d rows", name, len(values), len(f.Index))
	}
	if _, ok := f.columns[name]; !ok {
		f.order = append(f.order, name)
	}
	f.columns[name] = values
	return nil
}

// AddEmpty adds a column filled with NaN.
func (f *Frame) AddEmpty(name string) []float64 {
	values := NaNs(len(f.Index))
	f.Set(name, values)
	return values
}

// Drop removes the named columns if present.
func (f *Frame) Drop(names ...string) {
	for _, name := range names {
		if _, ok := f.columns[name]; !ok {
			continue
		}
		delete(f.columns, name)
		for i, n := range f.order {
			if n == name {
				f.order = append(f.order[:i], f.order[i+1:]...)
				break
			}
		}
	}
}

// Row returns the position of t in the index, or -1.
func (f *Frame) Row(t time.Time) int {
	if len(f.Index) == 0 {
		return -1
	}
	offset := t.Sub(f.Index[0])
	if offset < 0 || offset%time.Hour != 0 {
		return -1
	}
	i := int(offset / time.Hour)
	if i >= len(f.Index) || !f.Index[i].Equal(t) {
		return -1
	}
	return i
}

// SameIndex reports whether both frames have identical timestamps.
func (f *Frame) SameIndex(other *Frame) bool {
	if len(f.Index) != len(other.Index) {
		return false
	}
	for i := range f.Index {
		if !f.Index[i].Equal(other.Index[i]) {
			return false
		}
	}
	return true
}

// Join copies every column of other onto f, aligning rows by timestamp.
// Rows of f missing from other are NaN.
func (f *Frame) Join(other *Frame) {
	for _, name := range other.order {
		src := other.columns[name]
		dst := NaNs(len(f.Index))
		for i, t := range other.Index {
			if row := f.Row(t); row >= 0 {
				dst[row] = src[i]
			}
		}
		f.Set(name, dst)
	}
}

// NaNs returns a slice of n NaN values.
func NaNs(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = math.NaN()
	}
	return values
}
