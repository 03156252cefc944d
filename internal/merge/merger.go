package merge

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/rojenarda/electricity-data-fetching-tr/internal/holiday"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/metrics"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/series"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/table"
)

// ErrEmptyMerge is returned when every series of a window failed
var ErrEmptyMerge = errors.New("no series could be fetched for the window")

// Calendar column names
const (
	ColumnDay     = "Day"
	ColumnMonth   = "Month"
	ColumnYear    = "Year"
	ColumnHour    = "Hour"
	ColumnWeekday = "Weekday"
	ColumnHoliday = "Holiday"
	ColumnMod168  = "Mod168"
)

// FactorResolver turns two parallel price columns into conversion factors
type FactorResolver interface {
	Resolve(ctx context.Context, index []time.Time, base, target []float64) []float64
}

// Currency names the columns taking part in currency normalisation. The
// factor Target/Base is applied to every Convert column, then Base is dropped.
type Currency struct {
	Base    string
	Target  string
	Convert []string
}

// Merger joins the configured series into one hourly table
type Merger struct {
	fetchers []series.Fetcher
	holidays holiday.Calendar
	currency Currency
}

// NewMerger creates a merger over fetchers
func NewMerger(fetchers []series.Fetcher, holidays holiday.Calendar, currency Currency) *Merger {
	return &Merger{
		fetchers: fetchers,
		holidays: holidays,
		currency: currency,
	}
}

// Columns returns the column layout Merge produces
func (m *Merger) Columns() []string {
	var cols []string
	for _, f := range m.fetchers {
		for _, c := range f.Columns() {
			if c != m.currency.Base {
				cols = append(cols, c)
			}
		}
	}
	return append(cols, ColumnDay, ColumnMonth, ColumnYear, ColumnHour, ColumnWeekday, ColumnHoliday, ColumnMod168)
}

// Merge fetches every series for [start, end] and builds the merged table.
// A series that fails is logged and left undefined.
func (m *Merger) Merge(ctx context.Context, resolver FactorResolver, start, end time.Time) (*table.Frame, error) {
	frame := table.NewHourlyFrame(start, end)

	fetched := 0
	for _, f := range m.fetchers {
		began := time.Now()
		part, err := f.Fetch(ctx, start, end)
		metrics.ObserveSeriesFetch(f.Name(), err, time.Since(began))
		if err != nil {
			log.Printf("Error fetching %s for %s - %s: %v, skipping...", f.Name(),
				start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"), err)
			for _, c := range f.Columns() {
				frame.AddEmpty(c)
			}
			continue
		}
		frame.Join(part)
		fetched++
	}
	if fetched == 0 {
		return nil, ErrEmptyMerge
	}

	AddCalendarColumns(frame, m.holidays)

	if resolver != nil && m.currency.Base != "" && m.currency.Target != "" {
		factors := resolver.Resolve(ctx, frame.Index, frame.Column(m.currency.Base), frame.Column(m.currency.Target))
		for _, name := range m.currency.Convert {
			values := frame.Column(name)
			for i := range values {
				values[i] *= factors[i]
			}
		}
		frame.Drop(m.currency.Base)
	}

	return frame, nil
}

// AddCalendarColumns derives the calendar features from the index.
// Weekday counts from Monday = 0.
func AddCalendarColumns(frame *table.Frame, holidays holiday.Calendar) {
	n := frame.Len()
	days, months, years := make([]float64, n), make([]float64, n), make([]float64, n)
	hours, weekdays := make([]float64, n), make([]float64, n)
	holidayFlags, mod168 := make([]float64, n), make([]float64, n)

	for i, ts := range frame.Index {
		days[i] = float64(ts.Day())
		months[i] = float64(ts.Month())
		years[i] = float64(ts.Year())
		hours[i] = float64(ts.Hour())
		weekdays[i] = float64((int(ts.Weekday()) + 6) % 7)
		if holidays != nil && holidays.IsHoliday(ts) {
			holidayFlags[i] = 1
		}
		mod168[i] = weekdays[i]*24 + hours[i]
	}

	frame.Set(ColumnDay, days)
	frame.Set(ColumnMonth, months)
	frame.Set(ColumnYear, years)
	frame.Set(ColumnHour, hours)
	frame.Set(ColumnWeekday, weekdays)
	frame.Set(ColumnHoliday, holidayFlags)
	frame.Set(ColumnMod168, mod168)
}
