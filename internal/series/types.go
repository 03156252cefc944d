package series

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rojenarda/electricity-data-fetching-tr/internal/epias"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/table"
)

// Kind selects source-specific fetch behaviour
type Kind string

const (
	KindPlain    Kind = "plain"
	KindDayAhead Kind = "day_ahead"
)

// ColumnMapping renames one response key to an output column
type ColumnMapping struct {
	Key  string
	Name string
}

// Definition describes one hourly series served by a market-data endpoint.
// Concrete series (day-ahead, balancing market, forecasts) are values of this
// type rather than separate implementations.
type Definition struct {
	Name        string
	URL         string
	DateKey     string
	Columns     []ColumnMapping
	ExtraParams map[string]interface{}
	LagHours    int
	Kind        Kind
}

// RatioDefinition describes a series derived as numerator/denominator
type RatioDefinition struct {
	Name        string
	Numerator   string
	Denominator string
	LagHours    int
}

// Fetcher produces a full-range hourly frame for [start, end]
type Fetcher interface {
	Name() string
	Columns() []string
	Fetch(ctx context.Context, start, end time.Time) (*table.Frame, error)
}

// ItemFetcher is the market-data transport
type ItemFetcher interface {
	FetchItems(ctx context.Context, url string, start, end time.Time, extra map[string]interface{}) ([]epias.Item, error)
}

// ErrNoData is matched by every NoDataError
var ErrNoData = errors.New("no data available for the given date range")

// NoDataError reports an empty response for a series
type NoDataError struct {
	Series string
	Start  time.Time
	End    time.Time
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("%s: %v (%s - %s)", e.Series, ErrNoData,
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

func (e *NoDataError) Unwrap() error {
	return ErrNoData
}

// IndexMismatchError reports derived-series inputs with different indices
type IndexMismatchError struct {
	Series   string
	LeftLen  int
	RightLen int
}

func (e *IndexMismatchError) Error() string {
	return fmt.Sprintf("%s: indices of the constituent series do not match (%d vs %d rows)",
		e.Series, e.LeftLen, e.RightLen)
}
