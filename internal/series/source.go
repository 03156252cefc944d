package series

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/rojenarda/electricity-data-fetching-tr/internal/table"
)

// DefaultPublishHour is the local hour after which next-day prices are published
const DefaultPublishHour = 14

// Source fetches one configured series and aligns it onto an hourly grid
type Source struct {
	def         Definition
	client      ItemFetcher
	loc         *time.Location
	now         func() time.Time
	publishHour int
}

// SourceOption customises a Source
type SourceOption func(*Source)

// WithClock overrides the wall clock used for the publication cutoff
func WithClock(now func() time.Time) SourceOption {
	return func(s *Source) {
		s.now = now
	}
}

// WithPublishHour overrides DefaultPublishHour
func WithPublishHour(hour int) SourceOption {
	return func(s *Source) {
		s.publishHour = hour
	}
}

// NewSource creates a new source for the given definition
func NewSource(def Definition, client ItemFetcher, loc *time.Location, opts ...SourceOption) *Source {
	if def.DateKey == "" {
		def.DateKey = "date"
	}
	if def.Kind == "" {
		def.Kind = KindPlain
	}
	if loc == nil {
		loc = time.Local
	}
	s := &Source{
		def:         def,
		client:      client,
		loc:         loc,
		now:         time.Now,
		publishHour: DefaultPublishHour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Name() string {
	return s.def.Name
}

func (s *Source) Columns() []string {
	names := make([]string, 0, len(s.def.Columns))
	for _, c := range s.def.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Fetch fetches [start, end] with the definition's default lag
func (s *Source) Fetch(ctx context.Context, start, end time.Time) (*table.Frame, error) {
	return s.FetchLagged(ctx, start, end, s.def.LagHours)
}

// FetchLagged queries [start-lag, end-lag], shifts the returned timestamps
// forward by lag and pads every missing hour of [start, end] with NaN.
func (s *Source) FetchLagged(ctx context.Context, start, end time.Time, lagHours int) (*table.Frame, error) {
	start = table.TruncateHour(start.In(s.loc))
	end = table.TruncateHour(end.In(s.loc))

	frame := table.NewHourlyFrame(start, end)
	values := make([][]float64, len(s.def.Columns))
	for i, c := range s.def.Columns {
		values[i] = frame.AddEmpty(c.Name)
	}

	requestEnd := end
	if s.def.Kind == KindDayAhead {
		if cutoff, limited := s.publicationCutoff(end); limited {
			requestEnd = cutoff.Add(-time.Hour)
			log.Printf("%s: next-day prices are not published before %02d:00, requesting up to %s",
				s.def.Name, s.publishHour, requestEnd.Format(time.RFC3339))
			if requestEnd.Before(start) {
				return frame, nil
			}
		}
	}

	lag := time.Duration(lagHours) * time.Hour
	queryStart := start.Add(-lag)
	queryEnd := requestEnd.Add(-lag)

	items, err := s.client.FetchItems(ctx, s.def.URL, queryStart, queryEnd, s.def.ExtraParams)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s.def.Name, err)
	}
	if len(items) == 0 {
		return nil, &NoDataError{Series: s.def.Name, Start: queryStart, End: queryEnd}
	}

	for _, item := range items {
		raw, ok := item[s.def.DateKey].(string)
		if !ok {
			log.Printf("%s: skipping item without %q", s.def.Name, s.def.DateKey)
			continue
		}
		ts, err := s.parseTimestamp(raw)
		if err != nil {
			log.Printf("%s: skipping item: %v", s.def.Name, err)
			continue
		}
		row := frame.Row(table.TruncateHour(ts.Add(lag)))
		if row < 0 {
			continue
		}
		for i, c := range s.def.Columns {
			values[i][row] = toFloat(item[c.Key])
		}
	}

	return frame, nil
}

// publicationCutoff returns the start of tomorrow when end falls on a day
// whose prices cannot have been published yet.
func (s *Source) publicationCutoff(end time.Time) (time.Time, bool) {
	now := s.now().In(s.loc)
	today := table.TruncateDay(now)
	if table.TruncateDay(end).After(today) && now.Hour() < s.publishHour {
		return today.AddDate(0, 0, 1), true
	}
	return time.Time{}, false
}

func (s *Source) parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.In(s.loc), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.ParseInLocation(layout, raw, s.loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return math.NaN()
}
