package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/dataset"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/merge"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/metrics"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/recorder"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/table"
)

// Merger builds the merged table for one window
type Merger interface {
	Merge(ctx context.Context, resolver merge.FactorResolver, start, end time.Time) (*table.Frame, error)
}

// Writer persists merged tables
type Writer interface {
	Create(path string, frame *table.Frame) (int, error)
	Append(path string, frame *table.Frame) (int, error)
}

// Pipeline drives fetch, merge and write for every window of a range
type Pipeline struct {
	merger      Merger
	writer      Writer
	loc         *time.Location
	span        time.Duration
	recorder    recorder.Recorder
	newResolver func() merge.FactorResolver
	parquetDir  string
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithWindowSpan overrides the maximum request span
func WithWindowSpan(span time.Duration) Option {
	return func(p *Pipeline) {
		p.span = span
	}
}

// WithRecorder stores the run history in r
func WithRecorder(r recorder.Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithResolverFactory sets how the per-run exchange rate resolver is built.
// Without it no currency conversion happens.
func WithResolverFactory(f func() merge.FactorResolver) Option {
	return func(p *Pipeline) {
		p.newResolver = f
	}
}

// WithParquetExport converts the dataset to monthly parquet files in dir
// after every successful run.
func WithParquetExport(dir string) Option {
	return func(p *Pipeline) {
		p.parquetDir = dir
	}
}

// New creates a pipeline writing timestamps in loc
func New(merger Merger, writer Writer, loc *time.Location, opts ...Option) *Pipeline {
	if loc == nil {
		loc = time.Local
	}
	p := &Pipeline{
		merger:   merger,
		writer:   writer,
		loc:      loc,
		span:     DefaultWindowSpan,
		recorder: recorder.NewNoopRecorder(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run fetches [start, end] window by window and writes it to destination.
// Without appendMode the first window recreates the file. Validation errors
// are returned before any request is made.
func (p *Pipeline) Run(ctx context.Context, start, end time.Time, destination string, appendMode bool) error {
	start = table.TruncateHour(start.In(p.loc))
	end = table.TruncateHour(end.In(p.loc))
	if end.Before(start) {
		return &InvalidRangeError{Start: start, End: end}
	}
	if appendMode {
		if err := checkExists(destination); err != nil {
			return err
		}
	}

	mode := "create"
	if appendMode {
		mode = "append"
	}
	runID := uuid.New().String()
	if err := p.recorder.StartRun(&recorder.Run{
		ID:         runID,
		Mode:       mode,
		Path:       destination,
		RangeStart: start,
		RangeEnd:   end,
		StartedAt:  time.Now(),
	}); err != nil {
		log.Printf("Error recording run start: %v", err)
	}

	var resolver merge.FactorResolver
	if p.newResolver != nil {
		resolver = p.newResolver()
	}

	windows := SplitWindows(start, end, p.span)
	if len(windows) > 1 {
		log.Printf("Range %s - %s exceeds the %v day request limit, splitting into %d windows",
			start.Format(rangeLayout), end.Format(rangeLayout), p.span.Hours()/24, len(windows))
	}

	total, done := 0, 0
	for i, w := range windows {
		select {
		case <-ctx.Done():
			p.finish(runID, total, done, ctx.Err())
			return ctx.Err()
		default:
		}

		log.Printf("Processing window %d/%d: %s - %s", i+1, len(windows),
			w.Start.Format(rangeLayout), w.End.Format(rangeLayout))

		rows, err := p.runWindow(ctx, resolver, w, destination, appendMode || i > 0)
		if rerr := p.recorder.RecordWindow(&recorder.WindowEvent{
			RunID: runID, Start: w.Start, End: w.End, Rows: rows, Err: err,
		}); rerr != nil {
			log.Printf("Error recording window: %v", rerr)
		}
		metrics.ObserveWindow(err, rows, w.End)
		if err != nil {
			err = fmt.Errorf("window %s - %s: %w", w.Start.Format(rangeLayout), w.End.Format(rangeLayout), err)
			p.finish(runID, total, done, err)
			return err
		}
		total += rows
		done++
	}

	if p.parquetDir != "" {
		if _, err := dataset.ExportParquet(destination, p.parquetDir, p.loc); err != nil {
			log.Printf("Error converting %s to parquet: %v", destination, err)
		}
	}

	p.finish(runID, total, done, nil)
	log.Printf("Wrote %d rows in %d windows to %s", total, done, destination)
	return nil
}

func (p *Pipeline) runWindow(ctx context.Context, resolver merge.FactorResolver, w Window, destination string, appending bool) (int, error) {
	frame, err := p.merger.Merge(ctx, resolver, w.Start, w.End)
	if err != nil {
		return 0, err
	}
	if appending {
		return p.writer.Append(destination, frame)
	}
	return p.writer.Create(destination, frame)
}

func (p *Pipeline) finish(runID string, rows, windows int, err error) {
	status := recorder.StatusSucceeded
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = recorder.StatusCancelled
	case err != nil:
		status = recorder.StatusFailed
	}
	if rerr := p.recorder.FinishRun(runID, &recorder.RunResult{
		Status: status, Rows: rows, Windows: windows, Err: err,
	}); rerr != nil {
		log.Printf("Error recording run result: %v", rerr)
	}
}
