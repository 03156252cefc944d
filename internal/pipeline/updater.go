package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/rojenarda/electricity-data-fetching-tr/internal/dataset"
	"github.com/rojenarda/electricity-data-fetching-tr/internal/table"
)

// HoursPerDay is how many rows replace-last-day removes
const HoursPerDay = 24

// Runner runs the pipeline over a range
type Runner interface {
	Run(ctx context.Context, start, end time.Time, destination string, appendMode bool) error
}

// Updater extends an existing dataset up to the next day
type Updater struct {
	runner Runner
	path   string
	loc    *time.Location
	now    func() time.Time
}

// NewUpdater creates an updater for the dataset at path. A nil clock means
// time.Now.
func NewUpdater(runner Runner, path string, loc *time.Location, now func() time.Time) *Updater {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Updater{
		runner: runner,
		path:   path,
		loc:    loc,
		now:    now,
	}
}

// Update appends every hour after the last row up to now+24h. With
// replaceLastDay the last 24 rows are removed first and fetched again, which
// picks up late corrections and cleans up a partially written window.
func (u *Updater) Update(ctx context.Context, replaceLastDay bool) error {
	if err := checkExists(u.path); err != nil {
		return err
	}

	var resume time.Time
	if replaceLastDay {
		first, removed, err := dataset.TruncateLastRows(u.path, HoursPerDay, u.loc)
		if err != nil {
			return err
		}
		log.Printf("Removed the last %d rows of %s, refetching from %s", removed, u.path, first.Format(rangeLayout))
		resume = first
	} else {
		last, err := dataset.LastTimestamp(u.path, u.loc)
		if err != nil {
			return err
		}
		resume = last.Add(time.Hour)
	}

	target := table.TruncateHour(u.now().In(u.loc).Add(24 * time.Hour))
	if resume.After(target) {
		log.Printf("Dataset %s is up to date through %s", u.path, resume.Add(-time.Hour).Format(rangeLayout))
		return nil
	}

	log.Printf("Updating %s from %s to %s", u.path, resume.Format(rangeLayout), target.Format(rangeLayout))
	return u.runner.Run(ctx, resume, target, u.path, true)
}
