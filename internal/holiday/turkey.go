package holiday

import (
	"fmt"
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// Calendar reports whether a calendar day is a public holiday
type Calendar interface {
	IsHoliday(t time.Time) bool
}

type fixedHoliday struct {
	month time.Month
	day   int
	since int
}

// national holidays observed on the same date every year
var fixedHolidays = []fixedHoliday{
	{time.January, 1, 0},  // New Year's Day
	{time.April, 23, 0},   // National Sovereignty and Children's Day
	{time.May, 1, 2009},   // Labour and Solidarity Day
	{time.May, 19, 0},     // Commemoration of Atatürk, Youth and Sports Day
	{time.July, 15, 2017}, // Democracy and National Unity Day
	{time.August, 30, 0},  // Victory Day
	{time.October, 29, 0}, // Republic Day
}

type religiousHoliday struct {
	first *calendar.Holiday
	days  int
}

// Ramazan Bayramı lasts three days, Kurban Bayramı four
var religiousHolidays = []religiousHoliday{
	{calendar.EidAlFitr, 3},
	{calendar.EidAlAdha, 4},
}

// Gregorian years covered by the religious holiday table
const (
	FirstYear = 1970
	LastYear  = 2100
)

// Turkey reports the fixed national holidays, Ramazan and Kurban Bayramı and
// configured extra dates. Weekend days count too.
type Turkey struct {
	religious map[string]struct{}
	extra     map[string]struct{}
}

// NewTurkey creates a Turkish holiday calendar. extra lists additional
// YYYY-MM-DD dates, which is also how a Bayram announced a day away from the
// arithmetic Hijri calendar is corrected.
func NewTurkey(extra []string) (*Turkey, error) {
	t := &Turkey{
		religious: religiousDates(FirstYear, LastYear),
		extra:     make(map[string]struct{}),
	}

	for _, d := range extra {
		d = strings.TrimSpace(d)
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("invalid holiday date %q: %w", d, err)
		}
		t.extra[d] = struct{}{}
	}

	return t, nil
}

// religiousDates walks Hijri years rather than Gregorian ones, since a
// Gregorian year can hold the same Bayram twice.
func religiousDates(from, to int) map[string]struct{} {
	dates := make(map[string]struct{})
	for hy := calendar.HijriYear(from) - 1; hy <= calendar.HijriYear(to)+1; hy++ {
		for _, h := range religiousHolidays {
			first := calendar.HijriToGregorian(time.Date(hy, h.first.Month, h.first.Day, 12, 0, 0, 0, time.UTC))
			for i := 0; i < h.days; i++ {
				day := first.AddDate(0, 0, i)
				if day.Year() < from || day.Year() > to {
					continue
				}
				dates[day.Format("2006-01-02")] = struct{}{}
			}
		}
	}
	return dates
}

// IsHoliday evaluates t's calendar day in t's own location.
func (t *Turkey) IsHoliday(ts time.Time) bool {
	key := ts.Format("2006-01-02")
	if _, ok := t.extra[key]; ok {
		return true
	}
	if _, ok := t.religious[key]; ok {
		return true
	}
	for _, h := range fixedHolidays {
		if ts.Month() == h.month && ts.Day() == h.day && ts.Year() >= h.since {
			return true
		}
	}
	return false
}
