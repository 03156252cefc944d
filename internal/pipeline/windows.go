package pipeline

import "time"

// DefaultWindowSpan is the longest range the market API accepts in one request
const DefaultWindowSpan = 1095 * 24 * time.Hour

// Window is one bounded fetch range; both ends are inclusive
type Window struct {
	Start time.Time
	End   time.Time
}

// SplitWindows partitions [start, end] into ascending hourly windows no
// longer than span. Each window after the first starts one hour after the
// previous one ends.
func SplitWindows(start, end time.Time, span time.Duration) []Window {
	if end.Before(start) {
		return nil
	}
	if span < time.Hour || end.Sub(start) <= span {
		return []Window{{Start: start, End: end}}
	}

	var windows []Window
	for currentFrom := start; !currentFrom.After(end); {
		currentTo := currentFrom.Add(span - time.Hour)
		if currentTo.After(end) {
			currentTo = end
		}
		windows = append(windows, Window{Start: currentFrom, End: currentTo})
		currentFrom = currentTo.Add(time.Hour)
	}
	return windows
}
