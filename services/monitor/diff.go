package monitor

import (
	"time"

	"gedusentinel/lib/scrapers/gedu"
	"gedusentinel/lib/timezone"
)

// CalcHours sums the duration of every event in hours.
func CalcHours(events []gedu.Event) float64 {
	var total time.Duration
	for _, e := range events {
		total += e.End.Sub(e.Start)
	}
	return total.Hours()
}

// RecentWindow filters to events starting within the calendar days
// [today, today+dayRange-1] of the reference zone, inclusive at both
// ends. Calendar days, never a rolling 24h window.
func RecentWindow(events []gedu.Event, now time.Time, dayRange int) []gedu.Event {
	start := timezone.StartOfDay(now)
	end := start.AddDate(0, 0, dayRange)

	var window []gedu.Event
	for _, e := range events {
		if !e.Start.Before(start) && e.Start.Before(end) {
			window = append(window, e)
		}
	}
	return window
}

type ChangeSummary struct {
	PrevHours float64
	CurrHours float64
}

// Compare returns nil only when the two windows are materially equal:
// same total hours, same length and a field-identical event at every
// sort position. Timestamps compare by instant, not display string.
func Compare(prev, curr []gedu.Event) *ChangeSummary {
	summary := &ChangeSummary{
		PrevHours: CalcHours(prev),
		CurrHours: CalcHours(curr),
	}

	if summary.PrevHours != summary.CurrHours || len(prev) != len(curr) {
		return summary
	}

	for i := range prev {
		same := prev[i].Start.Equal(curr[i].Start) &&
			prev[i].End.Equal(curr[i].End) &&
			prev[i].Title == curr[i].Title &&
			prev[i].Location == curr[i].Location &&
			prev[i].TimeLabel == curr[i].TimeLabel
		if !same {
			return summary
		}
	}
	return nil
}
