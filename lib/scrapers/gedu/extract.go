package gedu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"gedusentinel/lib/timezone"
)

// the event list only exists as a JSON array argument buried in the
// portal's generated Ext.NET store setup, this anchor is the only
// stable thing around it
var eventArrayRegex = regexp.MustCompile(`(?s),idProperty:"EventId"\}\),directEventConfig:\{\},proxy:new Ext\.data\.PagingMemoryProxy\((\[.*?\]), false\)\}\),monthViewCfg`)

type rawEvent struct {
	Title     string `json:"Title"`
	StartDate string `json:"StartDate"`
	EndDate   string `json:"EndDate"`
}

var eventTimeLayouts = []string{
	"2006/01/02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseEventTime(s string) (time.Time, error) {
	for _, layout := range eventTimeLayouts {
		t, err := time.ParseInLocation(layout, s, timezone.Location)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized event time %q", s)
}

// extractEvents decodes the embedded event array out of the data
// script. A missing anchor degrades to an empty schedule; a malformed
// record fails the whole call so a half-decoded batch never replaces a
// good one.
func extractEvents(ctx context.Context, script []byte) ([]Event, error) {
	groups := eventArrayRegex.FindSubmatch(script)
	if groups == nil {
		slog.WarnContext(ctx, "no event array in data script", "bytes", len(script))
		return nil, nil
	}

	var raw []rawEvent
	err := json.Unmarshal(groups[1], &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode event array: %v", ErrDecode, err)
	}

	events := make([]Event, len(raw))
	for i, r := range raw {
		start, err := parseEventTime(r.StartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		end, err := parseEventTime(r.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}

		title := parseTitle(ctx, r.Title)
		events[i] = Event{
			Title:     title.Title,
			Location:  title.Location,
			TimeLabel: title.TimeLabel,
			Start:     start,
			End:       end,
		}
	}
	return events, nil
}
