package gedu

import (
	"context"
	"log/slog"
	"regexp"
)

type eventTitle struct {
	Title     string
	Location  string
	TimeLabel string
}

// the portal packs the class name, two attendance widgets, the campus
// and the time range into a single generated html fragment:
//
//	<title> <br/><span title="教师考勤...">..</span> <span title="学员考勤...">..</span> <span title="校区"><location></span><br/><time label>
var titleRegex = regexp.MustCompile(`^([^<]*?) <br/><span title="教师考勤[^"]*">[^<]*</span> <span title="学员考勤[^"]*">[^<]*</span> <span title="校区">([^<]*)</span><br/>(.*)$`)

// parseTitle is best effort: a fragment that doesn't match the pattern
// yields blank fields for that record only, it never drops the event.
func parseTitle(ctx context.Context, raw string) eventTitle {
	groups := titleRegex.FindStringSubmatch(raw)
	if groups == nil {
		slog.WarnContext(ctx, "event title does not match the portal pattern", "title", raw)
		return eventTitle{}
	}
	return eventTitle{
		Title:     groups[1],
		Location:  groups[2],
		TimeLabel: groups[3],
	}
}
