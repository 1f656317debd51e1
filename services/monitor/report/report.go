package report

import (
	"fmt"
	"html"
	"strings"
	"time"

	"gedusentinel/lib/scrapers/gedu"
	"gedusentinel/lib/timezone"
)

type Document struct {
	Subject string
	Body    string
}

const subjectDateFormat = "01-02"

// Render builds the side-by-side change report: one block per calendar
// day of the range starting today, old window events on the left, new
// ones on the right.
func Render(prev, curr []gedu.Event, dayRange int, now time.Time) Document {
	today := timezone.StartOfDay(now)

	type bucket struct {
		prev []gedu.Event
		curr []gedu.Event
	}
	days := make([]bucket, dayRange)
	for _, e := range prev {
		if i := dayIndex(today, e.Start); i >= 0 && i < dayRange {
			days[i].prev = append(days[i].prev, e)
		}
	}
	for _, e := range curr {
		if i := dayIndex(today, e.Start); i >= 0 && i < dayRange {
			days[i].curr = append(days[i].curr, e)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<p>Your events in the coming %d day(s) have been updated.</p>", dayRange)
	b.WriteString(`<table border="1" cellpadding="5px" style="border-collapse: collapse;">`)
	b.WriteString(`<tr><th width="50%">Old events</th><th width="50%">New events</th></tr>`)
	for i := 0; i < dayRange; i++ {
		date := today.AddDate(0, 0, i)
		fmt.Fprintf(&b, `<tr><td align="center" colspan="2">%s</td></tr>`, date.Format("Monday 2006-01-02"))
		b.WriteString("<tr>")
		b.WriteString("<td>" + renderCell(days[i].prev) + "</td>")
		b.WriteString("<td>" + renderCell(days[i].curr) + "</td>")
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")

	subject := fmt.Sprintf(
		"Events Report: %s - %s",
		today.Format(subjectDateFormat),
		today.AddDate(0, 0, dayRange-1).Format(subjectDateFormat),
	)

	return Document{Subject: subject, Body: b.String()}
}

func dayIndex(today, start time.Time) int {
	return int(timezone.StartOfDay(start).Sub(today) / (24 * time.Hour))
}

func renderCell(events []gedu.Event) string {
	if len(events) == 0 {
		return "<center>Free</center>"
	}
	var b strings.Builder
	b.WriteString(`<table cellspacing="10px">`)
	for _, e := range events {
		fmt.Fprintf(
			&b,
			"<tr><td><span>%s@%s</span><br/><span>%s</span><br/></td></tr>",
			html.EscapeString(e.TimeLabel),
			html.EscapeString(e.Location),
			html.EscapeString(e.Title),
		)
	}
	b.WriteString("</table>")
	return b.String()
}
