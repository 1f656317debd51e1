package report

import (
	"strings"
	"testing"
	"time"

	"gedusentinel/lib/scrapers/gedu"
	"gedusentinel/lib/timezone"

	"github.com/stretchr/testify/require"
)

var renderNow = time.Date(2024, 8, 26, 13, 30, 0, 0, timezone.Location)

func classAt(title string, dayOffset int) gedu.Event {
	start := time.Date(2024, 8, 26+dayOffset, 9, 0, 0, 0, timezone.Location)
	return gedu.Event{
		Title:     title,
		Location:  "Room 3",
		TimeLabel: "09:00-10:30",
		Start:     start,
		End:       start.Add(90 * time.Minute),
	}
}

func TestRenderSubject(t *testing.T) {
	doc := Render(nil, nil, 7, renderNow)
	require.Equal(t, "Events Report: 08-26 - 09-01", doc.Subject)

	doc = Render(nil, nil, 1, renderNow)
	require.Equal(t, "Events Report: 08-26 - 08-26", doc.Subject)
}

func TestRenderBuckets(t *testing.T) {
	prev := []gedu.Event{classAt("Algebra", 0)}
	curr := []gedu.Event{classAt("Algebra", 0), classAt("Reading", 1)}

	doc := Render(prev, curr, 2, renderNow)

	require.Contains(t, doc.Body, "Monday 2024-08-26")
	require.Contains(t, doc.Body, "Tuesday 2024-08-27")
	require.Contains(t, doc.Body, "09:00-10:30@Room 3")
	require.Contains(t, doc.Body, "Algebra")
	require.Contains(t, doc.Body, "Reading")

	// the old column has nothing on the second day
	require.Contains(t, doc.Body, "<center>Free</center>")
}

func TestRenderEmptyWindows(t *testing.T) {
	doc := Render(nil, nil, 3, renderNow)
	require.Equal(t, 6, strings.Count(doc.Body, "<center>Free</center>"))
}

func TestRenderDayHeaderCount(t *testing.T) {
	doc := Render(nil, nil, 5, renderNow)
	require.Equal(t, 5, strings.Count(doc.Body, `colspan="2"`))
}

func TestRenderEscapesFields(t *testing.T) {
	e := classAt("Algebra <b>advanced</b>", 0)
	doc := Render([]gedu.Event{e}, nil, 1, renderNow)
	require.Contains(t, doc.Body, "Algebra &lt;b&gt;advanced&lt;/b&gt;")
}
