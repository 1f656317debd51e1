package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Shanghai")
	if err != nil {
		panic(err)
	}
}

// the portal reports class times in Beijing time, so every date
// computation is pinned to that zone no matter where the process runs
func Now() time.Time {
	return time.Now().In(Location)
}

// StartOfDay truncates t to midnight of its calendar day in the
// reference zone.
func StartOfDay(t time.Time) time.Time {
	t = t.In(Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location)
}
