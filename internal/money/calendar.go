package money

import (
	"fmt"
	"time"
)

const monthLayout = "2006-01"

// AddCalendarMonths moves t by n calendar months in UTC, keeping the time of
// day. A day that does not exist in the target month is clamped to that
// month's last day (Jan 31 + 1 month = Feb 28/29).
func AddCalendarMonths(t time.Time, n int) time.Time {
	t = t.UTC()
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	day := t.Day()
	if last := daysIn(first); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}

// YearMonth truncates t to its UTC "YYYY-MM".
func YearMonth(t time.Time) string {
	return t.UTC().Format(monthLayout)
}

// MonthWindow returns the UTC half-open interval [start, end) covered by a
// "YYYY-MM" string. Matching a timestamp against the window is equivalent to
// comparing its YearMonth with ym.
func MonthWindow(ym string) (start, end time.Time, err error) {
	start, err = time.ParseInLocation(monthLayout, ym, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("month %q: %w", ym, err)
	}
	return start, start.AddDate(0, 1, 0), nil
}
