package db

import (
	"time"

	"golang.org/x/xerrors"
)

// ErrInvalidPeriod is returned for a period outside the accepted set.
var ErrInvalidPeriod = xerrors.New("invalid period")

const DefaultPeriod = "7d"

// UsageSince returns the lower bound of a usage window ending at now. The
// accepted periods are 1d, 7d, 30d, month (start of the current UTC calendar
// month) and all, which has no bound. An empty period means 7d.
func UsageSince(period string, now time.Time) (*time.Time, error) {
	now = now.UTC()
	var since time.Time
	switch period {
	case "1d":
		since = now.AddDate(0, 0, -1)
	case "7d", "":
		since = now.AddDate(0, 0, -7)
	case "30d":
		since = now.AddDate(0, 0, -30)
	case "month":
		since = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	case "all":
		return nil, nil
	default:
		return nil, ErrInvalidPeriod
	}
	return &since, nil
}

// SnapshotSince returns the first date included in a snapshot listing. The
// accepted periods are 1d, 7d, 30d and all.
func SnapshotSince(period string, now time.Time) (*time.Time, error) {
	days, err := PeriodDays(period)
	if err != nil {
		if period == "all" {
			return nil, nil
		}
		return nil, err
	}
	since := Day(now).AddDate(0, 0, -days)
	return &since, nil
}

// PeriodDays is the number of days covered by 1d, 7d or 30d. An empty period
// means 7d.
func PeriodDays(period string) (int, error) {
	switch period {
	case "1d":
		return 1, nil
	case "7d", "":
		return 7, nil
	case "30d":
		return 30, nil
	default:
		return 0, ErrInvalidPeriod
	}
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthRange returns [first day of the month, first day of the next month).
func MonthRange(year int, month time.Month) (time.Time, time.Time, error) {
	if month < time.January || month > time.December || year < 1970 || year > 9999 {
		return time.Time{}, time.Time{}, xerrors.Errorf("invalid month %d-%d", year, month)
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}
