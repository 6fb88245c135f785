package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUsageSince(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)
	cases := map[string]*time.Time{
		"":      ptrTime(now.AddDate(0, 0, -7)),
		"1d":    ptrTime(now.AddDate(0, 0, -1)),
		"7d":    ptrTime(now.AddDate(0, 0, -7)),
		"30d":   ptrTime(now.AddDate(0, 0, -30)),
		"month": ptrTime(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
		"all":   nil,
	}
	for period, want := range cases {
		got, err := UsageSince(period, now)
		require.NoError(t, err, period)
		require.Equal(t, want, got, period)
	}

	_, err := UsageSince("1 OR 1=1", now)
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestSnapshotSince(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)
	got, err := SnapshotSince("7d", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), *got)

	got, err = SnapshotSince("all", now)
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = SnapshotSince("month", now)
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestMonthRange(t *testing.T) {
	t.Parallel()

	from, to, err := MonthRange(2024, time.December)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), to)

	_, _, err = MonthRange(2024, 13)
	require.Error(t, err)
}

func TestAgeGroups(t *testing.T) {
	t.Parallel()

	age := func(n int) *int { return &n }
	require.Equal(t, []string{"all"}, AgeGroups(nil))
	require.Equal(t, []string{"all", "young"}, AgeGroups(age(12)))
	require.Equal(t, []string{"all"}, AgeGroups(age(30)))
	require.Equal(t, []string{"all", "senior"}, AgeGroups(age(50)))
}

func ptrTime(t time.Time) *time.Time { return &t }
