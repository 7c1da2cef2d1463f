package contrib

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chiffre-app/chiffre/internal/enterprise"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolvePeriodMonthly(t *testing.T) {
	b := ResolvePeriod(date(2025, time.February, 14), enterprise.FrequencyMonthly)

	require.Equal(t, "2025M02", b.Key)
	require.Equal(t, date(2025, time.February, 1), b.Start)
	require.Equal(t, date(2025, time.February, 28), b.End)
	require.Equal(t, date(2025, time.March, 31), b.DueDate)
}

func TestResolvePeriodMonthlyLeapYear(t *testing.T) {
	b := ResolvePeriod(date(2024, time.February, 29), enterprise.FrequencyMonthly)

	require.Equal(t, "2024M02", b.Key)
	require.Equal(t, date(2024, time.February, 29), b.End)
}

func TestResolvePeriodMonthlyYearRoll(t *testing.T) {
	b := ResolvePeriod(date(2025, time.December, 31), enterprise.FrequencyMonthly)

	require.Equal(t, "2025M12", b.Key)
	require.Equal(t, date(2025, time.December, 31), b.End)
	require.Equal(t, date(2026, time.January, 31), b.DueDate)
}

func TestResolvePeriodQuarterly(t *testing.T) {
	cases := []struct {
		ref   time.Time
		key   string
		start time.Time
		end   time.Time
		due   time.Time
	}{
		{date(2025, time.January, 1), "2025Q1", date(2025, time.January, 1), date(2025, time.March, 31), date(2025, time.April, 30)},
		{date(2025, time.March, 31), "2025Q1", date(2025, time.January, 1), date(2025, time.March, 31), date(2025, time.April, 30)},
		{date(2025, time.May, 10), "2025Q2", date(2025, time.April, 1), date(2025, time.June, 30), date(2025, time.July, 31)},
		{date(2025, time.August, 2), "2025Q3", date(2025, time.July, 1), date(2025, time.September, 30), date(2025, time.October, 31)},
		{date(2025, time.November, 30), "2025Q4", date(2025, time.October, 1), date(2025, time.December, 31), date(2026, time.January, 31)},
	}
	for _, tc := range cases {
		b := ResolvePeriod(tc.ref, enterprise.FrequencyQuarterly)
		require.Equal(t, tc.key, b.Key, "ref %s", tc.ref)
		require.Equal(t, tc.start, b.Start, "ref %s", tc.ref)
		require.Equal(t, tc.end, b.End, "ref %s", tc.ref)
		require.Equal(t, tc.due, b.DueDate, "ref %s", tc.ref)
	}
}

func TestResolvePeriodIsStable(t *testing.T) {
	a := ResolvePeriod(date(2025, time.June, 1), enterprise.FrequencyQuarterly)
	b := ResolvePeriod(date(2025, time.June, 30), enterprise.FrequencyQuarterly)
	require.Equal(t, a, b)
}
