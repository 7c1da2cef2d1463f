package contrib

import (
	"fmt"
	"time"

	"github.com/chiffre-app/chiffre/internal/enterprise"
)

// Bounds describes one declaration window: its stable key, calendar bounds
// and due date (last day of the month following the window).
type Bounds struct {
	Key     string
	Start   time.Time
	End     time.Time
	DueDate time.Time
}

// ResolvePeriod derives the declaration window containing ref. Pure: the
// same inputs always yield the same bounds, so it can find the current
// period or backfill past ones.
func ResolvePeriod(ref time.Time, freq enterprise.Frequency) Bounds {
	year := ref.Year()

	if freq == enterprise.FrequencyMonthly {
		month := ref.Month()
		start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		end := endOfMonth(start)
		return Bounds{
			Key:     fmt.Sprintf("%04dM%02d", year, int(month)),
			Start:   start,
			End:     end,
			DueDate: endOfMonth(start.AddDate(0, 1, 0)),
		}
	}

	quarter := (int(ref.Month()) + 2) / 3
	start := time.Date(year, time.Month(3*quarter-2), 1, 0, 0, 0, 0, time.UTC)
	end := endOfMonth(start.AddDate(0, 2, 0))
	return Bounds{
		Key:     fmt.Sprintf("%04dQ%d", year, quarter),
		Start:   start,
		End:     end,
		DueDate: endOfMonth(start.AddDate(0, 3, 0)),
	}
}

// endOfMonth returns the last day of t's month at midnight UTC.
func endOfMonth(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1)
}
