package forecast

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONTH AXIS - The fixed 12-month forecast window
// =============================================================================

// MonthCount is the number of buckets in the forecast window.
const MonthCount = 12

// MonthAxis maps calendar dates onto the 12 month buckets of a forecast
// window. Index 0 is the base month (first day of the base date's month);
// index i is base month + i. Indices outside [0, 11] are out of range and
// any amount destined there is dropped, never aggregated.
type MonthAxis struct {
	base time.Time // first day of the base month
	now  time.Time // reference date for the staleness cutoff
}

// NewMonthAxis builds the axis for a base (reporting) date. The now argument
// anchors the staleness cutoff (one month before now).
func NewMonthAxis(baseDate, now time.Time) MonthAxis {
	return MonthAxis{base: beginOfMonth(baseDate), now: now}
}

// Base returns the first day of the base month.
func (a MonthAxis) Base() time.Time { return a.base }

// BucketIndex maps a date to its bucket: (year*12+month) relative to the
// base month. Callers must check InRange before using the index.
func (a MonthAxis) BucketIndex(d time.Time) int {
	return (d.Year()*12 + int(d.Month())) - (a.base.Year()*12 + int(a.base.Month()))
}

// InRange reports whether a bucket index falls inside the forecast window.
func (a MonthAxis) InRange(index int) bool {
	return index >= 0 && index < MonthCount
}

// MonthAt returns the first day of the bucket's month.
func (a MonthAxis) MonthAt(index int) time.Time {
	return a.base.AddDate(0, index, 0)
}

// IsAfterCutoff reports whether the date is strictly after (now - 1 month).
// Amounts scheduled before the cutoff are suppressed as stale.
func (a MonthAxis) IsAfterCutoff(d time.Time) bool {
	return truncateToDay(d).After(truncateToDay(a.now.AddDate(0, -1, 0)))
}

// Labels returns the rendered month headers, e.g. "Jan 2026".
func (a MonthAxis) Labels() [MonthCount]string {
	var labels [MonthCount]string
	for i := range labels {
		labels[i] = a.MonthAt(i).Format("Jan 2006")
	}
	return labels
}

// =============================================================================
// MONTH ARITHMETIC
// =============================================================================

// MonthSpan returns the inclusive number of months between two dates,
// e.g. Jan 15 .. Mar 1 spans 3 months.
func MonthSpan(begin, end time.Time) int {
	return (end.Year()*12 + int(end.Month())) - (begin.Year()*12 + int(begin.Month())) + 1
}

// MonthCountFor returns the inclusive month span of the period governing the
// position (own period when declared, the order's otherwise), or nil if the
// governing record is missing either end.
func MonthCountFor(order *Order, pos *Position) *decimal.Decimal {
	begin, end := order.PeriodBegin, order.PeriodEnd
	if pos.PeriodType == PeriodOwn {
		begin, end = pos.PeriodBegin, pos.PeriodEnd
	}
	if begin == nil || end == nil {
		return nil
	}
	count := decimal.NewFromInt(int64(MonthSpan(*begin, *end)))
	return &count
}

func beginOfMonth(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func truncateToDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
