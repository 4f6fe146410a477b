/*
schedule.go - Payment-schedule allocation

PURPOSE:
  Allocates a position's explicit payment-schedule commitments into the
  month buckets, probability-weighted, and reports what is left for the
  remainder distribution (distribute.go).

ALLOCATION RULES:
  - Fully-invoiced schedule entries are excluded entirely.
  - An entry lands in the bucket of (schedule date + 1 month): invoices for
    a scheduled payment go out the following month.
  - Buckets before the staleness cutoff stay empty.
  - Bucket sums are rounded to 2 decimals half-up and written only when
    non-zero; a negative sum flags the row erroneous.

CONTINUATION:
  The remainder distribution continues two months after the latest schedule
  date (amounts are shifted one month, distribution starts the month after
  the last one). With no schedule the continuation is the resolved period
  begin.
*/
package forecast

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScheduleAllocation reports the outcome of allocating one position's
// payment schedule.
type ScheduleAllocation struct {
	// ScheduledTotal is the probability-weighted sum of all non-excluded
	// entries, regardless of bucket range.
	ScheduledTotal decimal.Decimal

	// ContinueFrom is the month from which the remainder distribution
	// should continue.
	ContinueFrom time.Time
}

// AllocateSchedule writes the probability-weighted schedule amounts of one
// position into the row's month buckets and returns the scheduled total and
// continuation month. entries must already be filtered via
// PaymentSchedulesFor; period is the position's resolved period.
func AllocateSchedule(axis MonthAxis, entries []PaymentScheduleEntry, probability decimal.Decimal, period ResolvedPeriod, row *ForecastRow) ScheduleAllocation {
	if len(entries) == 0 {
		return ScheduleAllocation{ScheduledTotal: decimal.Zero, ContinueFrom: period.Begin}
	}

	for m := 0; m < MonthCount; m++ {
		if !axis.IsAfterCutoff(axis.MonthAt(m)) {
			continue
		}
		sum := decimal.Zero
		for _, entry := range entries {
			if entry.FullyInvoiced {
				continue
			}
			if axis.BucketIndex(entry.ScheduleDate.AddDate(0, 1, 0)) == m {
				sum = sum.Add(entry.Amount.Mul(probability))
			}
		}
		if !sum.IsZero() {
			row.Months[m] = sum.Round(2)
			if sum.IsNegative() {
				row.Error = true
			}
		}
	}

	total := decimal.Zero
	latest := truncateToDay(*entries[0].ScheduleDate)
	for _, entry := range entries {
		if entry.FullyInvoiced {
			continue
		}
		total = total.Add(entry.Amount.Mul(probability))
		if date := truncateToDay(*entry.ScheduleDate); latest.Before(date) {
			latest = date
		}
	}

	// Values land one month after their schedule date; continue the month
	// after the last one.
	return ScheduleAllocation{ScheduledTotal: total, ContinueFrom: latest.AddDate(0, 2, 0)}
}
