/*
distribute.go - Remainder distribution by payment type

PURPOSE:
  Spreads the part of a position's accrual value not covered by its payment
  schedule (the remainder) into the month buckets. The policy depends on the
  position's payment type:

  TimeAndMaterials:   even spread over [continuation month, period end]
  LumpSum:            same even spread, but ONLY when the order carries a
                      manual probability override; otherwise the forecast
                      stays limited to the schedule allocation
  FixedPricePackage:  the whole remainder lands in the period-end bucket

  The LumpSum asymmetry is deliberate and must not be generalized.

FIXED PRICE ACCUMULATION:
  Repeated placements into the same period-end bucket are additive, tracked
  in a running map scoped to one position's distributor. Stale increments
  (period end not after the cutoff) are dropped: a previous value is
  retained unchanged, and with no previous value zero is recorded.
*/
package forecast

import (
	"time"

	"github.com/shopspring/decimal"
)

// RemainderDistributor spreads or places one position's remainder into the
// month buckets. Create one per position run; the internal accumulation map
// must not leak across positions.
type RemainderDistributor struct {
	axis MonthAxis

	// endBuckets accumulates fixed-price placements per bucket index.
	endBuckets map[int]decimal.Decimal
}

// NewRemainderDistributor creates a distributor scoped to one position run.
func NewRemainderDistributor(axis MonthAxis) *RemainderDistributor {
	return &RemainderDistributor{axis: axis, endBuckets: make(map[int]decimal.Decimal)}
}

// Distribute writes the remainder (accrual value minus scheduled total) into
// the row according to the position's payment type. A zero remainder, an
// unset payment type, and a LumpSum position without manual override all
// write nothing. The returned error is non-fatal and classifies a skipped
// or flagged write (ErrInvalidRange, ErrNegativeBucket).
func (d *RemainderDistributor) Distribute(row *ForecastRow, pos *Position, order *Order, accrualValue, scheduledTotal decimal.Decimal, continueFrom time.Time, period ResolvedPeriod) error {
	diff := accrualValue.Sub(scheduledTotal)
	if diff.IsZero() {
		return nil
	}

	switch pos.PaymentType {
	case PaymentTimeAndMaterials:
		return d.distributeEvenly(row, diff, continueFrom, period.End)
	case PaymentLumpSum:
		if order.ProbabilityPercent != nil {
			return d.distributeEvenly(row, diff, continueFrom, period.End)
		}
	case PaymentFixedPricePackage:
		return d.placeAtPeriodEnd(row, diff, period.End)
	}
	return nil
}

// distributeEvenly spreads diff in equal rounded shares over the buckets of
// [begin, end]; buckets outside the forecast window are skipped without
// carry-forward.
func (d *RemainderDistributor) distributeEvenly(row *ForecastRow, diff decimal.Decimal, begin, end time.Time) error {
	indexBegin := d.axis.BucketIndex(begin)
	indexEnd := d.axis.BucketIndex(end)
	if indexEnd < indexBegin { // should not happen with valid data
		return ErrInvalidRange
	}
	share := diff.DivRound(decimal.NewFromInt(int64(indexEnd-indexBegin+1)), 2)
	for m := indexBegin; m <= indexEnd; m++ {
		if d.axis.InRange(m) {
			row.Months[m] = share
		}
	}
	return nil
}

// placeAtPeriodEnd adds diff to the bucket of the period end, accumulating
// with previous placements of this position run.
func (d *RemainderDistributor) placeAtPeriodEnd(row *ForecastRow, diff decimal.Decimal, periodEnd time.Time) error {
	index := d.axis.BucketIndex(periodEnd)
	if !d.axis.InRange(index) {
		return nil
	}
	previous, seen := d.endBuckets[index]
	var value decimal.Decimal
	switch {
	case d.axis.IsAfterCutoff(periodEnd):
		value = diff.Add(previous)
	case seen:
		value = previous // stale increment dropped
	default:
		value = decimal.Zero
	}
	d.endBuckets[index] = value
	row.Months[index] = value
	if value.IsNegative() {
		row.Error = true
		return ErrNegativeBucket
	}
	return nil
}
