package forecast

import "time"

// =============================================================================
// PERIOD OF PERFORMANCE RESOLUTION
// =============================================================================

// ResolvedPeriod is the effective performance period of a position after
// applying the own-vs-inherited rule.
type ResolvedPeriod struct {
	Begin time.Time
	End   time.Time
}

// ResolvePeriod resolves a position's effective performance period. Begin
// and end are resolved independently: for each field, the position's own
// date applies when the position declares its own period AND that date is
// present; otherwise the order's date applies when present; otherwise the
// current date.
//
// Note: the per-field fallback can mix an own begin with an inherited "now"
// end (or vice versa) when exactly one of the position's dates is absent
// while the type flag says "own". This mirrors the upstream order book
// behavior deliberately; see ResolvePeriod tests.
func ResolvePeriod(order *Order, pos *Position, now time.Time) ResolvedPeriod {
	return ResolvedPeriod{
		Begin: resolvePeriodDate(pos.PeriodType, pos.PeriodBegin, order.PeriodBegin, now),
		End:   resolvePeriodDate(pos.PeriodType, pos.PeriodEnd, order.PeriodEnd, now),
	}
}

func resolvePeriodDate(periodType PeriodType, posDate, orderDate *time.Time, now time.Time) time.Time {
	if periodType == PeriodOwn {
		if posDate != nil {
			return truncateToDay(*posDate)
		}
	} else if orderDate != nil {
		return truncateToDay(*orderDate)
	}
	return truncateToDay(now)
}

// EffectiveRecordDate returns the order's record date, falling back to the
// creation date, then the offer date, then today.
func EffectiveRecordDate(order *Order, now time.Time) time.Time {
	if order.RecordDate != nil {
		return truncateToDay(*order.RecordDate)
	}
	if order.CreatedAt != nil {
		return truncateToDay(*order.CreatedAt)
	}
	if order.OfferDate != nil {
		return truncateToDay(*order.OfferDate)
	}
	return truncateToDay(now)
}
