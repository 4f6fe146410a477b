/*
probability.go - Probability-of-occurrence decision table

PURPOSE:
  Maps (order status, position status, optional manual override) to a
  probability in [0, 1]. The table is evaluated top to bottom, first match
  wins. The manual override lives on the order as an integer percent and,
  where a rule admits it, replaces that rule's default.

THE TABLE (first match wins):
  1. order or position rejected/replaced            -> 0
  2. position potential/optional                    -> override else 0
  3. position commissioned                          -> 1
  4. order potential                                -> override else 0
  5. order completed/commissioned                   -> 1
  6. order escalation/placed/in_preparation:
       position escalation/placed/in_preparation    -> override else 0.5
       position letter_of_intent                    -> override else 0.9
  7. order letter_of_intent,
       position escalation/placed/in_preparation    -> override else 0.9
  8. default                                        -> override else 0
*/
package forecast

import "github.com/shopspring/decimal"

var (
	pointFive = decimal.NewFromFloat(0.5)
	pointNine = decimal.NewFromFloat(0.9)
	hundred   = decimal.NewFromInt(100)
)

// ProbabilityOf resolves the probability of occurrence for one order
// position. overridePercent is the order's manual override (0-100), nil if
// not set.
func ProbabilityOf(orderStatus OrderStatus, posStatus PositionStatus, overridePercent *int) decimal.Decimal {
	if orderStatus == OrderRejected || orderStatus == OrderReplaced ||
		posStatus == PositionRejected || posStatus == PositionReplaced {
		return decimal.Zero
	}
	if posStatus == PositionPotential || posStatus == PositionOptional {
		return givenProbability(overridePercent, decimal.Zero)
	}
	if posStatus == PositionCommissioned {
		return decimal.NewFromInt(1)
	}
	if orderStatus == OrderPotential {
		return givenProbability(overridePercent, decimal.Zero)
	}
	if orderStatus == OrderCompleted || orderStatus == OrderCommissioned {
		return decimal.NewFromInt(1)
	}
	if orderStatus == OrderEscalation || orderStatus == OrderPlaced || orderStatus == OrderInPreparation {
		switch posStatus {
		case PositionEscalation, PositionPlaced, PositionInPreparation:
			return givenProbability(overridePercent, pointFive)
		case PositionLetterOfIntent:
			return givenProbability(overridePercent, pointNine)
		}
	}
	if orderStatus == OrderLetterOfIntent &&
		(posStatus == PositionEscalation || posStatus == PositionPlaced || posStatus == PositionInPreparation) {
		return givenProbability(overridePercent, pointNine)
	}
	return givenProbability(overridePercent, decimal.Zero)
}

// givenProbability converts the manual override percent to a fraction with
// two decimals, half-up, falling back to def when no override is set.
func givenProbability(overridePercent *int, def decimal.Decimal) decimal.Decimal {
	if overridePercent == nil {
		return def
	}
	return decimal.NewFromInt(int64(*overridePercent)).DivRound(hundred, 2)
}

// AccrualValue is the probability-weighted, not-yet-invoiced portion of a
// position's net total. Never negative: when the invoiced sum exceeds the
// net total the accrual value is zero.
func AccrualValue(pos *Position, probability decimal.Decimal) decimal.Decimal {
	toBeInvoiced := pos.NetTotal.Sub(pos.InvoicedTotal)
	if !toBeInvoiced.IsPositive() {
		return decimal.Zero
	}
	return toBeInvoiced.Mul(probability)
}
