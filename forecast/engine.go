/*
engine.go - Forecast orchestration

PURPOSE:
  Walks the order book snapshot, filters eligible orders and positions,
  and assembles one ForecastRow per surviving position:

  1. Resolve probability (probability.go) and accrual value
  2. Resolve the performance period (period.go)
  3. Allocate the payment schedule into month buckets (schedule.go)
  4. Distribute the remainder by payment type (distribute.go)
  5. Accumulate column-wise month totals

  The run is pure and synchronous: inputs are never mutated, no state
  survives the call, and identical inputs with an identical clock produce
  identical output.

SEE ALSO:
  - invoices.go: the independent invoice reconciliation run
  - result.go: output types
*/
package forecast

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Orders with any other status are excluded from the forecast.
var orderStatusToShow = map[OrderStatus]bool{
	OrderCompleted:      true,
	OrderCommissioned:   true,
	OrderEscalation:     true,
	OrderPlaced:         true,
	OrderInPreparation:  true,
	OrderLetterOfIntent: true,
	OrderPotential:      true,
}

// Positions with any other status (or none) are excluded from the forecast.
var positionStatusToShow = map[PositionStatus]bool{
	PositionCommissioned:   true,
	PositionPlaced:         true,
	PositionInPreparation:  true,
	PositionLetterOfIntent: true,
	PositionPotential:      true,
}

// Engine computes forecast and invoice reconciliation runs over an order
// book snapshot. The zero value is usable; collaborators are optional.
type Engine struct {
	// Invoices links order positions to recorded invoice lines. Optional:
	// without it forecast rows carry no linked-invoice info and
	// ComputeInvoiceRows returns an empty result.
	Invoices InvoiceIndex

	// Resolver resolves full invoice details for reconciliation. Optional.
	Resolver InvoiceResolver

	// Now anchors the staleness cutoff and date fallbacks. Defaults to
	// time.Now; fix it in tests for deterministic output.
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ComputeForecast runs the forecast over the order book for the 12-month
// window starting at baseDate's month. The result is fresh per call.
func (e *Engine) ComputeForecast(orders []*Order, baseDate time.Time) *ForecastResult {
	now := e.now()
	axis := NewMonthAxis(baseDate, now)
	result := &ForecastResult{BaseDate: axis.Base(), MonthLabels: axis.Labels()}

	for _, order := range orders {
		if order.Deleted {
			continue
		}
		active := order.ActivePositions()
		if len(active) == 0 {
			continue
		}
		if !orderStatusToShow[order.Status] {
			continue
		}
		for i := range active {
			pos := &active[i]
			if pos.Status == "" || !positionStatusToShow[pos.Status] {
				continue
			}
			row := e.buildRow(axis, order, pos, now, result)
			for m := 0; m < MonthCount; m++ {
				result.MonthTotals[m] = result.MonthTotals[m].Add(row.Months[m])
			}
			result.Rows = append(result.Rows, row)
		}
	}
	return result
}

// buildRow assembles the forecast row for one eligible position.
func (e *Engine) buildRow(axis MonthAxis, order *Order, pos *Position, now time.Time, result *ForecastResult) ForecastRow {
	probability := ProbabilityOf(order.Status, pos.Status, order.ProbabilityPercent)
	accrual := AccrualValue(pos, probability)
	period := ResolvePeriod(order, pos, now)

	row := ForecastRow{
		OrderNumber:    order.Number,
		PositionNumber: pos.Number,
		Customer:       order.Customer,
		Project:        order.Project,
		Title:          order.Title,
		ContactPerson:  order.ContactPerson,
		TaskRef:        pos.TaskRef,
		Comment:        pos.Comment,
		OrderStatus:    order.Status,
		PositionStatus: pos.Status,
		PaymentType:    pos.PaymentType,
		PersonDays:     pos.PersonDays,
		NetTotal:       pos.NetTotal,
		InvoicedTotal:  pos.InvoicedTotal,
		ToBeInvoiced:   toBeInvoiced(pos),
		FullyInvoiced:  pos.FullyInvoiced,
		LinkedInvoices: e.linkedInvoiceNumbers(pos.ID),
		Probability:    probability,
		AccrualValue:   accrual,
		PeriodBegin:    period.Begin,
		PeriodEnd:      period.End,
		RecordDate:     EffectiveRecordDate(order, now),
		MonthCount:     MonthCountFor(order, pos),
	}
	if pos.Title != order.Title {
		row.PositionTitle = pos.Title
	}

	entries := PaymentSchedulesFor(order, pos)
	allocation := AllocateSchedule(axis, entries, probability, period, &row)

	distributor := NewRemainderDistributor(axis)
	if err := distributor.Distribute(&row, pos, order, accrual, allocation.ScheduledTotal, allocation.ContinueFrom, period); err != nil {
		result.Issues = append(result.Issues, Issue{
			Err:            err,
			OrderNumber:    order.Number,
			PositionNumber: pos.Number,
			Detail:         "remainder distribution",
		})
	}
	return row
}

func toBeInvoiced(pos *Position) decimal.Decimal {
	diff := pos.NetTotal.Sub(pos.InvoicedTotal)
	if diff.IsNegative() {
		return decimal.Zero
	}
	return diff
}

// linkedInvoiceNumbers joins the distinct numbers of all invoices linked to
// the position, for display.
func (e *Engine) linkedInvoiceNumbers(positionID string) string {
	if e.Invoices == nil || positionID == "" {
		return ""
	}
	refs := e.Invoices.LinkedInvoiceRefs(positionID)
	if len(refs) == 0 {
		return ""
	}
	seen := make(map[int]bool, len(refs))
	numbers := make([]int, 0, len(refs))
	for _, ref := range refs {
		if !seen[ref.InvoiceNumber] {
			seen[ref.InvoiceNumber] = true
			numbers = append(numbers, ref.InvoiceNumber)
		}
	}
	sort.Ints(numbers)
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
