/*
invoices.go - Invoice reconciliation onto the forecast month axis

PURPOSE:
  Independently of the forecast run, walks the recorded invoice lines
  linked to order positions and buckets their net amounts onto the same
  12-month axis, so forecast and actuals can be compared side by side.

RULES:
  - Every non-deleted position of every order is considered, regardless of
    eligibility for the forecast run.
  - References dated outside the forecast window are skipped.
  - A (invoice number, line number) pair is processed at most once, even
    when linked from positions of different orders.
  - Unresolvable invoices or lines are recorded as DataGap issues and
    skipped; the run never aborts.
*/
package forecast

import (
	"fmt"
	"time"
)

// ComputeInvoiceRows reconciles recorded invoice lines against the month
// axis starting at baseDate's month. Requires the Invoices and Resolver
// collaborators; without them the result is empty.
func (e *Engine) ComputeInvoiceRows(orders []*Order, baseDate time.Time) *InvoiceResult {
	axis := NewMonthAxis(baseDate, e.now())
	result := &InvoiceResult{BaseDate: axis.Base(), MonthLabels: axis.Labels()}
	if e.Invoices == nil || e.Resolver == nil {
		return result
	}

	processed := make(map[string]bool)
	invoiceCache := make(map[int]*Invoice)

	for _, order := range orders {
		for i := range order.Positions {
			pos := &order.Positions[i]
			if pos.Deleted || pos.ID == "" {
				continue
			}
			for _, ref := range e.Invoices.LinkedInvoiceRefs(pos.ID) {
				e.reconcileRef(axis, order, pos, ref, processed, invoiceCache, result)
			}
		}
	}
	return result
}

// reconcileRef buckets one invoice line reference, deduplicating by
// (invoice number, line number).
func (e *Engine) reconcileRef(axis MonthAxis, order *Order, pos *Position, ref InvoiceRef, processed map[string]bool, invoiceCache map[int]*Invoice, result *InvoiceResult) {
	monthIndex := axis.BucketIndex(ref.Date)
	if !axis.InRange(monthIndex) {
		return
	}
	key := fmt.Sprintf("%d.%d", ref.InvoiceNumber, ref.PositionNumber)
	if processed[key] {
		return
	}
	processed[key] = true

	invoice, cached := invoiceCache[ref.InvoiceNumber]
	if !cached {
		resolved, err := e.Resolver.ResolveInvoice(ref.InvoiceNumber)
		if err != nil || resolved == nil {
			result.Issues = append(result.Issues, Issue{
				Err:           ErrDataGap,
				OrderNumber:   order.Number,
				InvoiceNumber: ref.InvoiceNumber,
				Detail:        "invoice not resolvable",
			})
			return
		}
		invoiceCache[ref.InvoiceNumber] = resolved
		invoice = resolved
	}

	line := invoice.Line(ref.PositionNumber)
	if line == nil {
		result.Issues = append(result.Issues, Issue{
			Err:           ErrDataGap,
			OrderNumber:   order.Number,
			InvoiceNumber: ref.InvoiceNumber,
			Detail:        fmt.Sprintf("invoice line %d not resolvable", ref.PositionNumber),
		})
		return
	}

	date := ref.Date
	if invoice.Date != nil {
		date = *invoice.Date
	}
	result.Rows = append(result.Rows, InvoiceRow{
		InvoiceNumber: invoice.Number,
		LineNumber:    line.Number,
		Date:          truncateToDay(date),
		Customer:      invoice.Customer,
		Project:       invoice.Project,
		Subject:       invoice.Subject,
		LineText:      line.Text,
		PaymentDate:   invoice.PaymentDate,
		PeriodBegin:   invoice.PeriodBegin,
		PeriodEnd:     invoice.PeriodEnd,
		OrderRef:      fmt.Sprintf("%d.%d", order.Number, pos.Number),
		NetSum:        line.NetSum,
		Bucket:        monthIndex,
	})
	result.MonthTotals[monthIndex] = result.MonthTotals[monthIndex].Add(line.NetSum)
}
