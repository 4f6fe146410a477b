/*
Package forecast implements the revenue-forecast allocation engine.

PURPOSE:
  Given a portfolio of sales orders, their line positions, payment schedules
  and recorded invoices, the engine computes a probability-weighted forecast
  of WHEN (which future month) outstanding revenue will be recognized,
  reconciles that forecast against explicit payment schedules, and reconciles
  actual invoices onto the same monthly time axis.

KEY CONCEPTS IN THIS FILE (types.go):
  - Order / Position: the read-only order book snapshot
  - PaymentScheduleEntry: explicit monthly payment commitments
  - Invoice / InvoiceLine / InvoiceRef: recorded revenue
  - InvoiceIndex / InvoiceResolver: external lookup collaborators

DESIGN PRINCIPLES:
  1. Purity: the engine never mutates its inputs and holds no state
     across invocations. One call, one fresh result.
  2. Precision: uses decimal.Decimal for all money math.
  3. Non-fatal errors: a malformed order never aborts the portfolio run;
     problems are collected as Issues on the result.

SEE ALSO:
  - probability.go: status decision table
  - months.go: the 12-month bucket axis
  - engine.go: forecast orchestration
  - invoices.go: invoice reconciliation
*/
package forecast

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS ENUMERATIONS
// =============================================================================

// OrderStatus is the workflow status of a sales order. Transitions are owned
// entirely by the upstream workflow; the engine treats the status as an
// immutable input for one computation run.
type OrderStatus string

const (
	OrderRejected       OrderStatus = "rejected"
	OrderReplaced       OrderStatus = "replaced"
	OrderPotential      OrderStatus = "potential"
	OrderEscalation     OrderStatus = "escalation"
	OrderPlaced         OrderStatus = "placed"
	OrderInPreparation  OrderStatus = "in_preparation"
	OrderLetterOfIntent OrderStatus = "letter_of_intent"
	OrderCommissioned   OrderStatus = "commissioned"
	OrderCompleted      OrderStatus = "completed"
)

// PositionStatus is the workflow status of a single order position.
// The empty string means "not set"; such positions are never forecast.
type PositionStatus string

const (
	PositionRejected       PositionStatus = "rejected"
	PositionReplaced       PositionStatus = "replaced"
	PositionPotential      PositionStatus = "potential"
	PositionOptional       PositionStatus = "optional"
	PositionEscalation     PositionStatus = "escalation"
	PositionPlaced         PositionStatus = "placed"
	PositionInPreparation  PositionStatus = "in_preparation"
	PositionLetterOfIntent PositionStatus = "letter_of_intent"
	PositionCommissioned   PositionStatus = "commissioned"
	PositionCompleted      PositionStatus = "completed"
)

// PaymentType selects the remainder allocation policy for a position.
type PaymentType string

const (
	PaymentTimeAndMaterials  PaymentType = "time_and_materials"
	PaymentLumpSum           PaymentType = "lump_sum"
	PaymentFixedPricePackage PaymentType = "fixed_price_package"
)

// PeriodType says whether a position carries its own period of performance
// or inherits the order's.
type PeriodType string

const (
	PeriodOwn      PeriodType = "own"
	PeriodSeeAbove PeriodType = "see_above"
)

// =============================================================================
// ORDER BOOK SNAPSHOT
// =============================================================================

// Order is one sales order with its positions and payment schedule.
// All fields are a read-only snapshot for one computation run.
type Order struct {
	Number int
	Status OrderStatus

	// Manual probability override in percent (0-100), nil if not set.
	ProbabilityPercent *int

	// Display-only references, passed through to the renderer.
	Customer      string
	Project       string
	Title         string
	ContactPerson string

	// Record-date fallback chain: RecordDate, CreatedAt, OfferDate, today.
	OfferDate  *time.Time
	RecordDate *time.Time
	CreatedAt  *time.Time

	// Period of performance; positions may override via PeriodOwn.
	PeriodBegin *time.Time
	PeriodEnd   *time.Time

	Deleted bool

	Positions       []Position
	PaymentSchedule []PaymentScheduleEntry
}

// ActivePositions returns the order's non-deleted positions.
func (o *Order) ActivePositions() []Position {
	active := make([]Position, 0, len(o.Positions))
	for _, pos := range o.Positions {
		if !pos.Deleted {
			active = append(active, pos)
		}
	}
	return active
}

// Position is one line position of an order.
type Position struct {
	// ID links invoice line references to this position. Opaque to the
	// engine; the store generates it.
	ID string

	Number int // unique within the order, >= 1
	Title  string

	Status      PositionStatus
	PaymentType PaymentType

	NetTotal      decimal.Decimal
	InvoicedTotal decimal.Decimal
	FullyInvoiced bool
	PersonDays    decimal.Decimal

	// Own period of performance, only honored when PeriodType == PeriodOwn.
	PeriodType  PeriodType
	PeriodBegin *time.Time
	PeriodEnd   *time.Time

	TaskRef string
	Comment string
	Deleted bool
}

// PaymentScheduleEntry is one explicit payment commitment of an order.
// Entries with a missing position number, date or amount are treated as
// non-existent (see PaymentSchedulesFor).
type PaymentScheduleEntry struct {
	PositionNumber *int
	ScheduleDate   *time.Time
	Amount         *decimal.Decimal
	FullyInvoiced  bool
}

// PaymentSchedulesFor returns the order's schedule entries belonging to the
// given position, excluding entries missing any of position number, date or
// amount.
func PaymentSchedulesFor(order *Order, pos *Position) []PaymentScheduleEntry {
	var entries []PaymentScheduleEntry
	for _, entry := range order.PaymentSchedule {
		if entry.PositionNumber == nil || entry.ScheduleDate == nil || entry.Amount == nil {
			continue
		}
		if *entry.PositionNumber != pos.Number {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// =============================================================================
// INVOICES
// =============================================================================

// Invoice is a recorded outgoing invoice with its line items.
type Invoice struct {
	ID     string
	Number int

	Date        *time.Time
	Customer    string
	Project     string
	Subject     string
	PaymentDate *time.Time

	PeriodBegin *time.Time
	PeriodEnd   *time.Time

	Lines []InvoiceLine
}

// Line returns the invoice line with the given number, or nil.
func (inv *Invoice) Line(number int) *InvoiceLine {
	for i := range inv.Lines {
		if inv.Lines[i].Number == number {
			return &inv.Lines[i]
		}
	}
	return nil
}

// InvoiceLine is one line item of an invoice.
type InvoiceLine struct {
	Number int
	Text   string
	NetSum decimal.Decimal
}

// InvoiceRef is a lightweight reference linking an invoice line to an order
// position, as returned by the InvoiceIndex collaborator.
type InvoiceRef struct {
	InvoiceNumber  int
	PositionNumber int // line number within the invoice
	Date           time.Time
}

// =============================================================================
// EXTERNAL COLLABORATORS
// =============================================================================

// InvoiceIndex resolves which invoice lines are linked to an order position.
// Implemented by the store; a nil index means no invoice data is available.
type InvoiceIndex interface {
	LinkedInvoiceRefs(positionID string) []InvoiceRef
}

// InvoiceResolver resolves full invoice details by invoice number.
// A nil result (with nil error) means the invoice is unknown; the engine
// records a DataGap issue and continues.
type InvoiceResolver interface {
	ResolveInvoice(invoiceNumber int) (*Invoice, error)
}
