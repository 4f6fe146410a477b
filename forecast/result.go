package forecast

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RESULT TYPES - Fresh, immutable output of one computation run
// =============================================================================

// ForecastRow is the forecast of one eligible order position: identifying
// fields, the resolved probability and accrual value, the resolved period,
// and the 12 month-bucket amounts.
type ForecastRow struct {
	OrderNumber    int
	PositionNumber int

	Customer      string
	Project       string
	Title         string
	PositionTitle string
	ContactPerson string
	TaskRef       string
	Comment       string

	OrderStatus    OrderStatus
	PositionStatus PositionStatus
	PaymentType    PaymentType

	PersonDays    decimal.Decimal
	NetTotal      decimal.Decimal
	InvoicedTotal decimal.Decimal
	ToBeInvoiced  decimal.Decimal
	FullyInvoiced bool

	// Comma-joined numbers of the invoices linked to this position.
	// Empty when no invoice index is configured.
	LinkedInvoices string

	Probability  decimal.Decimal
	AccrualValue decimal.Decimal

	PeriodBegin time.Time
	PeriodEnd   time.Time
	RecordDate  time.Time
	MonthCount  *decimal.Decimal

	// Months holds the bucketed forecast amounts, index 0 = base month.
	Months [MonthCount]decimal.Decimal

	// Error marks the row for highlighting when a bucket went negative.
	Error bool
}

// ForecastResult is the output of one ComputeForecast run.
type ForecastResult struct {
	BaseDate    time.Time
	MonthLabels [MonthCount]string
	Rows        []ForecastRow
	MonthTotals [MonthCount]decimal.Decimal
	Issues      []Issue
}

// InvoiceRow is one recorded invoice line bucketed onto the month axis.
type InvoiceRow struct {
	InvoiceNumber int
	LineNumber    int

	Date        time.Time
	Customer    string
	Project     string
	Subject     string
	LineText    string
	PaymentDate *time.Time

	PeriodBegin *time.Time
	PeriodEnd   *time.Time

	// OrderRef is "orderNumber.positionNumber" of the linked order position.
	OrderRef string

	NetSum decimal.Decimal

	// Bucket is the month axis index the net sum was posted to.
	Bucket int
}

// InvoiceResult is the output of one ComputeInvoiceRows run. It shares the
// month axis with ForecastResult so both can be displayed side by side.
type InvoiceResult struct {
	BaseDate    time.Time
	MonthLabels [MonthCount]string
	Rows        []InvoiceRow
	MonthTotals [MonthCount]decimal.Decimal
	Issues      []Issue
}
