/*
Package factory provides JSON to Go order portfolio conversion.

PURPOSE:
  Converts JSON order definitions into forecast.Order aggregates. This
  enables portfolio configuration without code changes - controlling can
  maintain order books in JSON, and the factory creates the proper Go
  structs with validation and defaults applied.

WHY JSON?
  - Non-developers can maintain order books
  - Easy integration with admin UI and import jobs
  - Version control for demo and test portfolios
  - Database-free fixtures for scenarios

JSON SCHEMA:
  {
    "orders": [
      {
        "number": 4711,
        "status": "commissioned",
        "probability_percent": 75,
        "customer": "ACME Corp",
        "title": "Rollout Phase 1",
        "period_begin": "2026-01-01",
        "period_end": "2026-06-30",
        "positions": [
          {
            "number": 1,
            "status": "commissioned",
            "payment_type": "time_and_materials",
            "net_total": "60000",
            "invoiced_total": "12000",
            "period_type": "own",
            "period_begin": "2026-01-01",
            "period_end": "2026-04-30"
          }
        ],
        "payment_schedule": [
          {"position_number": 1, "schedule_date": "2026-02-15", "amount": "3000"}
        ]
      }
    ]
  }

KEY FEATURES:
  - Validates structure and value ranges (go-playground/validator)
  - Normalizes status, payment type and period type spellings
  - Parses exact decimal amounts (no float drift)
  - Defaults period_type to "see_above" when omitted

USAGE:
  factory := NewPortfolioFactory()
  orders, err := factory.ParsePortfolio(jsonString)

SEE ALSO:
  - forecast/types.go: Order aggregate definition
  - api/scenarios.go: Demo portfolios built on this factory
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/forecast-engine/forecast"
)

const dateFormat = "2006-01-02"

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PortfolioJSON is the JSON representation of an order book.
type PortfolioJSON struct {
	Orders []OrderJSON `json:"orders" validate:"dive"`
}

// OrderJSON is the JSON representation of one sales order.
type OrderJSON struct {
	Number             int                 `json:"number" validate:"required,gt=0"`
	Status             string              `json:"status" validate:"required"`
	ProbabilityPercent *int                `json:"probability_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	Customer           string              `json:"customer,omitempty"`
	Project            string              `json:"project,omitempty"`
	Title              string              `json:"title,omitempty"`
	ContactPerson      string              `json:"contact_person,omitempty"`
	OfferDate          string              `json:"offer_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	RecordDate         string              `json:"record_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CreatedAt          string              `json:"created_at,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PeriodBegin        string              `json:"period_begin,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PeriodEnd          string              `json:"period_end,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Deleted            bool                `json:"deleted,omitempty"`
	Positions          []PositionJSON      `json:"positions,omitempty" validate:"dive"`
	PaymentSchedule    []ScheduleEntryJSON `json:"payment_schedule,omitempty" validate:"dive"`
}

// PositionJSON is the JSON representation of one order position.
type PositionJSON struct {
	ID            string `json:"id,omitempty"`
	Number        int    `json:"number" validate:"required,gt=0"`
	Title         string `json:"title,omitempty"`
	Status        string `json:"status,omitempty"`
	PaymentType   string `json:"payment_type,omitempty"`
	NetTotal      string `json:"net_total,omitempty"`
	InvoicedTotal string `json:"invoiced_total,omitempty"`
	FullyInvoiced bool   `json:"fully_invoiced,omitempty"`
	PersonDays    string `json:"person_days,omitempty"`
	PeriodType    string `json:"period_type,omitempty"`
	PeriodBegin   string `json:"period_begin,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PeriodEnd     string `json:"period_end,omitempty" validate:"omitempty,datetime=2006-01-02"`
	TaskRef       string `json:"task_ref,omitempty"`
	Comment       string `json:"comment,omitempty"`
	Deleted       bool   `json:"deleted,omitempty"`
}

// ScheduleEntryJSON is the JSON representation of a payment schedule entry.
type ScheduleEntryJSON struct {
	PositionNumber *int   `json:"position_number,omitempty" validate:"omitempty,gt=0"`
	ScheduleDate   string `json:"schedule_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Amount         string `json:"amount,omitempty"`
	FullyInvoiced  bool   `json:"fully_invoiced,omitempty"`
}

// =============================================================================
// PORTFOLIO FACTORY
// =============================================================================

// PortfolioFactory converts JSON order books to Go structs.
type PortfolioFactory struct {
	validate *validator.Validate
}

// NewPortfolioFactory creates a new portfolio factory.
func NewPortfolioFactory() *PortfolioFactory {
	return &PortfolioFactory{validate: validator.New()}
}

// ParsePortfolio parses a JSON string into a slice of orders.
func (f *PortfolioFactory) ParsePortfolio(jsonStr string) ([]*forecast.Order, error) {
	var pj PortfolioJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse portfolio JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PortfolioJSON to order aggregates.
func (f *PortfolioFactory) FromJSON(pj PortfolioJSON) ([]*forecast.Order, error) {
	if err := f.validate.Struct(pj); err != nil {
		return nil, fmt.Errorf("invalid portfolio: %w", err)
	}

	orders := make([]*forecast.Order, 0, len(pj.Orders))
	for i := range pj.Orders {
		order, err := f.orderFromJSON(&pj.Orders[i])
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", pj.Orders[i].Number, err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// ParseOrder parses a single order definition.
func (f *PortfolioFactory) ParseOrder(jsonStr string) (*forecast.Order, error) {
	var oj OrderJSON
	if err := json.Unmarshal([]byte(jsonStr), &oj); err != nil {
		return nil, fmt.Errorf("failed to parse order JSON: %w", err)
	}
	if err := f.validate.Struct(oj); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}
	return f.orderFromJSON(&oj)
}

func (f *PortfolioFactory) orderFromJSON(oj *OrderJSON) (*forecast.Order, error) {
	status, err := parseOrderStatus(oj.Status)
	if err != nil {
		return nil, err
	}

	order := &forecast.Order{
		Number:             oj.Number,
		Status:             status,
		ProbabilityPercent: oj.ProbabilityPercent,
		Customer:           oj.Customer,
		Project:            oj.Project,
		Title:              oj.Title,
		ContactPerson:      oj.ContactPerson,
		OfferDate:          parseDatePtr(oj.OfferDate),
		RecordDate:         parseDatePtr(oj.RecordDate),
		CreatedAt:          parseDatePtr(oj.CreatedAt),
		PeriodBegin:        parseDatePtr(oj.PeriodBegin),
		PeriodEnd:          parseDatePtr(oj.PeriodEnd),
		Deleted:            oj.Deleted,
	}

	for i := range oj.Positions {
		pos, err := positionFromJSON(&oj.Positions[i])
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", oj.Positions[i].Number, err)
		}
		order.Positions = append(order.Positions, pos)
	}

	for i := range oj.PaymentSchedule {
		entry, err := scheduleEntryFromJSON(&oj.PaymentSchedule[i])
		if err != nil {
			return nil, fmt.Errorf("schedule entry %d: %w", i, err)
		}
		order.PaymentSchedule = append(order.PaymentSchedule, entry)
	}

	return order, nil
}

func positionFromJSON(pj *PositionJSON) (forecast.Position, error) {
	pos := forecast.Position{
		ID:            pj.ID,
		Number:        pj.Number,
		Title:         pj.Title,
		FullyInvoiced: pj.FullyInvoiced,
		PeriodBegin:   parseDatePtr(pj.PeriodBegin),
		PeriodEnd:     parseDatePtr(pj.PeriodEnd),
		TaskRef:       pj.TaskRef,
		Comment:       pj.Comment,
		Deleted:       pj.Deleted,
	}

	var err error
	if pos.Status, err = parsePositionStatus(pj.Status); err != nil {
		return pos, err
	}
	if pos.PaymentType, err = parsePaymentType(pj.PaymentType); err != nil {
		return pos, err
	}
	pos.PeriodType = parsePeriodType(pj.PeriodType)

	if pos.NetTotal, err = parseAmount(pj.NetTotal); err != nil {
		return pos, fmt.Errorf("net_total: %w", err)
	}
	if pos.InvoicedTotal, err = parseAmount(pj.InvoicedTotal); err != nil {
		return pos, fmt.Errorf("invoiced_total: %w", err)
	}
	if pos.PersonDays, err = parseAmount(pj.PersonDays); err != nil {
		return pos, fmt.Errorf("person_days: %w", err)
	}
	return pos, nil
}

func scheduleEntryFromJSON(sj *ScheduleEntryJSON) (forecast.PaymentScheduleEntry, error) {
	entry := forecast.PaymentScheduleEntry{
		PositionNumber: sj.PositionNumber,
		ScheduleDate:   parseDatePtr(sj.ScheduleDate),
		FullyInvoiced:  sj.FullyInvoiced,
	}
	if sj.Amount != "" {
		amount, err := decimal.NewFromString(sj.Amount)
		if err != nil {
			return entry, fmt.Errorf("amount: %w", err)
		}
		entry.Amount = &amount
	}
	return entry, nil
}

// ToJSON converts an order aggregate back to its JSON representation.
func (f *PortfolioFactory) ToJSON(order *forecast.Order) OrderJSON {
	oj := OrderJSON{
		Number:             order.Number,
		Status:             string(order.Status),
		ProbabilityPercent: order.ProbabilityPercent,
		Customer:           order.Customer,
		Project:            order.Project,
		Title:              order.Title,
		ContactPerson:      order.ContactPerson,
		OfferDate:          formatDatePtr(order.OfferDate),
		RecordDate:         formatDatePtr(order.RecordDate),
		CreatedAt:          formatDatePtr(order.CreatedAt),
		PeriodBegin:        formatDatePtr(order.PeriodBegin),
		PeriodEnd:          formatDatePtr(order.PeriodEnd),
		Deleted:            order.Deleted,
	}

	for i := range order.Positions {
		pos := &order.Positions[i]
		oj.Positions = append(oj.Positions, PositionJSON{
			ID:            pos.ID,
			Number:        pos.Number,
			Title:         pos.Title,
			Status:        string(pos.Status),
			PaymentType:   string(pos.PaymentType),
			NetTotal:      pos.NetTotal.String(),
			InvoicedTotal: pos.InvoicedTotal.String(),
			FullyInvoiced: pos.FullyInvoiced,
			PersonDays:    pos.PersonDays.String(),
			PeriodType:    string(pos.PeriodType),
			PeriodBegin:   formatDatePtr(pos.PeriodBegin),
			PeriodEnd:     formatDatePtr(pos.PeriodEnd),
			TaskRef:       pos.TaskRef,
			Comment:       pos.Comment,
			Deleted:       pos.Deleted,
		})
	}

	for _, entry := range order.PaymentSchedule {
		sj := ScheduleEntryJSON{
			PositionNumber: entry.PositionNumber,
			ScheduleDate:   formatDatePtr(entry.ScheduleDate),
			FullyInvoiced:  entry.FullyInvoiced,
		}
		if entry.Amount != nil {
			sj.Amount = entry.Amount.String()
		}
		oj.PaymentSchedule = append(oj.PaymentSchedule, sj)
	}

	return oj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseOrderStatus(s string) (forecast.OrderStatus, error) {
	switch forecast.OrderStatus(s) {
	case forecast.OrderPotential, forecast.OrderInPreparation, forecast.OrderLetterOfIntent,
		forecast.OrderPlaced, forecast.OrderCommissioned, forecast.OrderEscalation,
		forecast.OrderCompleted, forecast.OrderRejected, forecast.OrderReplaced:
		return forecast.OrderStatus(s), nil
	default:
		return "", fmt.Errorf("unknown order status: %q", s)
	}
}

// parsePositionStatus accepts the known statuses plus the empty string:
// a position without a status is kept but never forecast.
func parsePositionStatus(s string) (forecast.PositionStatus, error) {
	switch forecast.PositionStatus(s) {
	case "", forecast.PositionPotential, forecast.PositionOptional,
		forecast.PositionInPreparation, forecast.PositionLetterOfIntent,
		forecast.PositionPlaced, forecast.PositionEscalation,
		forecast.PositionCommissioned, forecast.PositionCompleted,
		forecast.PositionRejected, forecast.PositionReplaced:
		return forecast.PositionStatus(s), nil
	default:
		return "", fmt.Errorf("unknown position status: %q", s)
	}
}

func parsePaymentType(s string) (forecast.PaymentType, error) {
	switch s {
	case "", string(forecast.PaymentTimeAndMaterials), string(forecast.PaymentLumpSum),
		string(forecast.PaymentFixedPricePackage):
		return forecast.PaymentType(s), nil
	// Common spellings from import files.
	case "tam", "time_and_material":
		return forecast.PaymentTimeAndMaterials, nil
	case "pauschale":
		return forecast.PaymentLumpSum, nil
	case "fixed_price", "festpreispaket":
		return forecast.PaymentFixedPricePackage, nil
	default:
		return "", fmt.Errorf("unknown payment type: %q", s)
	}
}

func parsePeriodType(s string) forecast.PeriodType {
	switch s {
	case string(forecast.PeriodOwn):
		return forecast.PeriodOwn
	default:
		// Positions inherit the order's performance period unless they
		// explicitly carry their own.
		return forecast.PeriodSeeAbove
	}
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		// decimal.Zero is New(0, 1); use exponent 0 so blank amounts
		// round-trip bit-identically through NewFromString("0").
		return decimal.New(0, 0), nil
	}
	return decimal.NewFromString(s)
}

func parseDatePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	d, err := time.Parse(dateFormat, s)
	if err != nil {
		return nil
	}
	return &d
}

func formatDatePtr(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format(dateFormat)
}
