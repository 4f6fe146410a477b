/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Orders:
    factory.OrderJSON is reused directly as both request and response
    shape - the factory already validates and normalizes it.

  Invoices:
    InvoiceDTO, SaveInvoiceRequest, InvoiceLineDTO

  Forecast:
    ForecastResponse, ForecastRowDTO, InvoiceReportResponse,
    InvoiceRowDTO, IssueDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

MONEY:
  All amounts are serialized as decimal strings ("2333.33"), never floats,
  so clients on any stack can round-trip them exactly.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/portfolio.go: OrderJSON type
*/
package api

import (
	"time"

	"github.com/warp/forecast-engine/forecast"
)

const dateFormat = "2006-01-02"

// =============================================================================
// INVOICE TYPES
// =============================================================================

// InvoiceLineDTO represents one invoice line. On save, order_number and
// position_number identify the order position the line bills (both zero
// means unlinked).
type InvoiceLineDTO struct {
	Number         int    `json:"number" validate:"required,gt=0"`
	Text           string `json:"text,omitempty"`
	NetSum         string `json:"net_sum" validate:"required"`
	OrderNumber    int    `json:"order_number,omitempty" validate:"omitempty,gt=0"`
	PositionNumber int    `json:"position_number,omitempty" validate:"omitempty,gt=0"`
}

// SaveInvoiceRequest is the request to record an invoice.
type SaveInvoiceRequest struct {
	Number      int              `json:"number" validate:"required,gt=0"`
	Date        string           `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Customer    string           `json:"customer,omitempty"`
	Project     string           `json:"project,omitempty"`
	Subject     string           `json:"subject,omitempty"`
	PaymentDate string           `json:"payment_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PeriodBegin string           `json:"period_begin,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PeriodEnd   string           `json:"period_end,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Lines       []InvoiceLineDTO `json:"lines" validate:"required,min=1,dive"`
}

// InvoiceDTO represents an invoice in API responses.
type InvoiceDTO struct {
	Number      int              `json:"number"`
	Date        string           `json:"date,omitempty"`
	Customer    string           `json:"customer,omitempty"`
	Project     string           `json:"project,omitempty"`
	Subject     string           `json:"subject,omitempty"`
	PaymentDate string           `json:"payment_date,omitempty"`
	PeriodBegin string           `json:"period_begin,omitempty"`
	PeriodEnd   string           `json:"period_end,omitempty"`
	Lines       []InvoiceLineDTO `json:"lines"`
}

func invoiceToDTO(inv *forecast.Invoice) InvoiceDTO {
	dto := InvoiceDTO{
		Number:      inv.Number,
		Date:        formatDatePtr(inv.Date),
		Customer:    inv.Customer,
		Project:     inv.Project,
		Subject:     inv.Subject,
		PaymentDate: formatDatePtr(inv.PaymentDate),
		PeriodBegin: formatDatePtr(inv.PeriodBegin),
		PeriodEnd:   formatDatePtr(inv.PeriodEnd),
	}
	for _, line := range inv.Lines {
		dto.Lines = append(dto.Lines, InvoiceLineDTO{
			Number: line.Number,
			Text:   line.Text,
			NetSum: line.NetSum.String(),
		})
	}
	return dto
}

// =============================================================================
// FORECAST TYPES
// =============================================================================

// ForecastRowDTO is one position row of the forecast sheet.
type ForecastRowDTO struct {
	OrderNumber    int    `json:"order_number"`
	PositionNumber int    `json:"position_number"`
	Customer       string `json:"customer,omitempty"`
	Project        string `json:"project,omitempty"`
	Title          string `json:"title,omitempty"`
	PositionTitle  string `json:"position_title,omitempty"`
	ContactPerson  string `json:"contact_person,omitempty"`
	TaskRef        string `json:"task_ref,omitempty"`
	Comment        string `json:"comment,omitempty"`

	OrderStatus    string `json:"order_status"`
	PositionStatus string `json:"position_status"`
	PaymentType    string `json:"payment_type,omitempty"`

	PersonDays    string `json:"person_days"`
	NetTotal      string `json:"net_total"`
	InvoicedTotal string `json:"invoiced_total"`
	ToBeInvoiced  string `json:"to_be_invoiced"`
	FullyInvoiced bool   `json:"fully_invoiced,omitempty"`

	LinkedInvoices string `json:"linked_invoices,omitempty"`

	Probability  string `json:"probability"`
	AccrualValue string `json:"weighted_remaining"`

	PeriodBegin string `json:"period_begin"`
	PeriodEnd   string `json:"period_end"`
	RecordDate  string `json:"record_date"`
	MonthCount  string `json:"month_count,omitempty"`

	Months [forecast.MonthCount]string `json:"months"`
	Error  bool                        `json:"error,omitempty"`
}

// IssueDTO reports one data problem found during computation.
type IssueDTO struct {
	Kind           string `json:"kind"`
	OrderNumber    int    `json:"order_number,omitempty"`
	PositionNumber int    `json:"position_number,omitempty"`
	InvoiceNumber  int    `json:"invoice_number,omitempty"`
	Detail         string `json:"detail,omitempty"`
}

// ForecastResponse is the full forecast sheet.
type ForecastResponse struct {
	BaseDate    string                      `json:"base_date"`
	MonthLabels [forecast.MonthCount]string `json:"month_labels"`
	Rows        []ForecastRowDTO            `json:"rows"`
	MonthTotals [forecast.MonthCount]string `json:"month_totals"`
	Issues      []IssueDTO                  `json:"issues,omitempty"`
}

// InvoiceRowDTO is one reconciled invoice line.
type InvoiceRowDTO struct {
	InvoiceNumber int    `json:"invoice_number"`
	LineNumber    int    `json:"line_number"`
	Date          string `json:"date"`
	Customer      string `json:"customer,omitempty"`
	Project       string `json:"project,omitempty"`
	Subject       string `json:"subject,omitempty"`
	LineText      string `json:"line_text,omitempty"`
	PaymentDate   string `json:"payment_date,omitempty"`
	PeriodBegin   string `json:"period_begin,omitempty"`
	PeriodEnd     string `json:"period_end,omitempty"`
	OrderRef      string `json:"order_ref"`
	NetSum        string `json:"net_sum"`
	Bucket        int    `json:"bucket"`
}

// InvoiceReportResponse is the reconciled invoice sheet.
type InvoiceReportResponse struct {
	BaseDate    string                      `json:"base_date"`
	MonthLabels [forecast.MonthCount]string `json:"month_labels"`
	Rows        []InvoiceRowDTO             `json:"rows"`
	MonthTotals [forecast.MonthCount]string `json:"month_totals"`
	Issues      []IssueDTO                  `json:"issues,omitempty"`
}

// =============================================================================
// SCENARIO TYPES
// =============================================================================

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func forecastToResponse(result *forecast.ForecastResult) ForecastResponse {
	resp := ForecastResponse{
		BaseDate: result.BaseDate.Format(dateFormat),
	}
	resp.MonthLabels = result.MonthLabels
	for i := range result.Rows {
		row := &result.Rows[i]
		dto := ForecastRowDTO{
			OrderNumber:    row.OrderNumber,
			PositionNumber: row.PositionNumber,
			Customer:       row.Customer,
			Project:        row.Project,
			Title:          row.Title,
			PositionTitle:  row.PositionTitle,
			ContactPerson:  row.ContactPerson,
			TaskRef:        row.TaskRef,
			Comment:        row.Comment,
			OrderStatus:    string(row.OrderStatus),
			PositionStatus: string(row.PositionStatus),
			PaymentType:    string(row.PaymentType),
			PersonDays:     row.PersonDays.String(),
			NetTotal:       row.NetTotal.String(),
			InvoicedTotal:  row.InvoicedTotal.String(),
			ToBeInvoiced:   row.ToBeInvoiced.String(),
			FullyInvoiced:  row.FullyInvoiced,
			LinkedInvoices: row.LinkedInvoices,
			Probability:    row.Probability.String(),
			AccrualValue:   row.AccrualValue.String(),
			PeriodBegin:    row.PeriodBegin.Format(dateFormat),
			PeriodEnd:      row.PeriodEnd.Format(dateFormat),
			RecordDate:     row.RecordDate.Format(dateFormat),
			Error:          row.Error,
		}
		if row.MonthCount != nil {
			dto.MonthCount = row.MonthCount.String()
		}
		for m, amount := range row.Months {
			dto.Months[m] = amount.String()
		}
		resp.Rows = append(resp.Rows, dto)
	}
	for i, total := range result.MonthTotals {
		resp.MonthTotals[i] = total.String()
	}
	resp.Issues = issuesToDTOs(result.Issues)
	return resp
}

func invoiceReportToResponse(result *forecast.InvoiceResult) InvoiceReportResponse {
	resp := InvoiceReportResponse{
		BaseDate: result.BaseDate.Format(dateFormat),
	}
	resp.MonthLabels = result.MonthLabels
	for i := range result.Rows {
		row := &result.Rows[i]
		resp.Rows = append(resp.Rows, InvoiceRowDTO{
			InvoiceNumber: row.InvoiceNumber,
			LineNumber:    row.LineNumber,
			Date:          row.Date.Format(dateFormat),
			Customer:      row.Customer,
			Project:       row.Project,
			Subject:       row.Subject,
			LineText:      row.LineText,
			PaymentDate:   formatDatePtr(row.PaymentDate),
			PeriodBegin:   formatDatePtr(row.PeriodBegin),
			PeriodEnd:     formatDatePtr(row.PeriodEnd),
			OrderRef:      row.OrderRef,
			NetSum:        row.NetSum.String(),
			Bucket:        row.Bucket,
		})
	}
	for i, total := range result.MonthTotals {
		resp.MonthTotals[i] = total.String()
	}
	resp.Issues = issuesToDTOs(result.Issues)
	return resp
}

func issuesToDTOs(issues []forecast.Issue) []IssueDTO {
	var dtos []IssueDTO
	for i := range issues {
		issue := &issues[i]
		dtos = append(dtos, IssueDTO{
			Kind:           issueKind(issue),
			OrderNumber:    issue.OrderNumber,
			PositionNumber: issue.PositionNumber,
			InvoiceNumber:  issue.InvoiceNumber,
			Detail:         issue.Detail,
		})
	}
	return dtos
}

func issueKind(issue *forecast.Issue) string {
	switch {
	case forecast.IsDataGap(issue):
		return "data_gap"
	case forecast.IsInvalidRange(issue):
		return "invalid_range"
	case forecast.IsNegativeBucket(issue):
		return "negative_bucket"
	default:
		return "unknown"
	}
}

func formatDatePtr(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format(dateFormat)
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
