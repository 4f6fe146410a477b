// Package export serialises forecast results to spreadsheet-friendly CSV.
//
// The layouts mirror the two tabular views the API serves: the forecast
// sheet (one row per order position, month columns to the right) and the
// invoice sheet (one row per reconciled invoice line). Amounts are written
// with two decimal places; dates use ISO format.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/forecast-engine/forecast"
)

const dateFormat = "2006-01-02"

// WriteForecastCSV serialises a forecast result, one row per position,
// followed by a totals row.
func WriteForecastCSV(w io.Writer, result *forecast.ForecastResult) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"Order", "Pos", "Customer", "Project", "Title", "Position Title",
		"Contact", "Task", "Status", "Position Status", "Payment Type",
		"Person Days", "Net Total", "Invoiced", "To Be Invoiced", "Fully Invoiced",
		"Invoices", "Probability", "Weighted Remaining",
		"Period Begin", "Period End", "Record Date", "Months",
	}
	header = append(header, result.MonthLabels[:]...)
	if err := writer.Write(header); err != nil {
		return err
	}

	for i := range result.Rows {
		row := &result.Rows[i]
		record := []string{
			formatInt(row.OrderNumber),
			formatInt(row.PositionNumber),
			row.Customer,
			row.Project,
			row.Title,
			row.PositionTitle,
			row.ContactPerson,
			row.TaskRef,
			string(row.OrderStatus),
			string(row.PositionStatus),
			string(row.PaymentType),
			row.PersonDays.String(),
			formatAmount(row.NetTotal),
			formatAmount(row.InvoicedTotal),
			formatAmount(row.ToBeInvoiced),
			formatBool(row.FullyInvoiced),
			row.LinkedInvoices,
			row.Probability.String(),
			formatAmount(row.AccrualValue),
			row.PeriodBegin.Format(dateFormat),
			row.PeriodEnd.Format(dateFormat),
			row.RecordDate.Format(dateFormat),
			formatMonthCount(row.MonthCount),
		}
		for _, amount := range row.Months {
			record = append(record, formatAmount(amount))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	totals := make([]string, len(header))
	totals[0] = "Total"
	for i, amount := range result.MonthTotals {
		totals[len(header)-forecast.MonthCount+i] = formatAmount(amount)
	}
	if err := writer.Write(totals); err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}

// WriteInvoiceCSV serialises reconciled invoice lines, one row per line.
func WriteInvoiceCSV(w io.Writer, result *forecast.InvoiceResult) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"Invoice", "Line", "Date", "Customer", "Project", "Subject", "Text",
		"Payment Date", "Period Begin", "Period End", "Order Position",
		"Net Sum", "Month",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i := range result.Rows {
		row := &result.Rows[i]
		record := []string{
			formatInt(row.InvoiceNumber),
			formatInt(row.LineNumber),
			row.Date.Format(dateFormat),
			row.Customer,
			row.Project,
			row.Subject,
			row.LineText,
			formatDatePtr(row.PaymentDate),
			formatDatePtr(row.PeriodBegin),
			formatDatePtr(row.PeriodEnd),
			row.OrderRef,
			formatAmount(row.NetSum),
			result.MonthLabels[row.Bucket],
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatInt(n int) string {
	return strconv.Itoa(n)
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatBool(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func formatMonthCount(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func formatDatePtr(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format(dateFormat)
}
