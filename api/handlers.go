/*
handlers.go - HTTP API handlers for the revenue forecast system

PURPOSE:
  Exposes the forecast engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Orders:
    GET    /api/orders                 List all orders
    POST   /api/orders                 Create or update an order
    POST   /api/orders/import          Import a whole portfolio
    GET    /api/orders/{number}        Get order details
    DELETE /api/orders/{number}        Delete an order

  Invoices:
    POST   /api/invoices               Record an invoice (with position links)
    GET    /api/invoices/{number}      Get invoice details

  Forecast:
    GET    /api/forecast               Forecast sheet (?base=YYYY-MM-DD)
    GET    /api/forecast/export        Forecast sheet as CSV
    GET    /api/forecast/invoices      Reconciled invoice sheet
    GET    /api/forecast/invoices/export  Invoice sheet as CSV

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario
    POST   /api/scenarios/reset        Reset database

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - Portfolio: JSON to Order conversion
  - Engine: Forecast computation (store wired in as invoice index/resolver)

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator)
  3. Call domain logic (engine, store)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/forecast-engine/export"
	"github.com/warp/forecast-engine/factory"
	"github.com/warp/forecast-engine/forecast"
	"github.com/warp/forecast-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Portfolio *factory.PortfolioFactory
	Engine    *forecast.Engine

	validate *validator.Validate

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store. The store doubles
// as the engine's invoice index and resolver.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:     store,
		Portfolio: factory.NewPortfolioFactory(),
		Engine:    &forecast.Engine{Invoices: store, Resolver: store},
		validate:  validator.New(),
	}
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// ListOrders returns all orders.
// GET /api/orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Store.ListOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list orders", err)
		return
	}

	dtos := make([]factory.OrderJSON, 0, len(orders))
	for _, order := range orders {
		dtos = append(dtos, h.Portfolio.ToJSON(order))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetOrder returns a single order.
// GET /api/orders/{number}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order number", err)
		return
	}

	order, err := h.Store.GetOrder(r.Context(), number)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get order", err)
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, "Order not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, h.Portfolio.ToJSON(order))
}

// SaveOrder creates or updates an order from its JSON definition.
// POST /api/orders
func (h *Handler) SaveOrder(w http.ResponseWriter, r *http.Request) {
	var oj factory.OrderJSON
	if err := json.NewDecoder(r.Body).Decode(&oj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	orders, err := h.Portfolio.FromJSON(factory.PortfolioJSON{Orders: []factory.OrderJSON{oj}})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order", err)
		return
	}

	if err := h.Store.SaveOrder(r.Context(), orders[0]); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save order", err)
		return
	}

	writeJSON(w, http.StatusCreated, h.Portfolio.ToJSON(orders[0]))
}

// ImportPortfolio replaces or extends the order book from a portfolio
// definition.
// POST /api/orders/import
func (h *Handler) ImportPortfolio(w http.ResponseWriter, r *http.Request) {
	var pj factory.PortfolioJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	orders, err := h.Portfolio.FromJSON(pj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid portfolio", err)
		return
	}

	for _, order := range orders {
		if err := h.Store.SaveOrder(r.Context(), order); err != nil {
			writeError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to save order %d", order.Number), err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{"imported": len(orders)})
}

// DeleteOrder removes an order.
// DELETE /api/orders/{number}
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order number", err)
		return
	}

	if err := h.Store.DeleteOrder(r.Context(), number); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete order", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// SaveInvoice records an invoice and links its lines to order positions.
// POST /api/invoices
func (h *Handler) SaveInvoice(w http.ResponseWriter, r *http.Request) {
	var req SaveInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid invoice", err)
		return
	}

	inv := &forecast.Invoice{
		Number:      req.Number,
		Date:        parseDatePtr(req.Date),
		Customer:    req.Customer,
		Project:     req.Project,
		Subject:     req.Subject,
		PaymentDate: parseDatePtr(req.PaymentDate),
		PeriodBegin: parseDatePtr(req.PeriodBegin),
		PeriodEnd:   parseDatePtr(req.PeriodEnd),
	}

	links := make(map[int]string)
	for _, line := range req.Lines {
		netSum, err := decimal.NewFromString(line.NetSum)
		if err != nil {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid net_sum on line %d", line.Number), err)
			return
		}
		inv.Lines = append(inv.Lines, forecast.InvoiceLine{
			Number: line.Number,
			Text:   line.Text,
			NetSum: netSum,
		})

		if line.OrderNumber == 0 {
			continue
		}
		positionID, err := h.resolvePositionID(r, line.OrderNumber, line.PositionNumber)
		if err != nil {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Cannot link line %d", line.Number), err)
			return
		}
		links[line.Number] = positionID
	}

	if err := h.Store.SaveInvoice(r.Context(), inv, links); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save invoice", err)
		return
	}

	writeJSON(w, http.StatusCreated, invoiceToDTO(inv))
}

func (h *Handler) resolvePositionID(r *http.Request, orderNumber, positionNumber int) (string, error) {
	order, err := h.Store.GetOrder(r.Context(), orderNumber)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", fmt.Errorf("order %d not found", orderNumber)
	}
	for i := range order.Positions {
		if order.Positions[i].Number == positionNumber {
			return order.Positions[i].ID, nil
		}
	}
	return "", fmt.Errorf("order %d has no position %d", orderNumber, positionNumber)
}

// GetInvoice returns a single invoice.
// GET /api/invoices/{number}
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid invoice number", err)
		return
	}

	inv, err := h.Store.GetInvoiceByNumber(r.Context(), number)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get invoice", err)
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "Invoice not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, invoiceToDTO(inv))
}

// =============================================================================
// FORECAST HANDLERS
// =============================================================================

// GetForecast computes and returns the forecast sheet.
// GET /api/forecast?base=YYYY-MM-DD
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	result, ok := h.computeForecast(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, forecastToResponse(result))
}

// ExportForecastCSV streams the forecast sheet as CSV.
// GET /api/forecast/export?base=YYYY-MM-DD
func (h *Handler) ExportForecastCSV(w http.ResponseWriter, r *http.Request) {
	result, ok := h.computeForecast(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="forecast-%s.csv"`, result.BaseDate.Format("2006-01")))
	if err := export.WriteForecastCSV(w, result); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to write CSV", err)
	}
}

// GetInvoiceReport computes and returns the reconciled invoice sheet.
// GET /api/forecast/invoices?base=YYYY-MM-DD
func (h *Handler) GetInvoiceReport(w http.ResponseWriter, r *http.Request) {
	result, ok := h.computeInvoiceReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, invoiceReportToResponse(result))
}

// ExportInvoiceCSV streams the reconciled invoice sheet as CSV.
// GET /api/forecast/invoices/export?base=YYYY-MM-DD
func (h *Handler) ExportInvoiceCSV(w http.ResponseWriter, r *http.Request) {
	result, ok := h.computeInvoiceReport(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="invoices-%s.csv"`, result.BaseDate.Format("2006-01")))
	if err := export.WriteInvoiceCSV(w, result); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to write CSV", err)
	}
}

func (h *Handler) computeForecast(w http.ResponseWriter, r *http.Request) (*forecast.ForecastResult, bool) {
	baseDate, ok := h.baseDate(w, r)
	if !ok {
		return nil, false
	}
	orders, err := h.Store.ListOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load orders", err)
		return nil, false
	}
	return h.Engine.ComputeForecast(orders, baseDate), true
}

func (h *Handler) computeInvoiceReport(w http.ResponseWriter, r *http.Request) (*forecast.InvoiceResult, bool) {
	baseDate, ok := h.baseDate(w, r)
	if !ok {
		return nil, false
	}
	orders, err := h.Store.ListOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load orders", err)
		return nil, false
	}
	return h.Engine.ComputeInvoiceRows(orders, baseDate), true
}

// baseDate reads the optional ?base= query parameter. It defaults to the
// current month.
func (h *Handler) baseDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	base := r.URL.Query().Get("base")
	if base == "" {
		now := time.Now()
		if h.Engine.Now != nil {
			now = h.Engine.Now()
		}
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), true
	}

	baseDate, err := time.Parse(dateFormat, base)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid base date (use YYYY-MM-DD)", err)
		return time.Time{}, false
	}
	return baseDate, true
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
