/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	order books for testing and demos. Each scenario creates orders,
	positions, payment schedules and, where useful, recorded invoices that
	demonstrate specific forecast behaviors.

AVAILABLE SCENARIOS:

	consulting-quarter: Commissioned T&M order spread evenly over its period
	milestone-project:  Fixed-price order with payment schedule and a
	                    recorded, linked invoice
	pipeline:           Offers in various stages showing probability weighting

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Build a portfolio JSON anchored at the current month
 3. Parse it through the factory
 4. Save orders, then invoices with their position links

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "milestone-project"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h, base)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - factory/portfolio.go: Portfolio JSON parsing
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/forecast-engine/forecast"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "consulting-quarter",
		Name:        "Consulting Quarter",
		Description: "Commissioned time-and-materials order spread evenly over its performance period",
	},
	{
		ID:          "milestone-project",
		Name:        "Milestone Project",
		Description: "Fixed-price order with payment schedule and a recorded, linked invoice",
	},
	{
		ID:          "pipeline",
		Name:        "Sales Pipeline",
		Description: "Offers in various stages showing probability weighting and overrides",
	},
}

// ListScenarios returns the available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"scenarios": scenarios,
		"current":   h.currentScenario,
	})
}

// LoadScenario resets the database and loads the selected scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing scenario_id", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	now := time.Now()
	if h.Engine.Now != nil {
		now = h.Engine.Now()
	}
	base := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var err error
	switch req.ScenarioID {
	case "consulting-quarter":
		err = h.loadConsultingQuarter(ctx, base)
	case "milestone-project":
		err = h.loadMilestoneProject(ctx, base)
	case "pipeline":
		err = h.loadPipeline(ctx, base)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]any{"loaded": req.ScenarioID})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadConsultingQuarter(ctx context.Context, base time.Time) error {
	portfolio := fmt.Sprintf(`{
		"orders": [
			{
				"number": 4711,
				"status": "commissioned",
				"customer": "ACME Corp",
				"project": "Platform Rebuild",
				"title": "Consulting Q%d",
				"contact_person": "J. Miller",
				"record_date": %q,
				"positions": [
					{
						"number": 1,
						"title": "Senior Consulting",
						"status": "commissioned",
						"payment_type": "time_and_materials",
						"net_total": "90000",
						"invoiced_total": "15000",
						"person_days": "75",
						"period_type": "own",
						"period_begin": %q,
						"period_end": %q
					},
					{
						"number": 2,
						"title": "Architecture Review",
						"status": "placed",
						"payment_type": "time_and_materials",
						"net_total": "24000",
						"period_type": "own",
						"period_begin": %q,
						"period_end": %q
					}
				]
			}
		]
	}`,
		(int(base.Month())-1)/3+1,
		day(base, 0, -14),
		day(base, 0, 0), day(base, 3, -1),
		day(base, 1, 0), day(base, 2, -1),
	)
	return h.savePortfolio(ctx, portfolio)
}

func (h *Handler) loadMilestoneProject(ctx context.Context, base time.Time) error {
	portfolio := fmt.Sprintf(`{
		"orders": [
			{
				"number": 4800,
				"status": "commissioned",
				"customer": "Globex GmbH",
				"project": "Warehouse Automation",
				"title": "Delivery Contract",
				"record_date": %q,
				"period_begin": %q,
				"period_end": %q,
				"positions": [
					{
						"number": 1,
						"title": "Implementation",
						"status": "commissioned",
						"payment_type": "fixed_price_package",
						"net_total": "120000",
						"invoiced_total": "30000"
					}
				],
				"payment_schedule": [
					{"position_number": 1, "schedule_date": %q, "amount": "30000", "fully_invoiced": true},
					{"position_number": 1, "schedule_date": %q, "amount": "45000"},
					{"position_number": 1, "schedule_date": %q, "amount": "45000"}
				]
			}
		]
	}`,
		day(base, -1, 0),
		day(base, 0, 0), day(base, 6, -1),
		day(base, -1, 14), day(base, 1, 14), day(base, 4, 14),
	)
	if err := h.savePortfolio(ctx, portfolio); err != nil {
		return err
	}

	// The first milestone is already billed; record and link its invoice.
	order, err := h.Store.GetOrder(ctx, 4800)
	if err != nil {
		return err
	}
	invoiceDate := base.AddDate(0, 0, 9)
	inv := &forecast.Invoice{
		Number:   908,
		Date:     &invoiceDate,
		Customer: "Globex GmbH",
		Project:  "Warehouse Automation",
		Subject:  "Milestone 1: project setup",
		Lines: []forecast.InvoiceLine{
			{Number: 1, Text: "Milestone 1", NetSum: decimal.NewFromInt(30000)},
		},
	}
	return h.Store.SaveInvoice(ctx, inv, map[int]string{1: order.Positions[0].ID})
}

func (h *Handler) loadPipeline(ctx context.Context, base time.Time) error {
	portfolio := fmt.Sprintf(`{
		"orders": [
			{
				"number": 4901,
				"status": "letter_of_intent",
				"customer": "Initech",
				"title": "Data Migration",
				"record_date": %q,
				"period_begin": %q,
				"period_end": %q,
				"positions": [
					{
						"number": 1,
						"status": "in_preparation",
						"payment_type": "time_and_materials",
						"net_total": "50000"
					}
				]
			},
			{
				"number": 4902,
				"status": "potential",
				"probability_percent": 25,
				"customer": "Umbrella AG",
				"title": "Security Audit",
				"record_date": %q,
				"period_begin": %q,
				"period_end": %q,
				"positions": [
					{
						"number": 1,
						"status": "potential",
						"payment_type": "time_and_materials",
						"net_total": "36000"
					}
				]
			},
			{
				"number": 4903,
				"status": "placed",
				"customer": "Stark Industries",
				"title": "Prototype Support",
				"record_date": %q,
				"period_begin": %q,
				"period_end": %q,
				"positions": [
					{
						"number": 1,
						"status": "placed",
						"payment_type": "time_and_materials",
						"net_total": "18000"
					}
				]
			}
		]
	}`,
		day(base, 0, -7), day(base, 1, 0), day(base, 4, -1),
		day(base, 0, -3), day(base, 2, 0), day(base, 5, -1),
		day(base, 0, -10), day(base, 0, 0), day(base, 2, -1),
	)
	return h.savePortfolio(ctx, portfolio)
}

func (h *Handler) savePortfolio(ctx context.Context, portfolioJSON string) error {
	orders, err := h.Portfolio.ParsePortfolio(portfolioJSON)
	if err != nil {
		return err
	}
	for _, order := range orders {
		if err := h.Store.SaveOrder(ctx, order); err != nil {
			return err
		}
	}
	return nil
}

// day formats base shifted by months and days as an ISO date.
func day(base time.Time, months, days int) string {
	return base.AddDate(0, months, days).Format(dateFormat)
}
