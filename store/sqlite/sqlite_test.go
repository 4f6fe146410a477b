package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/forecast-engine/forecast"
	"github.com/warp/forecast-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleOrder() *forecast.Order {
	override := 75
	posNumber := 1
	amount := dec("3000")
	return &forecast.Order{
		Number:             4711,
		Status:             forecast.OrderCommissioned,
		ProbabilityPercent: &override,
		Customer:           "ACME Corp",
		Project:            "Platform Rebuild",
		Title:              "Rollout Phase 1",
		ContactPerson:      "J. Miller",
		OfferDate:          datePtr(2025, time.November, 3),
		RecordDate:         datePtr(2025, time.December, 1),
		PeriodBegin:        datePtr(2026, time.January, 1),
		PeriodEnd:          datePtr(2026, time.June, 30),
		Positions: []forecast.Position{
			{
				Number:        1,
				Title:         "Development",
				Status:        forecast.PositionCommissioned,
				PaymentType:   forecast.PaymentTimeAndMaterials,
				NetTotal:      dec("60000"),
				InvoicedTotal: dec("12000"),
				PersonDays:    dec("55.5"),
				PeriodType:    forecast.PeriodOwn,
				PeriodBegin:   datePtr(2026, time.January, 1),
				PeriodEnd:     datePtr(2026, time.April, 30),
				TaskRef:       "ACME-42",
			},
			{
				Number:      2,
				Title:       "Support",
				Status:      forecast.PositionPlaced,
				PaymentType: forecast.PaymentFixedPricePackage,
				NetTotal:    dec("8000"),
				PeriodType:  forecast.PeriodSeeAbove,
			},
		},
		PaymentSchedule: []forecast.PaymentScheduleEntry{
			{PositionNumber: &posNumber, ScheduleDate: datePtr(2026, time.February, 15), Amount: &amount},
		},
	}
}

// =============================================================================
// ORDER PERSISTENCE TESTS
// =============================================================================

func TestSaveOrder_RoundTrip(t *testing.T) {
	// GIVEN: A fresh store and a full order aggregate
	store := newTestStore(t)
	ctx := context.Background()
	order := sampleOrder()

	// WHEN: Saving and loading the order
	require.NoError(t, store.SaveOrder(ctx, order))
	loaded, err := store.GetOrder(ctx, 4711)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	// THEN: All fields survive the round trip
	assert.Equal(t, 4711, loaded.Number)
	assert.Equal(t, forecast.OrderCommissioned, loaded.Status)
	require.NotNil(t, loaded.ProbabilityPercent)
	assert.Equal(t, 75, *loaded.ProbabilityPercent)
	assert.Equal(t, "ACME Corp", loaded.Customer)
	assert.Equal(t, "Rollout Phase 1", loaded.Title)
	require.NotNil(t, loaded.RecordDate)
	assert.Equal(t, *datePtr(2025, time.December, 1), *loaded.RecordDate)

	require.Len(t, loaded.Positions, 2)
	dev := loaded.Positions[0]
	assert.Equal(t, 1, dev.Number)
	assert.Equal(t, forecast.PaymentTimeAndMaterials, dev.PaymentType)
	assert.True(t, dev.NetTotal.Equal(dec("60000")))
	assert.True(t, dev.InvoicedTotal.Equal(dec("12000")))
	assert.True(t, dev.PersonDays.Equal(dec("55.5")))
	assert.Equal(t, forecast.PeriodOwn, dev.PeriodType)
	require.NotNil(t, dev.PeriodEnd)
	assert.Equal(t, *datePtr(2026, time.April, 30), *dev.PeriodEnd)

	require.Len(t, loaded.PaymentSchedule, 1)
	entry := loaded.PaymentSchedule[0]
	require.NotNil(t, entry.PositionNumber)
	assert.Equal(t, 1, *entry.PositionNumber)
	require.NotNil(t, entry.Amount)
	assert.True(t, entry.Amount.Equal(dec("3000")))
	assert.False(t, entry.FullyInvoiced)
}

func TestSaveOrder_GeneratesPositionIDs(t *testing.T) {
	// GIVEN: An order whose positions carry no IDs
	store := newTestStore(t)
	ctx := context.Background()
	order := sampleOrder()

	// WHEN: Saving the order
	require.NoError(t, store.SaveOrder(ctx, order))

	// THEN: Each position got a distinct generated ID, visible to the caller
	require.NotEmpty(t, order.Positions[0].ID)
	require.NotEmpty(t, order.Positions[1].ID)
	assert.NotEqual(t, order.Positions[0].ID, order.Positions[1].ID)

	loaded, err := store.GetOrder(ctx, 4711)
	require.NoError(t, err)
	assert.Equal(t, order.Positions[0].ID, loaded.Positions[0].ID)
}

func TestSaveOrder_UpsertReplacesChildren(t *testing.T) {
	// GIVEN: A saved order
	store := newTestStore(t)
	ctx := context.Background()
	order := sampleOrder()
	require.NoError(t, store.SaveOrder(ctx, order))

	// WHEN: Saving again with a changed status, one position removed and
	// the schedule cleared
	order.Status = forecast.OrderEscalation
	order.Positions = order.Positions[:1]
	order.PaymentSchedule = nil
	require.NoError(t, store.SaveOrder(ctx, order))

	// THEN: The stored aggregate reflects the new state entirely
	loaded, err := store.GetOrder(ctx, 4711)
	require.NoError(t, err)
	assert.Equal(t, forecast.OrderEscalation, loaded.Status)
	assert.Len(t, loaded.Positions, 1)
	assert.Empty(t, loaded.PaymentSchedule)
}

func TestSaveOrder_KeepsPositionIDsAcrossSaves(t *testing.T) {
	// GIVEN: A saved order with generated position IDs
	store := newTestStore(t)
	ctx := context.Background()
	order := sampleOrder()
	require.NoError(t, store.SaveOrder(ctx, order))
	originalID := order.Positions[0].ID

	// WHEN: Saving the same aggregate again
	order.Positions[0].InvoicedTotal = dec("20000")
	require.NoError(t, store.SaveOrder(ctx, order))

	// THEN: The position keeps its ID, so invoice links stay valid
	loaded, err := store.GetOrder(ctx, 4711)
	require.NoError(t, err)
	assert.Equal(t, originalID, loaded.Positions[0].ID)
	assert.True(t, loaded.Positions[0].InvoicedTotal.Equal(dec("20000")))
}

func TestSaveOrder_BlankIDsReuseStoredPositionIDs(t *testing.T) {
	// GIVEN: A saved order with an invoice line billing position 1
	store := newTestStore(t)
	ctx := context.Background()
	order := sampleOrder()
	require.NoError(t, store.SaveOrder(ctx, order))
	positionID := order.Positions[0].ID
	require.NoError(t, store.SaveInvoice(ctx, sampleInvoice(), map[int]string{1: positionID}))

	// WHEN: Re-saving the order from a fresh parse, without position IDs
	reimported := sampleOrder()
	require.NoError(t, store.SaveOrder(ctx, reimported))

	// THEN: Positions reuse their stored IDs and the invoice link survives
	assert.Equal(t, positionID, reimported.Positions[0].ID)
	refs := store.LinkedInvoiceRefs(positionID)
	require.Len(t, refs, 1)
	assert.Equal(t, 908, refs[0].InvoiceNumber)
}

func TestGetOrder_Unknown(t *testing.T) {
	// GIVEN: An empty store
	store := newTestStore(t)

	// WHEN: Requesting an order that was never saved
	loaded, err := store.GetOrder(context.Background(), 9999)

	// THEN: No error, nil result
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestListOrders_SortedByNumber(t *testing.T) {
	// GIVEN: Two orders saved out of numeric order
	store := newTestStore(t)
	ctx := context.Background()
	second := sampleOrder()
	second.Number = 4712
	require.NoError(t, store.SaveOrder(ctx, second))
	require.NoError(t, store.SaveOrder(ctx, sampleOrder()))

	// WHEN: Listing
	orders, err := store.ListOrders(ctx)
	require.NoError(t, err)

	// THEN: Orders come back sorted with their children attached
	require.Len(t, orders, 2)
	assert.Equal(t, 4711, orders[0].Number)
	assert.Equal(t, 4712, orders[1].Number)
	assert.Len(t, orders[0].Positions, 2)
}

func TestDeleteOrder_CascadesToChildren(t *testing.T) {
	// GIVEN: A saved order with positions and schedule
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveOrder(ctx, sampleOrder()))

	// WHEN: Deleting it
	require.NoError(t, store.DeleteOrder(ctx, 4711))

	// THEN: The aggregate is gone
	loaded, err := store.GetOrder(ctx, 4711)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	orders, err := store.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

// =============================================================================
// INVOICE PERSISTENCE TESTS
// =============================================================================

func sampleInvoice() *forecast.Invoice {
	return &forecast.Invoice{
		Number:   908,
		Date:     datePtr(2026, time.February, 10),
		Customer: "ACME Corp",
		Project:  "Platform Rebuild",
		Subject:  "February services",
		Lines: []forecast.InvoiceLine{
			{Number: 1, Text: "Development work", NetSum: dec("5000")},
			{Number: 2, Text: "Travel expenses", NetSum: dec("320.50")},
		},
	}
}

func TestSaveInvoice_RoundTrip(t *testing.T) {
	// GIVEN: A fresh store
	store := newTestStore(t)
	ctx := context.Background()

	// WHEN: Saving and loading an invoice
	require.NoError(t, store.SaveInvoice(ctx, sampleInvoice(), nil))
	loaded, err := store.GetInvoiceByNumber(ctx, 908)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	// THEN: Header and lines survive
	assert.Equal(t, 908, loaded.Number)
	assert.Equal(t, "February services", loaded.Subject)
	require.NotNil(t, loaded.Date)
	assert.Equal(t, *datePtr(2026, time.February, 10), *loaded.Date)
	require.Len(t, loaded.Lines, 2)
	assert.True(t, loaded.Lines[1].NetSum.Equal(dec("320.50")))
}

func TestSaveInvoice_UpsertByNumberKeepsID(t *testing.T) {
	// GIVEN: A saved invoice
	store := newTestStore(t)
	ctx := context.Background()
	first := sampleInvoice()
	require.NoError(t, store.SaveInvoice(ctx, first, nil))

	// WHEN: Saving a new aggregate with the same number
	second := sampleInvoice()
	second.Subject = "February services (corrected)"
	require.NoError(t, store.SaveInvoice(ctx, second, nil))

	// THEN: The stored row keeps its identity and takes the new fields
	assert.Equal(t, first.ID, second.ID)
	loaded, err := store.GetInvoiceByNumber(ctx, 908)
	require.NoError(t, err)
	assert.Equal(t, "February services (corrected)", loaded.Subject)
	assert.Len(t, loaded.Lines, 2)
}

func TestGetInvoiceByNumber_Unknown(t *testing.T) {
	store := newTestStore(t)

	loaded, err := store.GetInvoiceByNumber(context.Background(), 777)

	require.NoError(t, err)
	assert.Nil(t, loaded)
}

// =============================================================================
// ENGINE COLLABORATOR TESTS
// =============================================================================

func TestLinkedInvoiceRefs_ReturnsLinesBillingPosition(t *testing.T) {
	// GIVEN: An order and two invoices, each linking one line to position 1
	store := newTestStore(t)
	ctx := context.Background()
	order := sampleOrder()
	require.NoError(t, store.SaveOrder(ctx, order))
	positionID := order.Positions[0].ID

	require.NoError(t, store.SaveInvoice(ctx, sampleInvoice(), map[int]string{1: positionID}))
	second := sampleInvoice()
	second.ID = ""
	second.Number = 910
	second.Date = datePtr(2026, time.March, 12)
	require.NoError(t, store.SaveInvoice(ctx, second, map[int]string{2: positionID}))

	// WHEN: Looking up the position's invoice references
	refs := store.LinkedInvoiceRefs(positionID)

	// THEN: Both linked lines come back with their invoice dates
	require.Len(t, refs, 2)
	assert.Equal(t, 908, refs[0].InvoiceNumber)
	assert.Equal(t, 1, refs[0].PositionNumber)
	assert.Equal(t, time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC), refs[0].Date)
	assert.Equal(t, 910, refs[1].InvoiceNumber)
	assert.Equal(t, 2, refs[1].PositionNumber)
}

func TestLinkedInvoiceRefs_UnlinkedLinesExcluded(t *testing.T) {
	// GIVEN: An invoice where only line 1 bills the position
	store := newTestStore(t)
	ctx := context.Background()
	order := sampleOrder()
	require.NoError(t, store.SaveOrder(ctx, order))
	positionID := order.Positions[0].ID
	require.NoError(t, store.SaveInvoice(ctx, sampleInvoice(), map[int]string{1: positionID}))

	// WHEN/THEN: Only the linked line is reported
	refs := store.LinkedInvoiceRefs(positionID)
	require.Len(t, refs, 1)
	assert.Equal(t, 1, refs[0].PositionNumber)

	// AND: An unknown position has no references
	assert.Empty(t, store.LinkedInvoiceRefs("no-such-position"))
}

func TestResolveInvoice(t *testing.T) {
	// GIVEN: A saved invoice
	store := newTestStore(t)
	require.NoError(t, store.SaveInvoice(context.Background(), sampleInvoice(), nil))

	// WHEN/THEN: Resolution by number finds it, unknown numbers yield nil
	inv, err := store.ResolveInvoice(908)
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Len(t, inv.Lines, 2)

	missing, err := store.ResolveInvoice(1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// =============================================================================
// MAINTENANCE TESTS
// =============================================================================

func TestReset_ClearsEverything(t *testing.T) {
	// GIVEN: A populated store
	store := newTestStore(t)
	ctx := context.Background()
	order := sampleOrder()
	require.NoError(t, store.SaveOrder(ctx, order))
	require.NoError(t, store.SaveInvoice(ctx, sampleInvoice(), map[int]string{1: order.Positions[0].ID}))

	// WHEN: Resetting
	require.NoError(t, store.Reset(ctx))

	// THEN: All aggregates are gone
	orders, err := store.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
	inv, err := store.GetInvoiceByNumber(ctx, 908)
	require.NoError(t, err)
	assert.Nil(t, inv)
}
