package forecast_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/forecast-engine/forecast"
)

func tamPosition() *forecast.Position {
	return &forecast.Position{Number: 1, PaymentType: forecast.PaymentTimeAndMaterials}
}

// =============================================================================
// EVEN DISTRIBUTION (TimeAndMaterials)
// =============================================================================

func TestDistribute_TimeAndMaterials_SpreadsEvenly(t *testing.T) {
	axis := testAxis()
	d := forecast.NewRemainderDistributor(axis)
	var row forecast.ForecastRow

	err := d.Distribute(&row, tamPosition(), &forecast.Order{}, dec("6000"), decimal.Zero,
		date(2026, time.February, 1), resolvedPeriod(testBase, date(2026, time.April, 30)))

	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	// Buckets Feb..Apr (1..3), 2000 each.
	for m := 1; m <= 3; m++ {
		if !row.Months[m].Equal(dec("2000")) {
			t.Errorf("bucket %d = %s, want 2000", m, row.Months[m])
		}
	}
	if !row.Months[0].IsZero() || !row.Months[4].IsZero() {
		t.Error("buckets outside the distribution range must stay empty")
	}
}

func TestDistribute_SharesRoundedHalfUp(t *testing.T) {
	axis := testAxis()
	d := forecast.NewRemainderDistributor(axis)
	var row forecast.ForecastRow

	err := d.Distribute(&row, tamPosition(), &forecast.Order{}, dec("7000"), decimal.Zero,
		date(2026, time.April, 1), resolvedPeriod(testBase, date(2026, time.June, 30)))

	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	// 7000 / 3 = 2333.33 in every bucket; the rounding drift (0.01) is
	// accepted, there is no last-bucket correction.
	for m := 3; m <= 5; m++ {
		if !row.Months[m].Equal(dec("2333.33")) {
			t.Errorf("bucket %d = %s, want 2333.33", m, row.Months[m])
		}
	}
}

func TestDistribute_RangePartiallyOutsideWindow_SkipsOutOfRangeBuckets(t *testing.T) {
	axis := testAxis()
	d := forecast.NewRemainderDistributor(axis)
	var row forecast.ForecastRow

	// Continuation in November, period end in February of next year: four
	// shares, two of them beyond the window. No carry-forward.
	err := d.Distribute(&row, tamPosition(), &forecast.Order{}, dec("4000"), decimal.Zero,
		date(2026, time.November, 1), resolvedPeriod(testBase, date(2027, time.February, 28)))

	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if !row.Months[10].Equal(dec("1000")) || !row.Months[11].Equal(dec("1000")) {
		t.Errorf("in-window buckets = %s / %s, want 1000 each", row.Months[10], row.Months[11])
	}
	sum := decimal.Zero
	for m := 0; m < forecast.MonthCount; m++ {
		sum = sum.Add(row.Months[m])
	}
	if !sum.Equal(dec("2000")) {
		t.Errorf("window sum = %s, want 2000 (out-of-range shares dropped)", sum)
	}
}

func TestDistribute_EndBeforeBegin_SkippedWithInvalidRange(t *testing.T) {
	axis := testAxis()
	d := forecast.NewRemainderDistributor(axis)
	var row forecast.ForecastRow

	err := d.Distribute(&row, tamPosition(), &forecast.Order{}, dec("4000"), decimal.Zero,
		date(2026, time.June, 1), resolvedPeriod(testBase, date(2026, time.March, 31)))

	if !errors.Is(err, forecast.ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
	for m := 0; m < forecast.MonthCount; m++ {
		if !row.Months[m].IsZero() {
			t.Fatalf("bucket %d written despite invalid range", m)
		}
	}
}

func TestDistribute_ZeroRemainder_WritesNothing(t *testing.T) {
	axis := testAxis()
	d := forecast.NewRemainderDistributor(axis)
	var row forecast.ForecastRow

	err := d.Distribute(&row, tamPosition(), &forecast.Order{}, dec("3000"), dec("3000"),
		testBase, resolvedPeriod(testBase, date(2026, time.June, 30)))

	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	for m := 0; m < forecast.MonthCount; m++ {
		if !row.Months[m].IsZero() {
			t.Fatalf("bucket %d written despite zero remainder", m)
		}
	}
}

// =============================================================================
// LUMP SUM ASYMMETRY
// =============================================================================

func TestDistribute_LumpSum_RequiresManualOverride(t *testing.T) {
	axis := testAxis()
	pos := &forecast.Position{Number: 1, PaymentType: forecast.PaymentLumpSum}
	period := resolvedPeriod(testBase, date(2026, time.March, 31))

	// Without an override nothing is distributed, even though diff > 0.
	// This asymmetry with TimeAndMaterials is deliberate.
	var withoutOverride forecast.ForecastRow
	d := forecast.NewRemainderDistributor(axis)
	if err := d.Distribute(&withoutOverride, pos, &forecast.Order{}, dec("3000"), decimal.Zero, testBase, period); err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	for m := 0; m < forecast.MonthCount; m++ {
		if !withoutOverride.Months[m].IsZero() {
			t.Fatal("lump sum without override must not distribute a remainder")
		}
	}

	// With an override it behaves like TimeAndMaterials.
	var withOverride forecast.ForecastRow
	d = forecast.NewRemainderDistributor(axis)
	order := &forecast.Order{ProbabilityPercent: pct(50)}
	if err := d.Distribute(&withOverride, pos, order, dec("3000"), decimal.Zero, testBase, period); err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	for m := 0; m <= 2; m++ {
		if !withOverride.Months[m].Equal(dec("1000")) {
			t.Errorf("bucket %d = %s, want 1000", m, withOverride.Months[m])
		}
	}
}

// =============================================================================
// FIXED PRICE PACKAGE
// =============================================================================

func TestDistribute_FixedPricePackage_PlacesAtPeriodEnd(t *testing.T) {
	axis := testAxis()
	pos := &forecast.Position{Number: 1, PaymentType: forecast.PaymentFixedPricePackage}
	d := forecast.NewRemainderDistributor(axis)
	var row forecast.ForecastRow

	err := d.Distribute(&row, pos, &forecast.Order{}, dec("10000"), decimal.Zero,
		testBase, resolvedPeriod(testBase, date(2026, time.April, 30)))

	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if !row.Months[3].Equal(dec("10000")) {
		t.Errorf("period-end bucket = %s, want 10000", row.Months[3])
	}
	for m := 0; m < forecast.MonthCount; m++ {
		if m != 3 && !row.Months[m].IsZero() {
			t.Fatalf("bucket %d written, want period-end only", m)
		}
	}
}

func TestDistribute_FixedPricePackage_RepeatedPlacementsAccumulate(t *testing.T) {
	// The per-row bucket map makes repeated placements additive, not
	// overwriting. Scoped to one distributor (= one position run).
	axis := testAxis()
	pos := &forecast.Position{Number: 1, PaymentType: forecast.PaymentFixedPricePackage}
	d := forecast.NewRemainderDistributor(axis)
	period := resolvedPeriod(testBase, date(2026, time.April, 30))
	var row forecast.ForecastRow

	if err := d.Distribute(&row, pos, &forecast.Order{}, dec("4000"), decimal.Zero, testBase, period); err != nil {
		t.Fatalf("first Distribute: %v", err)
	}
	if err := d.Distribute(&row, pos, &forecast.Order{}, dec("1500"), decimal.Zero, testBase, period); err != nil {
		t.Fatalf("second Distribute: %v", err)
	}

	if !row.Months[3].Equal(dec("5500")) {
		t.Errorf("accumulated bucket = %s, want 5500", row.Months[3])
	}

	// A fresh distributor must not see the previous position's buckets.
	var freshRow forecast.ForecastRow
	fresh := forecast.NewRemainderDistributor(axis)
	if err := fresh.Distribute(&freshRow, pos, &forecast.Order{}, dec("100"), decimal.Zero, testBase, period); err != nil {
		t.Fatalf("fresh Distribute: %v", err)
	}
	if !freshRow.Months[3].Equal(dec("100")) {
		t.Errorf("fresh bucket = %s, want 100 (no leak across positions)", freshRow.Months[3])
	}
}

func TestDistribute_FixedPricePackage_StalePeriodEnd(t *testing.T) {
	// Period end before the cutoff: a previous value is retained, and with
	// no previous value zero is recorded.
	axis := forecast.NewMonthAxis(date(2025, time.October, 1), testNow)
	pos := &forecast.Position{Number: 1, PaymentType: forecast.PaymentFixedPricePackage}
	stale := resolvedPeriod(date(2025, time.October, 1), date(2025, time.October, 31))
	d := forecast.NewRemainderDistributor(axis)
	var row forecast.ForecastRow

	if err := d.Distribute(&row, pos, &forecast.Order{}, dec("2000"), decimal.Zero, date(2025, time.October, 1), stale); err != nil {
		t.Fatalf("stale Distribute: %v", err)
	}
	if !row.Months[0].IsZero() {
		t.Errorf("stale bucket with no previous value = %s, want 0", row.Months[0])
	}

	// Now a fresh placement followed by a stale one into the SAME bucket:
	// Dec 20 is after the cutoff (2025-12-15), Dec 1 is not, and both map
	// to the December bucket (index 2). The fresh value must be retained
	// unchanged, the stale increment dropped.
	d = forecast.NewRemainderDistributor(axis)
	var row2 forecast.ForecastRow
	freshDecember := resolvedPeriod(date(2025, time.October, 1), date(2025, time.December, 20))
	if err := d.Distribute(&row2, pos, &forecast.Order{}, dec("2000"), decimal.Zero, date(2025, time.October, 1), freshDecember); err != nil {
		t.Fatalf("fresh Distribute: %v", err)
	}
	staleDecember := resolvedPeriod(date(2025, time.October, 1), date(2025, time.December, 1))
	if err := d.Distribute(&row2, pos, &forecast.Order{}, dec("999"), decimal.Zero, date(2025, time.October, 1), staleDecember); err != nil {
		t.Fatalf("stale Distribute: %v", err)
	}
	if !row2.Months[2].Equal(dec("2000")) {
		t.Errorf("bucket after stale increment = %s, want previous 2000 retained", row2.Months[2])
	}
}

func TestDistribute_FixedPricePackage_NegativeFlagsRow(t *testing.T) {
	// Over-scheduled position: accrual below the scheduled total makes the
	// remainder negative. The value is recorded and the row flagged.
	axis := testAxis()
	pos := &forecast.Position{Number: 1, PaymentType: forecast.PaymentFixedPricePackage}
	d := forecast.NewRemainderDistributor(axis)
	var row forecast.ForecastRow

	err := d.Distribute(&row, pos, &forecast.Order{}, dec("1000"), dec("2500"),
		testBase, resolvedPeriod(testBase, date(2026, time.March, 31)))

	if !errors.Is(err, forecast.ErrNegativeBucket) {
		t.Fatalf("err = %v, want ErrNegativeBucket", err)
	}
	if !row.Months[2].Equal(dec("-1500")) {
		t.Errorf("bucket = %s, want -1500 recorded", row.Months[2])
	}
	if !row.Error {
		t.Error("row must be flagged erroneous")
	}
}

func TestDistribute_FixedPricePackage_PeriodEndOutsideWindow_Dropped(t *testing.T) {
	axis := testAxis()
	pos := &forecast.Position{Number: 1, PaymentType: forecast.PaymentFixedPricePackage}
	d := forecast.NewRemainderDistributor(axis)
	var row forecast.ForecastRow

	err := d.Distribute(&row, pos, &forecast.Order{}, dec("8000"), decimal.Zero,
		testBase, resolvedPeriod(testBase, date(2027, time.June, 30)))

	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	for m := 0; m < forecast.MonthCount; m++ {
		if !row.Months[m].IsZero() {
			t.Fatalf("bucket %d written despite out-of-window period end", m)
		}
	}
}

func TestDistribute_UnsetPaymentType_WritesNothing(t *testing.T) {
	axis := testAxis()
	pos := &forecast.Position{Number: 1}
	d := forecast.NewRemainderDistributor(axis)
	var row forecast.ForecastRow

	if err := d.Distribute(&row, pos, &forecast.Order{}, dec("5000"), decimal.Zero, testBase, resolvedPeriod(testBase, date(2026, time.June, 30))); err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	for m := 0; m < forecast.MonthCount; m++ {
		if !row.Months[m].IsZero() {
			t.Fatal("unset payment type must not distribute")
		}
	}
}
