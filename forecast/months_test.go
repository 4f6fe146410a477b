package forecast_test

import (
	"testing"
	"time"

	"github.com/warp/forecast-engine/forecast"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func datePtr(year int, month time.Month, day int) *time.Time {
	d := date(year, month, day)
	return &d
}

// Fixed clock for all axis tests: reporting month January 2026, today the
// 15th. The staleness cutoff is therefore 2025-12-15.
var (
	testBase = date(2026, time.January, 1)
	testNow  = date(2026, time.January, 15)
)

func testAxis() forecast.MonthAxis {
	return forecast.NewMonthAxis(testBase, testNow)
}

// =============================================================================
// BUCKET INDEX
// =============================================================================

func TestMonthAxis_BucketIndex(t *testing.T) {
	axis := testAxis()

	cases := []struct {
		date time.Time
		want int
	}{
		{date(2026, time.January, 1), 0},
		{date(2026, time.January, 31), 0}, // day of month is irrelevant
		{date(2026, time.February, 1), 1},
		{date(2026, time.December, 31), 11},
		{date(2027, time.January, 1), 12},  // out of range
		{date(2025, time.December, 31), -1}, // out of range
	}
	for _, c := range cases {
		if got := axis.BucketIndex(c.date); got != c.want {
			t.Errorf("BucketIndex(%s) = %d, want %d", c.date.Format("2006-01-02"), got, c.want)
		}
	}
}

func TestMonthAxis_InRange(t *testing.T) {
	axis := testAxis()
	if axis.InRange(-1) || axis.InRange(12) {
		t.Error("indices outside [0,11] must be out of range")
	}
	if !axis.InRange(0) || !axis.InRange(11) {
		t.Error("indices 0 and 11 must be in range")
	}
}

func TestMonthAxis_BaseNormalizedToFirstOfMonth(t *testing.T) {
	axis := forecast.NewMonthAxis(date(2026, time.March, 17), testNow)
	if !axis.Base().Equal(date(2026, time.March, 1)) {
		t.Errorf("Base() = %s, want 2026-03-01", axis.Base())
	}
}

func TestMonthAxis_Labels(t *testing.T) {
	labels := testAxis().Labels()
	if labels[0] != "Jan 2026" || labels[11] != "Dec 2026" {
		t.Errorf("Labels() = %v", labels)
	}
}

// =============================================================================
// CUTOFF
// =============================================================================

func TestMonthAxis_IsAfterCutoff(t *testing.T) {
	axis := testAxis()

	// Cutoff boundary is now - 1 month = 2025-12-15, strictly after.
	if axis.IsAfterCutoff(date(2025, time.December, 15)) {
		t.Error("the cutoff day itself is not after the cutoff")
	}
	if !axis.IsAfterCutoff(date(2025, time.December, 16)) {
		t.Error("the day after the cutoff must pass")
	}
	if axis.IsAfterCutoff(date(2025, time.November, 30)) {
		t.Error("dates well before the cutoff must not pass")
	}
	if !axis.IsAfterCutoff(date(2026, time.June, 1)) {
		t.Error("future dates must pass")
	}
}

// =============================================================================
// MONTH SPAN
// =============================================================================

func TestMonthSpan_Inclusive(t *testing.T) {
	if got := forecast.MonthSpan(date(2026, time.January, 15), date(2026, time.March, 1)); got != 3 {
		t.Errorf("MonthSpan Jan..Mar = %d, want 3", got)
	}
	if got := forecast.MonthSpan(date(2026, time.April, 1), date(2026, time.April, 30)); got != 1 {
		t.Errorf("MonthSpan within one month = %d, want 1", got)
	}
	if got := forecast.MonthSpan(date(2025, time.November, 1), date(2026, time.February, 1)); got != 4 {
		t.Errorf("MonthSpan across year boundary = %d, want 4", got)
	}
}

func TestMonthCountFor_GoverningRecord(t *testing.T) {
	order := &forecast.Order{
		PeriodBegin: datePtr(2026, time.January, 1),
		PeriodEnd:   datePtr(2026, time.June, 30),
	}

	// Inherited period: span of the order's dates.
	inherited := &forecast.Position{PeriodType: forecast.PeriodSeeAbove}
	if got := forecast.MonthCountFor(order, inherited); got == nil || !got.Equal(dec("6")) {
		t.Errorf("inherited MonthCountFor = %v, want 6", got)
	}

	// Own period: span of the position's dates, even though the order has
	// its own.
	own := &forecast.Position{
		PeriodType:  forecast.PeriodOwn,
		PeriodBegin: datePtr(2026, time.February, 1),
		PeriodEnd:   datePtr(2026, time.March, 31),
	}
	if got := forecast.MonthCountFor(order, own); got == nil || !got.Equal(dec("2")) {
		t.Errorf("own MonthCountFor = %v, want 2", got)
	}

	// Own period with a missing end: no count, even though the order's
	// period is complete.
	partial := &forecast.Position{
		PeriodType:  forecast.PeriodOwn,
		PeriodBegin: datePtr(2026, time.February, 1),
	}
	if got := forecast.MonthCountFor(order, partial); got != nil {
		t.Errorf("partial own MonthCountFor = %v, want nil", got)
	}
}

// =============================================================================
// PERIOD RESOLUTION
// =============================================================================

func TestResolvePeriod_InheritedFromOrder(t *testing.T) {
	order := &forecast.Order{
		PeriodBegin: datePtr(2026, time.February, 1),
		PeriodEnd:   datePtr(2026, time.May, 31),
	}
	pos := &forecast.Position{PeriodType: forecast.PeriodSeeAbove}

	period := forecast.ResolvePeriod(order, pos, testNow)
	if !period.Begin.Equal(date(2026, time.February, 1)) || !period.End.Equal(date(2026, time.May, 31)) {
		t.Errorf("inherited period = %v", period)
	}
}

func TestResolvePeriod_OwnPeriod(t *testing.T) {
	order := &forecast.Order{
		PeriodBegin: datePtr(2026, time.February, 1),
		PeriodEnd:   datePtr(2026, time.May, 31),
	}
	pos := &forecast.Position{
		PeriodType:  forecast.PeriodOwn,
		PeriodBegin: datePtr(2026, time.March, 1),
		PeriodEnd:   datePtr(2026, time.April, 30),
	}

	period := forecast.ResolvePeriod(order, pos, testNow)
	if !period.Begin.Equal(date(2026, time.March, 1)) || !period.End.Equal(date(2026, time.April, 30)) {
		t.Errorf("own period = %v", period)
	}
}

func TestResolvePeriod_PerFieldFallback_MixesOwnAndNow(t *testing.T) {
	// The own-vs-inherited rule is applied per FIELD, not per record: a
	// position flagged "own" with only a begin date resolves its end to
	// today, NOT to the order's end. This mirrors the upstream order book
	// behavior; do not "fix" it to a record-level rule.
	order := &forecast.Order{
		PeriodBegin: datePtr(2026, time.February, 1),
		PeriodEnd:   datePtr(2026, time.May, 31),
	}
	pos := &forecast.Position{
		PeriodType:  forecast.PeriodOwn,
		PeriodBegin: datePtr(2026, time.March, 1),
		// PeriodEnd deliberately absent.
	}

	period := forecast.ResolvePeriod(order, pos, testNow)
	if !period.Begin.Equal(date(2026, time.March, 1)) {
		t.Errorf("begin = %s, want own 2026-03-01", period.Begin)
	}
	if !period.End.Equal(testNow) {
		t.Errorf("end = %s, want fallback to now, not the order's end", period.End)
	}
}

func TestResolvePeriod_MissingEverything_FallsBackToNow(t *testing.T) {
	period := forecast.ResolvePeriod(&forecast.Order{}, &forecast.Position{}, testNow)
	if !period.Begin.Equal(testNow) || !period.End.Equal(testNow) {
		t.Errorf("empty period = %v, want now/now", period)
	}
}

func TestEffectiveRecordDate_FallbackChain(t *testing.T) {
	record := datePtr(2026, time.January, 2)
	created := datePtr(2026, time.January, 3)
	offer := datePtr(2026, time.January, 4)

	cases := []struct {
		name  string
		order forecast.Order
		want  time.Time
	}{
		{"record date wins", forecast.Order{RecordDate: record, CreatedAt: created, OfferDate: offer}, *record},
		{"created next", forecast.Order{CreatedAt: created, OfferDate: offer}, *created},
		{"offer next", forecast.Order{OfferDate: offer}, *offer},
		{"today last", forecast.Order{}, testNow},
	}
	for _, c := range cases {
		if got := forecast.EffectiveRecordDate(&c.order, testNow); !got.Equal(c.want) {
			t.Errorf("%s: got %s, want %s", c.name, got, c.want)
		}
	}
}
