/*
errors.go - Non-fatal error kinds of the forecast engine

PURPOSE:
  The engine never aborts a portfolio run: a malformed order, a dangling
  invoice reference or a negative bucket only produces an Issue on the
  result. The sentinel errors here classify those issues so callers can
  filter with errors.Is().

ERROR CATEGORIES:
  1. DataGap        - a referenced invoice or invoice line cannot be resolved
  2. InvalidRange   - a distribution's end month precedes its begin month
  3. NegativeBucket - a computed monthly amount is negative

SEE ALSO:
  - engine.go, invoices.go: where issues are recorded
  - result.go: Issue type carried on results
*/
package forecast

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDataGap is recorded when a referenced invoice or invoice line
	// cannot be resolved. The affected reference is skipped.
	ErrDataGap = errors.New("referenced invoice data missing")

	// ErrInvalidRange is recorded when a distribution's computed end-month
	// index precedes its begin-month index. The remainder write is skipped.
	ErrInvalidRange = errors.New("distribution end month precedes begin month")

	// ErrNegativeBucket is recorded when a computed monthly amount is
	// negative. The value is still recorded; the row is flagged erroneous.
	ErrNegativeBucket = errors.New("negative month amount")
)

// =============================================================================
// STRUCTURED ISSUES
// =============================================================================

// Issue is one non-fatal problem encountered during a run, surfaced to the
// renderer alongside the result.
type Issue struct {
	Err            error
	OrderNumber    int
	PositionNumber int
	InvoiceNumber  int
	Detail         string
}

func (i Issue) Error() string {
	return fmt.Sprintf("order %d pos %d: %v (%s)", i.OrderNumber, i.PositionNumber, i.Err, i.Detail)
}

func (i Issue) Unwrap() error {
	return i.Err
}

// IsDataGap reports whether the error is a missing-invoice-data issue.
func IsDataGap(err error) bool { return errors.Is(err, ErrDataGap) }

// IsInvalidRange reports whether the error is a skipped distribution range.
func IsInvalidRange(err error) bool { return errors.Is(err, ErrInvalidRange) }

// IsNegativeBucket reports whether the error is a flagged negative amount.
func IsNegativeBucket(err error) bool { return errors.Is(err, ErrNegativeBucket) }
