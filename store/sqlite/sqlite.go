/*
Package sqlite provides the SQLite-backed order book and invoice store.

PURPOSE:
  Persists the snapshot the forecast engine consumes: orders with their
  positions and payment schedules, plus recorded invoices with their line
  items. Also implements the engine's lookup collaborators
  (forecast.InvoiceIndex, forecast.InvoiceResolver).

KEY TABLES:
  orders:            sales orders (status, override, periods)
  positions:         order line positions, uuid primary key
  payment_schedules: explicit payment commitments per position
  invoices:          recorded outgoing invoices
  invoice_lines:     invoice line items, optionally linked to a position

WRITE MODEL:
  Orders and invoices are saved as whole aggregates: SaveOrder replaces the
  order's positions and schedule entries in one transaction. A position
  keeps its ID across saves: the caller's ID wins, a blank ID reuses the
  stored ID for the same position number, and only genuinely new positions
  get a generated uuid. Invoice links stay stable either way.

INDEXES:
  - idx_invoice_lines_position: invoice lookup per order position during
    reconciliation (hot path)

CONCURRENCY:
  Uses sync.RWMutex for thread-safety; SQLite is opened in WAL mode so
  multiple readers don't block. The engine-facing lookup methods take no
  context, mirroring their interface contracts.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/forecast.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := &forecast.Engine{Invoices: store, Resolver: store}

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - forecast/types.go: Domain types and collaborator interfaces
  - forecast/engine.go: Forecast computation using this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/forecast-engine/forecast"
)

const dateFormat = "2006-01-02"

// Store implements order book and invoice persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		number INTEGER PRIMARY KEY,
		status TEXT NOT NULL,
		probability_percent INTEGER,
		customer TEXT NOT NULL DEFAULT '',
		project TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		contact_person TEXT NOT NULL DEFAULT '',
		offer_date TEXT,
		record_date TEXT,
		created_at TEXT,
		period_begin TEXT,
		period_end TEXT,
		deleted INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		order_number INTEGER NOT NULL REFERENCES orders(number) ON DELETE CASCADE,
		number INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		payment_type TEXT NOT NULL DEFAULT '',
		net_total TEXT NOT NULL DEFAULT '0',
		invoiced_total TEXT NOT NULL DEFAULT '0',
		fully_invoiced INTEGER NOT NULL DEFAULT 0,
		person_days TEXT NOT NULL DEFAULT '0',
		period_type TEXT NOT NULL DEFAULT '',
		period_begin TEXT,
		period_end TEXT,
		task_ref TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT '',
		deleted INTEGER NOT NULL DEFAULT 0,
		UNIQUE(order_number, number)
	);

	CREATE TABLE IF NOT EXISTS payment_schedules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_number INTEGER NOT NULL REFERENCES orders(number) ON DELETE CASCADE,
		position_number INTEGER,
		schedule_date TEXT,
		amount TEXT,
		fully_invoiced INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		number INTEGER NOT NULL UNIQUE,
		date TEXT,
		customer TEXT NOT NULL DEFAULT '',
		project TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		payment_date TEXT,
		period_begin TEXT,
		period_end TEXT
	);

	CREATE TABLE IF NOT EXISTS invoice_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		number INTEGER NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		net_sum TEXT NOT NULL DEFAULT '0',
		order_position_id TEXT,
		UNIQUE(invoice_id, number)
	);

	CREATE INDEX IF NOT EXISTS idx_positions_order ON positions(order_number);
	CREATE INDEX IF NOT EXISTS idx_schedules_order ON payment_schedules(order_number);
	CREATE INDEX IF NOT EXISTS idx_invoice_lines_position ON invoice_lines(order_position_id)
		WHERE order_position_id IS NOT NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ORDER AGGREGATE
// =============================================================================

// SaveOrder upserts an order together with its positions and payment
// schedule in one transaction. A position without an ID reuses the stored
// ID for its position number (a new uuid only if none exists), so invoice
// links survive re-saving an order from an import file.
func (s *Store) SaveOrder(ctx context.Context, order *forecast.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (number, status, probability_percent, customer, project, title,
			contact_person, offer_date, record_date, created_at, period_begin, period_end, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET
			status = excluded.status,
			probability_percent = excluded.probability_percent,
			customer = excluded.customer,
			project = excluded.project,
			title = excluded.title,
			contact_person = excluded.contact_person,
			offer_date = excluded.offer_date,
			record_date = excluded.record_date,
			period_begin = excluded.period_begin,
			period_end = excluded.period_end,
			deleted = excluded.deleted
	`,
		order.Number, string(order.Status), intPtrOrNull(order.ProbabilityPercent),
		order.Customer, order.Project, order.Title, order.ContactPerson,
		dateOrNull(order.OfferDate), dateOrNull(order.RecordDate),
		createdAtOrNow(order.CreatedAt), dateOrNull(order.PeriodBegin), dateOrNull(order.PeriodEnd),
		boolToInt(order.Deleted),
	)
	if err != nil {
		return err
	}

	// Positions with a blank ID reuse the stored ID for their position
	// number, so invoice line links survive a re-save of the order.
	existingIDs, err := positionIDsByNumber(ctx, tx, order.Number)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM positions WHERE order_number = ?", order.Number); err != nil {
		return err
	}
	for i := range order.Positions {
		pos := &order.Positions[i]
		if pos.ID == "" {
			if id, ok := existingIDs[pos.Number]; ok {
				pos.ID = id
			} else {
				pos.ID = uuid.New().String()
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO positions (id, order_number, number, title, status, payment_type,
				net_total, invoiced_total, fully_invoiced, person_days, period_type,
				period_begin, period_end, task_ref, comment, deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			pos.ID, order.Number, pos.Number, pos.Title, string(pos.Status), string(pos.PaymentType),
			pos.NetTotal.String(), pos.InvoicedTotal.String(), boolToInt(pos.FullyInvoiced),
			pos.PersonDays.String(), string(pos.PeriodType),
			dateOrNull(pos.PeriodBegin), dateOrNull(pos.PeriodEnd),
			pos.TaskRef, pos.Comment, boolToInt(pos.Deleted),
		)
		if err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM payment_schedules WHERE order_number = ?", order.Number); err != nil {
		return err
	}
	for _, entry := range order.PaymentSchedule {
		var amount any
		if entry.Amount != nil {
			amount = entry.Amount.String()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO payment_schedules (order_number, position_number, schedule_date, amount, fully_invoiced)
			VALUES (?, ?, ?, ?, ?)
		`,
			order.Number, intPtrOrNull(entry.PositionNumber), dateOrNull(entry.ScheduleDate),
			amount, boolToInt(entry.FullyInvoiced),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func positionIDsByNumber(ctx context.Context, tx *sql.Tx, orderNumber int) (map[int]string, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT number, id FROM positions WHERE order_number = ?", orderNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int]string)
	for rows.Next() {
		var number int
		var id string
		if err := rows.Scan(&number, &id); err != nil {
			return nil, err
		}
		ids[number] = id
	}
	return ids, rows.Err()
}

// GetOrder retrieves one order aggregate by number. Returns nil if not found.
func (s *Store) GetOrder(ctx context.Context, number int) (*forecast.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, err := s.queryOrder(ctx, number)
	if err != nil || order == nil {
		return order, err
	}
	if err := s.loadPositions(ctx, order); err != nil {
		return nil, err
	}
	if err := s.loadSchedules(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns all order aggregates sorted by order number.
func (s *Store) ListOrders(ctx context.Context) ([]*forecast.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, orderColumns+" FROM orders ORDER BY number")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*forecast.Order
	for rows.Next() {
		order, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, order := range orders {
		if err := s.loadPositions(ctx, order); err != nil {
			return nil, err
		}
		if err := s.loadSchedules(ctx, order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// DeleteOrder removes an order and, via cascade, its positions and schedule.
func (s *Store) DeleteOrder(ctx context.Context, number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE number = ?", number)
	return err
}

const orderColumns = `SELECT number, status, probability_percent, customer, project, title,
	contact_person, offer_date, record_date, created_at, period_begin, period_end, deleted`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrderRow(row rowScanner) (*forecast.Order, error) {
	var (
		order                              forecast.Order
		status                             string
		probability                        sql.NullInt64
		offer, record, created, begin, end sql.NullString
		deleted                            int
	)
	err := row.Scan(&order.Number, &status, &probability, &order.Customer, &order.Project,
		&order.Title, &order.ContactPerson, &offer, &record, &created, &begin, &end, &deleted)
	if err != nil {
		return nil, err
	}
	order.Status = forecast.OrderStatus(status)
	if probability.Valid {
		p := int(probability.Int64)
		order.ProbabilityPercent = &p
	}
	order.OfferDate = parseDateOrNil(offer)
	order.RecordDate = parseDateOrNil(record)
	order.CreatedAt = parseDateOrNil(created)
	order.PeriodBegin = parseDateOrNil(begin)
	order.PeriodEnd = parseDateOrNil(end)
	order.Deleted = deleted != 0
	return &order, nil
}

func (s *Store) queryOrder(ctx context.Context, number int) (*forecast.Order, error) {
	row := s.db.QueryRowContext(ctx, orderColumns+" FROM orders WHERE number = ?", number)
	order, err := scanOrderRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return order, err
}

func (s *Store) loadPositions(ctx context.Context, order *forecast.Order) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, number, title, status, payment_type, net_total, invoiced_total,
			fully_invoiced, person_days, period_type, period_begin, period_end,
			task_ref, comment, deleted
		FROM positions WHERE order_number = ? ORDER BY number
	`, order.Number)
	if err != nil {
		return err
	}
	defer rows.Close()

	order.Positions = nil
	for rows.Next() {
		var (
			pos                                forecast.Position
			status, paymentType, periodType    string
			netTotal, invoicedTotal, personDay string
			fullyInvoiced, deleted             int
			begin, end                         sql.NullString
		)
		err := rows.Scan(&pos.ID, &pos.Number, &pos.Title, &status, &paymentType,
			&netTotal, &invoicedTotal, &fullyInvoiced, &personDay, &periodType,
			&begin, &end, &pos.TaskRef, &pos.Comment, &deleted)
		if err != nil {
			return err
		}
		pos.Status = forecast.PositionStatus(status)
		pos.PaymentType = forecast.PaymentType(paymentType)
		pos.PeriodType = forecast.PeriodType(periodType)
		if pos.NetTotal, err = decimal.NewFromString(netTotal); err != nil {
			return fmt.Errorf("position %d net total: %w", pos.Number, err)
		}
		if pos.InvoicedTotal, err = decimal.NewFromString(invoicedTotal); err != nil {
			return fmt.Errorf("position %d invoiced total: %w", pos.Number, err)
		}
		if pos.PersonDays, err = decimal.NewFromString(personDay); err != nil {
			return fmt.Errorf("position %d person days: %w", pos.Number, err)
		}
		pos.FullyInvoiced = fullyInvoiced != 0
		pos.Deleted = deleted != 0
		pos.PeriodBegin = parseDateOrNil(begin)
		pos.PeriodEnd = parseDateOrNil(end)
		order.Positions = append(order.Positions, pos)
	}
	return rows.Err()
}

func (s *Store) loadSchedules(ctx context.Context, order *forecast.Order) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position_number, schedule_date, amount, fully_invoiced
		FROM payment_schedules WHERE order_number = ? ORDER BY id
	`, order.Number)
	if err != nil {
		return err
	}
	defer rows.Close()

	order.PaymentSchedule = nil
	for rows.Next() {
		var (
			entry                 forecast.PaymentScheduleEntry
			posNumber             sql.NullInt64
			scheduleDate, amount  sql.NullString
			fullyInvoiced         int
		)
		if err := rows.Scan(&posNumber, &scheduleDate, &amount, &fullyInvoiced); err != nil {
			return err
		}
		if posNumber.Valid {
			n := int(posNumber.Int64)
			entry.PositionNumber = &n
		}
		entry.ScheduleDate = parseDateOrNil(scheduleDate)
		if amount.Valid {
			value, err := decimal.NewFromString(amount.String)
			if err != nil {
				return fmt.Errorf("schedule amount: %w", err)
			}
			entry.Amount = &value
		}
		entry.FullyInvoiced = fullyInvoiced != 0
		order.PaymentSchedule = append(order.PaymentSchedule, entry)
	}
	return rows.Err()
}

// =============================================================================
// INVOICE AGGREGATE
// =============================================================================

// SaveInvoice upserts an invoice with its lines. linkedPositions maps line
// numbers to the order position IDs they bill; unlisted lines stay unlinked.
func (s *Store) SaveInvoice(ctx context.Context, inv *forecast.Invoice, linkedPositions map[int]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (id, number, date, customer, project, subject, payment_date, period_begin, period_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET
			date = excluded.date,
			customer = excluded.customer,
			project = excluded.project,
			subject = excluded.subject,
			payment_date = excluded.payment_date,
			period_begin = excluded.period_begin,
			period_end = excluded.period_end
	`,
		inv.ID, inv.Number, dateOrNull(inv.Date), inv.Customer, inv.Project, inv.Subject,
		dateOrNull(inv.PaymentDate), dateOrNull(inv.PeriodBegin), dateOrNull(inv.PeriodEnd),
	)
	if err != nil {
		return err
	}

	// The upsert keeps the original row id when the number already exists.
	var invoiceID string
	if err := tx.QueryRowContext(ctx, "SELECT id FROM invoices WHERE number = ?", inv.Number).Scan(&invoiceID); err != nil {
		return err
	}
	inv.ID = invoiceID

	if _, err := tx.ExecContext(ctx, "DELETE FROM invoice_lines WHERE invoice_id = ?", invoiceID); err != nil {
		return err
	}
	for _, line := range inv.Lines {
		var positionID any
		if id, ok := linkedPositions[line.Number]; ok && id != "" {
			positionID = id
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_lines (invoice_id, number, text, net_sum, order_position_id)
			VALUES (?, ?, ?, ?, ?)
		`, invoiceID, line.Number, line.Text, line.NetSum.String(), positionID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetInvoiceByNumber retrieves one invoice with its lines. Returns nil if
// not found.
func (s *Store) GetInvoiceByNumber(ctx context.Context, number int) (*forecast.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryInvoice(ctx, number)
}

func (s *Store) queryInvoice(ctx context.Context, number int) (*forecast.Invoice, error) {
	var (
		inv                       forecast.Invoice
		date, payment, begin, end sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, number, date, customer, project, subject, payment_date, period_begin, period_end
		FROM invoices WHERE number = ?
	`, number).Scan(&inv.ID, &inv.Number, &date, &inv.Customer, &inv.Project, &inv.Subject,
		&payment, &begin, &end)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	inv.Date = parseDateOrNil(date)
	inv.PaymentDate = parseDateOrNil(payment)
	inv.PeriodBegin = parseDateOrNil(begin)
	inv.PeriodEnd = parseDateOrNil(end)

	rows, err := s.db.QueryContext(ctx,
		"SELECT number, text, net_sum FROM invoice_lines WHERE invoice_id = ? ORDER BY number", inv.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line   forecast.InvoiceLine
			netSum string
		)
		if err := rows.Scan(&line.Number, &line.Text, &netSum); err != nil {
			return nil, err
		}
		if line.NetSum, err = decimal.NewFromString(netSum); err != nil {
			return nil, fmt.Errorf("invoice %d line %d net sum: %w", inv.Number, line.Number, err)
		}
		inv.Lines = append(inv.Lines, line)
	}
	return &inv, rows.Err()
}

// =============================================================================
// ENGINE COLLABORATORS (forecast.InvoiceIndex, forecast.InvoiceResolver)
// =============================================================================

// LinkedInvoiceRefs returns the invoice line references billing the given
// order position. Implements forecast.InvoiceIndex; lookup failures yield
// an empty set (the engine reports missing data as gaps, not aborts).
func (s *Store) LinkedInvoiceRefs(positionID string) []forecast.InvoiceRef {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT i.number, l.number, COALESCE(i.date, '')
		FROM invoice_lines l
		JOIN invoices i ON i.id = l.invoice_id
		WHERE l.order_position_id = ?
		ORDER BY i.number, l.number
	`, positionID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var refs []forecast.InvoiceRef
	for rows.Next() {
		var (
			ref  forecast.InvoiceRef
			date string
		)
		if err := rows.Scan(&ref.InvoiceNumber, &ref.PositionNumber, &date); err != nil {
			return refs
		}
		ref.Date, _ = time.Parse(dateFormat, date)
		refs = append(refs, ref)
	}
	return refs
}

// ResolveInvoice implements forecast.InvoiceResolver.
func (s *Store) ResolveInvoice(number int) (*forecast.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryInvoice(context.Background(), number)
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset clears all data. Development and demo use only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"invoice_lines", "invoices", "payment_schedules", "positions", "orders"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func dateOrNull(d *time.Time) any {
	if d == nil {
		return nil
	}
	return d.Format(dateFormat)
}

func createdAtOrNow(d *time.Time) string {
	if d != nil {
		return d.Format(dateFormat)
	}
	return time.Now().UTC().Format(dateFormat)
}

func intPtrOrNull(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func parseDateOrNil(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	d, err := time.Parse(dateFormat, s.String)
	if err != nil {
		return nil
	}
	return &d
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
