// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"bracket-trader/internal/errors"
	"bracket-trader/internal/models"
)

// SQLiteStore implements OrderStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based order store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Orders table: one row per bracket trading intent
	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		instrument TEXT NOT NULL,
		qty INTEGER NOT NULL,
		trigger REAL NOT NULL,
		limit_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		entry_order_id TEXT,
		sl_order_id TEXT,
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

	-- Entry-run markers: one row per trading day on which the entry guard
	-- completed a run
	CREATE TABLE IF NOT EXISTS entry_runs (
		run_date TEXT PRIMARY KEY,
		completed_at DATETIME NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateIntent inserts a new PENDING intent and returns its id.
func (s *SQLiteStore) CreateIntent(ctx context.Context, intent *models.Intent) (int64, error) {
	if intent.Quantity <= 0 {
		return 0, errors.NewValidationError("quantity", intent.Quantity, "must be positive")
	}
	if intent.TriggerPrice <= 0 || intent.LimitPrice <= 0 || intent.StopLoss <= 0 {
		return 0, errors.NewValidationError("prices", intent, "all prices must be positive")
	}
	if intent.Instrument == "" {
		return 0, errors.NewValidationError("instrument", intent.Instrument, "must not be empty")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (instrument, qty, trigger, limit_price, stop_loss, status)
		VALUES (?, ?, ?, ?, ?, 'PENDING')`,
		intent.Instrument, intent.Quantity, intent.TriggerPrice, intent.LimitPrice, intent.StopLoss)
	if err != nil {
		return 0, errors.Wrap(err, "inserting intent")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "reading intent id")
	}
	intent.ID = id
	intent.Status = models.StatusPending
	return id, nil
}

// GetIntent fetches a single intent by id.
func (s *SQLiteStore) GetIntent(ctx context.Context, id int64) (*models.Intent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, instrument, qty, trigger, limit_price, stop_loss,
		       entry_order_id, sl_order_id, status, created_at
		FROM orders WHERE id = ?`, id)

	intent, err := scanIntent(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrIntentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying intent")
	}
	return intent, nil
}

// ListPending fetches all intents awaiting entry.
func (s *SQLiteStore) ListPending(ctx context.Context) ([]models.Intent, error) {
	return s.list(ctx, `
		SELECT id, instrument, qty, trigger, limit_price, stop_loss,
		       entry_order_id, sl_order_id, status, created_at
		FROM orders WHERE status = 'PENDING' ORDER BY id`)
}

// ListIntents fetches all intents, newest first.
func (s *SQLiteStore) ListIntents(ctx context.Context) ([]models.Intent, error) {
	return s.list(ctx, `
		SELECT id, instrument, qty, trigger, limit_price, stop_loss,
		       entry_order_id, sl_order_id, status, created_at
		FROM orders ORDER BY id DESC`)
}

func (s *SQLiteStore) list(ctx context.Context, query string) ([]models.Intent, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "querying intents")
	}
	defer rows.Close()

	var intents []models.Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning intent")
		}
		intents = append(intents, *intent)
	}
	return intents, rows.Err()
}

// RecordExecution persists both broker order ids and moves the intent to
// EXECUTED in a single conditional update. Only a PENDING record may be
// executed; concurrent callers cannot double-execute the same intent.
func (s *SQLiteStore) RecordExecution(ctx context.Context, id int64, entryOrderID, slOrderID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET entry_order_id = ?, sl_order_id = ?, status = 'EXECUTED'
		WHERE id = ? AND status = 'PENDING'`,
		entryOrderID, slOrderID, id)
	if err != nil {
		return errors.Wrap(err, "recording execution")
	}
	return s.requireTransition(ctx, res, id, errors.ErrNotPending)
}

// MarkCancelled moves a PENDING intent to the terminal CANCELLED state.
func (s *SQLiteStore) MarkCancelled(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = 'CANCELLED'
		WHERE id = ? AND status = 'PENDING'`, id)
	if err != nil {
		return errors.Wrap(err, "marking cancelled")
	}
	return s.requireTransition(ctx, res, id, errors.ErrNotPending)
}

// MarkExited moves an EXECUTED intent to the terminal EXITED state.
func (s *SQLiteStore) MarkExited(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = 'EXITED'
		WHERE id = ? AND status = 'EXECUTED'`, id)
	if err != nil {
		return errors.Wrap(err, "marking exited")
	}
	return s.requireTransition(ctx, res, id, errors.ErrNotExecuted)
}

// requireTransition distinguishes "no such intent" from "wrong status" when a
// conditional update touched zero rows. statusErr names the violated
// precondition of the attempted transition.
func (s *SQLiteStore) requireTransition(ctx context.Context, res sql.Result, id int64, statusErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "checking rows affected")
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetIntent(ctx, id); err != nil {
		return err
	}
	return statusErr
}

// EntryRunDone reports whether the entry guard already completed a run on the
// given trading day (formatted YYYY-MM-DD).
func (s *SQLiteStore) EntryRunDone(ctx context.Context, day string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entry_runs WHERE run_date = ?`, day).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "querying entry run marker")
	}
	return n > 0, nil
}

// MarkEntryRunDone records that the entry guard completed a run today.
func (s *SQLiteStore) MarkEntryRunDone(ctx context.Context, day string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO entry_runs (run_date, completed_at)
		VALUES (?, ?)`, day, at.UTC())
	return errors.Wrap(err, "writing entry run marker")
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntent(r rowScanner) (*models.Intent, error) {
	var intent models.Intent
	var entryID, slID sql.NullString
	var createdAt sql.NullTime

	err := r.Scan(&intent.ID, &intent.Instrument, &intent.Quantity,
		&intent.TriggerPrice, &intent.LimitPrice, &intent.StopLoss,
		&entryID, &slID, &intent.Status, &createdAt)
	if err != nil {
		return nil, err
	}
	intent.EntryOrderID = entryID.String
	intent.SLOrderID = slID.String
	if createdAt.Valid {
		intent.CreatedAt = createdAt.Time
	}
	return &intent, nil
}

// Ensure SQLiteStore implements OrderStore
var _ OrderStore = (*SQLiteStore)(nil)
