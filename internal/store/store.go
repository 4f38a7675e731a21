package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/awaistahir/wattplan/internal/engine"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// Store handles persistent storage using SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new store and initializes the database
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	store := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// initialize creates the database schema
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		last_month_bill REAL DEFAULT 0,
		last_month_kwh REAL DEFAULT 0,
		target_bill REAL DEFAULT 0,
		expected_monthly_cost REAL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS appliances (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		watt REAL NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		daily_usage_hours REAL DEFAULT 0,
		peak_usage_hours REAL DEFAULT 0,
		off_peak_usage_hours REAL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS plans (
		user_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		body TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_appliances_user ON appliances(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// timeLayout has fixed width so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// GetProfile retrieves a user's billing profile
func (s *Store) GetProfile(ctx context.Context, userID string) (*engine.Profile, error) {
	query := `SELECT user_id, last_month_bill, last_month_kwh, target_bill, expected_monthly_cost, updated_at
		FROM profiles WHERE user_id = ?`

	var p engine.Profile
	var updatedAt string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.LastMonthBill, &p.LastMonthKWh,
		&p.TargetBill, &p.ExpectedMonthlyCost, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// UpsertProfile saves or updates a profile
func (s *Store) UpsertProfile(ctx context.Context, p *engine.Profile) error {
	p.UpdatedAt = s.now()
	query := `INSERT OR REPLACE INTO profiles
		(user_id, last_month_bill, last_month_kwh, target_bill, expected_monthly_cost, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, p.UserID, p.LastMonthBill, p.LastMonthKWh, p.TargetBill,
		p.ExpectedMonthlyCost, formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

// SaveAppliance saves or updates an appliance. CreatedAt is kept on update.
func (s *Store) SaveAppliance(ctx context.Context, a *engine.Appliance) error {
	now := s.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	query := `INSERT OR REPLACE INTO appliances
		(id, user_id, name, quantity, watt, start_time, end_time,
		 daily_usage_hours, peak_usage_hours, off_peak_usage_hours, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, a.ID, a.UserID, a.Name, a.Quantity, a.Watt, a.StartTime, a.EndTime,
		a.DailyUsageHours, a.PeakUsageHours, a.OffPeakUsageHours, formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving appliance: %w", err)
	}
	return nil
}

const applianceColumns = `id, user_id, name, quantity, watt, start_time, end_time,
	daily_usage_hours, peak_usage_hours, off_peak_usage_hours, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAppliance(row scanner) (engine.Appliance, error) {
	var a engine.Appliance
	var createdAt, updatedAt string
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Quantity, &a.Watt, &a.StartTime, &a.EndTime,
		&a.DailyUsageHours, &a.PeakUsageHours, &a.OffPeakUsageHours, &createdAt, &updatedAt)
	if err != nil {
		return a, err
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

// ListAppliances retrieves all appliances of a user in creation order
func (s *Store) ListAppliances(ctx context.Context, userID string) ([]engine.Appliance, error) {
	query := `SELECT ` + applianceColumns + ` FROM appliances WHERE user_id = ? ORDER BY created_at, name`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing appliances: %w", err)
	}
	defer rows.Close()

	appliances := []engine.Appliance{}
	for rows.Next() {
		a, err := scanAppliance(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning appliance: %w", err)
		}
		appliances = append(appliances, a)
	}
	return appliances, rows.Err()
}

// GetAppliance retrieves a single appliance owned by userID
func (s *Store) GetAppliance(ctx context.Context, userID, id string) (*engine.Appliance, error) {
	query := `SELECT ` + applianceColumns + ` FROM appliances WHERE id = ? AND user_id = ?`

	a, err := scanAppliance(s.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading appliance: %w", err)
	}
	return &a, nil
}

// DeleteAppliance deletes an appliance by ID
func (s *Store) DeleteAppliance(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM appliances WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting appliance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPlan retrieves the current plan of a user
func (s *Store) GetPlan(ctx context.Context, userID string) (*engine.Plan, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM plans WHERE user_id = ?`, userID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading plan: %w", err)
	}

	var p engine.Plan
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	return &p, nil
}

// UpsertPlan replaces the user's plan wholesale. The stored copy gets the
// next version number and a fresh CreatedAt; the caller's value is not
// modified.
func (s *Store) UpsertPlan(ctx context.Context, userID string, plan *engine.Plan) (*engine.Plan, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var version int
	err = tx.QueryRowContext(ctx, `SELECT version FROM plans WHERE user_id = ?`, userID).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reading plan version: %w", err)
	}

	stored := plan.Clone()
	stored.Version = version + 1
	stored.CreatedAt = s.now()

	body, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}

	query := `INSERT OR REPLACE INTO plans (user_id, version, body, created_at) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, userID, stored.Version, string(body), formatTime(stored.CreatedAt)); err != nil {
		return nil, fmt.Errorf("saving plan: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing plan: %w", err)
	}
	return stored, nil
}

// DeletePlan removes the user's plan. Deleting a missing plan is not an error.
func (s *Store) DeletePlan(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("deleting plan: %w", err)
	}
	return nil
}
