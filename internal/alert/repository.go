package alert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for alert persistence.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Alert, error)
	List(ctx context.Context, homeID string, limit int) ([]Alert, error)
	Create(ctx context.Context, a *Alert) error
	Acknowledge(ctx context.Context, id string) error
}

// List limit bounds.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// alertColumns is the SELECT column list for alert queries.
const alertColumns = `id, home_id, severity, title, message, source, acknowledged, created_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves an alert by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	a, err := scanAlertRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("querying alert by id: %w", err)
	}
	return a, nil
}

// List retrieves the most recent alerts for a home, newest first.
// A limit of 0 applies the default; the limit is clamped to the maximum.
func (r *SQLiteRepository) List(ctx context.Context, homeID string, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE home_id = ? ORDER BY created_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, homeID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		a, err := scanAlertRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert row: %w", err)
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alert rows: %w", err)
	}
	return alerts, nil
}

// Create persists a new alert.
func (r *SQLiteRepository) Create(ctx context.Context, a *Alert) error {
	a.CreatedAt = time.Now().UTC()

	query := `INSERT INTO alerts (id, home_id, severity, title, message, source, acknowledged, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.HomeID, string(a.Severity), a.Title, a.Message,
		nullableString(a.Source), boolToInt(a.Acknowledged),
		a.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// Acknowledge marks an alert as seen.
func (r *SQLiteRepository) Acknowledge(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET acknowledged = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("acknowledging alert: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlertRow(scanner rowScanner) (*Alert, error) {
	var (
		a            Alert
		severity     string
		source       sql.NullString
		acknowledged int
		createdAt    string
	)

	err := scanner.Scan(&a.ID, &a.HomeID, &severity, &a.Title, &a.Message,
		&source, &acknowledged, &createdAt)
	if err != nil {
		return nil, err
	}

	a.Severity = Severity(severity)
	a.Acknowledged = acknowledged != 0
	if source.Valid {
		a.Source = &source.String
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &a, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
