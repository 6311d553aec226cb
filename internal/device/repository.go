package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	ListByHome(ctx context.Context, homeID string) ([]Device, error)
	Create(ctx context.Context, d *Device) error
	Update(ctx context.Context, d *Device) error
	UpdateState(ctx context.Context, id string, state State, online bool) error
	Delete(ctx context.Context, id string) error
}

// deviceColumns is the SELECT column list for device queries.
const deviceColumns = `id, home_id, name, type, protocol, state, online,
			last_seen, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	d, err := scanDeviceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// List retrieves all devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY name`
	return r.queryDevices(ctx, query)
}

// ListByHome retrieves all devices for a home ordered by name.
func (r *SQLiteRepository) ListByHome(ctx context.Context, homeID string) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE home_id = ? ORDER BY name`
	return r.queryDevices(ctx, query, homeID)
}

// Create persists a new device. Returns ErrDeviceExists when the ID is
// already taken.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	state, err := marshalState(d.State)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	query := `INSERT INTO devices (id, home_id, name, type, protocol, state, online,
			last_seen, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		d.ID, d.HomeID, d.Name, string(d.Type), string(d.Protocol),
		state, boolToInt(d.Online), nullableTime(d.LastSeen),
		d.CreatedAt.Format(time.RFC3339), d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update persists changes to an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	state, err := marshalState(d.State)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	d.UpdatedAt = time.Now().UTC()

	query := `UPDATE devices SET home_id = ?, name = ?, type = ?, protocol = ?,
			state = ?, online = ?, last_seen = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		d.HomeID, d.Name, string(d.Type), string(d.Protocol),
		state, boolToInt(d.Online), nullableTime(d.LastSeen),
		d.UpdatedAt.Format(time.RFC3339), d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return requireRow(result, ErrDeviceNotFound)
}

// UpdateState replaces a device's state document and online flag.
// This is optimised for frequent updates from the MQTT state relay.
func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, state State, online bool) error {
	data, err := marshalState(state)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `UPDATE devices SET state = ?, online = ?, last_seen = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, data, boolToInt(online), now, now, id)
	if err != nil {
		return fmt.Errorf("updating device state: %w", err)
	}
	return requireRow(result, ErrDeviceNotFound)
}

// Delete removes a device.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireRow(result, ErrDeviceNotFound)
}

// queryDevices runs a multi-row device query.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return devices, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeviceRow(scanner rowScanner) (*Device, error) {
	var (
		d         Device
		typ       string
		protocol  string
		state     string
		online    int
		lastSeen  sql.NullString
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(&d.ID, &d.HomeID, &d.Name, &typ, &protocol,
		&state, &online, &lastSeen, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	d.Type = Type(typ)
	d.Protocol = Protocol(protocol)
	d.Online = online != 0

	if err := json.Unmarshal([]byte(state), &d.State); err != nil {
		return nil, fmt.Errorf("unmarshaling state: %w", err)
	}

	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if lastSeen.Valid {
		t, err := time.Parse(time.RFC3339, lastSeen.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen: %w", err)
		}
		d.LastSeen = &t
	}

	return &d, nil
}

// marshalState serialises a state document, treating nil as empty.
func marshalState(s State) (string, error) {
	if s == nil {
		s = State{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// requireRow converts a zero-row update into the given sentinel error.
func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
