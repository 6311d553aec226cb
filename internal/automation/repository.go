package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for rule and execution persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Rule CRUD. Soft-deleted rules are invisible to all reads.
	GetByID(ctx context.Context, id string) (*Rule, error)
	List(ctx context.Context, homeID string) ([]Rule, error)
	ListEnabled(ctx context.Context, homeID string) ([]Rule, error)
	Create(ctx context.Context, rule *Rule) error
	Update(ctx context.Context, rule *Rule) error
	Delete(ctx context.Context, id string) error

	// Execution recording. Executions transition to a terminal state
	// exactly once; UpdateExecution rejects further mutation.
	CreateExecution(ctx context.Context, exec *Execution) error
	UpdateExecution(ctx context.Context, exec *Execution) error
	GetExecution(ctx context.Context, id string) (*Execution, error)
	ListExecutions(ctx context.Context, ruleID string, limit int) ([]Execution, error)
}

// ruleColumns is the SELECT column list for rule queries.
const ruleColumns = `id, home_id, name, description, enabled, mode,
			triggers, conditions, actions, created_at, updated_at, deleted_at`

// executionColumns is the SELECT column list for execution queries.
const executionColumns = `id, rule_id, status, triggered_by, trigger_context,
			result, started_at, finished_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a rule by its unique identifier.
// Soft-deleted rules return ErrRuleNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE id = ? AND deleted_at IS NULL`

	row := r.db.QueryRowContext(ctx, query, id)
	rule, err := scanRuleRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("querying rule by id: %w", err)
	}
	return rule, nil
}

// List retrieves all live rules for a home ordered by name.
func (r *SQLiteRepository) List(ctx context.Context, homeID string) ([]Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules
		WHERE home_id = ? AND deleted_at IS NULL ORDER BY name`
	return r.queryRules(ctx, query, homeID)
}

// ListEnabled retrieves all enabled live rules for a home.
func (r *SQLiteRepository) ListEnabled(ctx context.Context, homeID string) ([]Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules
		WHERE home_id = ? AND enabled = 1 AND deleted_at IS NULL ORDER BY name`
	return r.queryRules(ctx, query, homeID)
}

// Create inserts a new rule.
func (r *SQLiteRepository) Create(ctx context.Context, rule *Rule) error {
	triggersJSON, conditionsJSON, actionsJSON, err := marshalDefinition(rule)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	query := `
		INSERT INTO rules (
			id, home_id, name, description, enabled, mode,
			triggers, conditions, actions, created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`

	_, err = r.db.ExecContext(ctx, query,
		rule.ID,
		rule.HomeID,
		rule.Name,
		nullableString(rule.Description),
		boolToInt(rule.Enabled),
		string(rule.Mode),
		triggersJSON,
		conditionsJSON,
		actionsJSON,
		rule.CreatedAt.Format(time.RFC3339),
		rule.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrRuleExists
		}
		return fmt.Errorf("inserting rule: %w", err)
	}
	return nil
}

// Update modifies an existing rule.
func (r *SQLiteRepository) Update(ctx context.Context, rule *Rule) error {
	triggersJSON, conditionsJSON, actionsJSON, err := marshalDefinition(rule)
	if err != nil {
		return err
	}

	rule.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE rules SET
			name = ?, description = ?, enabled = ?, mode = ?,
			triggers = ?, conditions = ?, actions = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query,
		rule.Name,
		nullableString(rule.Description),
		boolToInt(rule.Enabled),
		string(rule.Mode),
		triggersJSON,
		conditionsJSON,
		actionsJSON,
		rule.UpdatedAt.Format(time.RFC3339),
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Delete soft-deletes a rule by ID. Execution history is preserved.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"UPDATE rules SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// CreateExecution inserts a new execution record.
func (r *SQLiteRepository) CreateExecution(ctx context.Context, exec *Execution) error {
	contextJSON, err := marshalNullableJSON(exec.TriggerContext)
	if err != nil {
		return fmt.Errorf("marshalling trigger context: %w", err)
	}
	resultJSON, err := marshalNullableJSON(exec.Result)
	if err != nil {
		return fmt.Errorf("marshalling result: %w", err)
	}

	query := `
		INSERT INTO rule_executions (
			id, rule_id, status, triggered_by, trigger_context,
			result, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		exec.ID,
		exec.RuleID,
		string(exec.Status),
		exec.TriggeredBy,
		contextJSON,
		resultJSON,
		exec.StartedAt.Format(time.RFC3339),
		nullableTime(exec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// UpdateExecution finalizes an in-progress execution record.
//
// The WHERE clause only matches in_progress rows, so a second finalize
// attempt returns ErrExecutionFinalized rather than mutating history.
func (r *SQLiteRepository) UpdateExecution(ctx context.Context, exec *Execution) error {
	resultJSON, err := marshalNullableJSON(exec.Result)
	if err != nil {
		return fmt.Errorf("marshalling result: %w", err)
	}

	query := `
		UPDATE rule_executions SET
			status = ?, result = ?, finished_at = ?
		WHERE id = ? AND status = 'in_progress'`

	result, err := r.db.ExecContext(ctx, query,
		string(exec.Status),
		resultJSON,
		nullableTime(exec.FinishedAt),
		exec.ID,
	)
	if err != nil {
		return fmt.Errorf("updating execution: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Distinguish missing from already-terminal
		var status string
		row := r.db.QueryRowContext(ctx,
			"SELECT status FROM rule_executions WHERE id = ?", exec.ID)
		if scanErr := row.Scan(&status); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return ErrExecutionNotFound
			}
			return fmt.Errorf("checking execution status: %w", scanErr)
		}
		return ErrExecutionFinalized
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (r *SQLiteRepository) GetExecution(ctx context.Context, id string) (*Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM rule_executions WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	exec, err := scanExecutionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("querying execution: %w", err)
	}
	return exec, nil
}

// ListExecutions retrieves recent executions for a rule, newest first.
func (r *SQLiteRepository) ListExecutions(ctx context.Context, ruleID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	query := `SELECT ` + executionColumns + ` FROM rule_executions
		WHERE rule_id = ?
		ORDER BY started_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var executions []Execution
	for rows.Next() {
		exec, scanErr := scanExecutionRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning execution: %w", scanErr)
		}
		executions = append(executions, *exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return executions, nil
}

// queryRules executes a query and returns a slice of rules.
func (r *SQLiteRepository) queryRules(ctx context.Context, query string, args ...any) ([]Rule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		rule, scanErr := scanRuleRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning rule: %w", scanErr)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}
	return rules, nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRuleRow(scanner rowScanner) (*Rule, error) {
	var r Rule
	var description, deletedAt sql.NullString
	var triggersJSON, conditionsJSON, actionsJSON string
	var enabled int
	var mode, createdAt, updatedAt string

	err := scanner.Scan(
		&r.ID,
		&r.HomeID,
		&r.Name,
		&description,
		&enabled,
		&mode,
		&triggersJSON,
		&conditionsJSON,
		&actionsJSON,
		&createdAt,
		&updatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		r.Description = &description.String
	}
	r.Enabled = enabled != 0
	r.Mode = ExecutionMode(mode)

	// Parse timestamps (stored as RFC3339)
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		r.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		r.UpdatedAt = t
	}
	if deletedAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339, deletedAt.String); parseErr == nil {
			r.DeletedAt = &t
		}
	}

	if err := unmarshalList(triggersJSON, &r.Triggers); err != nil {
		return nil, fmt.Errorf("unmarshalling triggers: %w", err)
	}
	if err := unmarshalList(conditionsJSON, &r.Conditions); err != nil {
		return nil, fmt.Errorf("unmarshalling conditions: %w", err)
	}
	if err := unmarshalList(actionsJSON, &r.Actions); err != nil {
		return nil, fmt.Errorf("unmarshalling actions: %w", err)
	}
	if r.Triggers == nil {
		r.Triggers = []Trigger{}
	}
	if r.Conditions == nil {
		r.Conditions = []Condition{}
	}
	if r.Actions == nil {
		r.Actions = []Action{}
	}

	return &r, nil
}

func scanExecutionRow(scanner rowScanner) (*Execution, error) {
	var e Execution
	var status, triggeredBy, startedAt string
	var contextJSON, resultJSON, finishedAt sql.NullString

	err := scanner.Scan(
		&e.ID,
		&e.RuleID,
		&status,
		&triggeredBy,
		&contextJSON,
		&resultJSON,
		&startedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Status = ExecutionStatus(status)
	e.TriggeredBy = triggeredBy

	if t, parseErr := time.Parse(time.RFC3339, startedAt); parseErr == nil {
		e.StartedAt = t
	}
	if finishedAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339, finishedAt.String); parseErr == nil {
			e.FinishedAt = &t
		}
	}

	if contextJSON.Valid && contextJSON.String != "" && contextJSON.String != "null" {
		if jsonErr := json.Unmarshal([]byte(contextJSON.String), &e.TriggerContext); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling trigger context: %w", jsonErr)
		}
	}
	if resultJSON.Valid && resultJSON.String != "" && resultJSON.String != "null" {
		if jsonErr := json.Unmarshal([]byte(resultJSON.String), &e.Result); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling result: %w", jsonErr)
		}
	}

	return &e, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

// marshalDefinition serialises the rule's trigger/condition/action lists.
func marshalDefinition(rule *Rule) (triggers, conditions, actions string, err error) {
	t, err := json.Marshal(emptyIfNilTriggers(rule.Triggers))
	if err != nil {
		return "", "", "", fmt.Errorf("marshalling triggers: %w", err)
	}
	c, err := json.Marshal(emptyIfNilConditions(rule.Conditions))
	if err != nil {
		return "", "", "", fmt.Errorf("marshalling conditions: %w", err)
	}
	a, err := json.Marshal(emptyIfNilActions(rule.Actions))
	if err != nil {
		return "", "", "", fmt.Errorf("marshalling actions: %w", err)
	}
	return string(t), string(c), string(a), nil
}

func emptyIfNilTriggers(s []Trigger) []Trigger {
	if s == nil {
		return []Trigger{}
	}
	return s
}

func emptyIfNilConditions(s []Condition) []Condition {
	if s == nil {
		return []Condition{}
	}
	return s
}

func emptyIfNilActions(s []Action) []Action {
	if s == nil {
		return []Action{}
	}
	return s
}

// unmarshalList decodes a JSON array column, treating "" and "[]" as empty.
func unmarshalList(raw string, dest any) error {
	if raw == "" || raw == "[]" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dest)
}

// marshalNullableJSON serialises a value to a nullable JSON column.
// Nil values store as NULL rather than the string "null".
func marshalNullableJSON(v any) (sql.NullString, error) {
	switch val := v.(type) {
	case nil:
		return sql.NullString{}, nil
	case map[string]any:
		if val == nil {
			return sql.NullString{}, nil
		}
	case *ExecutionResult:
		if val == nil {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
