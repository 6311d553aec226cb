package automation

import (
	"context"
	"fmt"
	"time"
)

// Logger is the minimal logging interface the automation package needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// EventPublisher is the interface for broadcasting realtime events.
// It is implemented by the realtime hub; delivery is fire-and-forget.
type EventPublisher interface {
	// PublishHome sends a named event to all connections subscribed to
	// the given home channel.
	PublishHome(homeID, event string, payload any)
}

// StateSource supplies current device states and sensor readings for
// condition evaluation. Implemented by the device registry; may be nil,
// in which case conditions needing lookups fail closed.
type StateSource interface {
	DeviceStates(ctx context.Context, homeID string) (map[string]string, error)
	SensorValues(ctx context.Context, homeID string) (map[string]float64, error)
}

// MetricsSink records rule run durations for telemetry. Implemented by
// the influxdb client; optional.
type MetricsSink interface {
	WriteExecutionMetric(ruleID, status string, duration time.Duration)
}

// conditionsNotMetReason is the result reason for a no-op run.
const conditionsNotMetReason = "conditions not met"

// finalizeTimeout bounds the terminal write to the execution record.
// It is independent of the run deadline; see finalize.
const finalizeTimeout = 5 * time.Second

// Engine orchestrates rule runs.
//
// Each invocation follows the lifecycle in_progress -> success | failed.
// The execution record is created before any work starts, so a crash
// mid-run leaves a durable, inspectable record rather than silent loss,
// and is finalized exactly once on every path, including panics.
//
// Thread Safety: RunRule is safe for concurrent use. Concurrent runs of
// the same rule each get an independent execution record.
type Engine struct {
	repo     Repository
	executor *Executor
	states   StateSource
	events   EventPublisher
	metrics  MetricsSink
	logger   Logger

	// maxExecutionTime is the hard limit for a whole rule run. Prevents
	// goroutine accumulation from runaway runs.
	maxExecutionTime time.Duration
}

// NewEngine creates a new automation engine.
//
// Parameters:
//   - repo: Rule and execution persistence
//   - executor: Action executor
//   - states: Device/sensor state source for condition evaluation (may be nil)
//   - events: Realtime event publisher (may be nil)
//   - maxExecutionTime: Hard limit for a whole run (zero = 60s default)
//   - logger: Logger instance (may be nil)
func NewEngine(repo Repository, executor *Executor, states StateSource, events EventPublisher, maxExecutionTime time.Duration, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	if maxExecutionTime <= 0 {
		maxExecutionTime = 60 * time.Second
	}
	return &Engine{
		repo:             repo,
		executor:         executor,
		states:           states,
		events:           events,
		logger:           logger,
		maxExecutionTime: maxExecutionTime,
	}
}

// SetMetrics sets an optional telemetry sink. Each finalized run writes
// one execution metric carrying the terminal status and duration.
func (e *Engine) SetMetrics(sink MetricsSink) {
	e.metrics = sink
}

// RunRule runs a rule by ID and returns its finalized execution record.
//
// Disabled and missing rules are rejected before an execution record is
// created. Rules with zero actions (drafts) are likewise rejected. Once
// a record exists, every path finalizes it: conditions not met is a
// normal success with zero outcomes, action failures aggregate into a
// failed execution with all outcomes present, and unexpected errors or
// panics finalize as failed with the error text preserved.
//
// Returns:
//   - *Execution: The finalized execution record
//   - error: nil on a finalized run, or:
//   - ErrRuleNotFound if the rule doesn't exist or is soft-deleted
//   - ErrRuleDisabled if the rule is disabled
//   - ErrNoActions if the rule is a draft
func (e *Engine) RunRule(ctx context.Context, ruleID, triggeredBy string, triggerContext map[string]any) (*Execution, error) {
	ctx, cancel := context.WithTimeout(ctx, e.maxExecutionTime)
	defer cancel()

	rule, err := e.repo.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	// Rejected invocations never create an execution record.
	if !rule.Enabled {
		return nil, ErrRuleDisabled
	}
	if rule.IsDraft() {
		return nil, ErrNoActions
	}

	exec := &Execution{
		ID:             GenerateID(),
		RuleID:         rule.ID,
		Status:         StatusInProgress,
		TriggeredBy:    triggeredBy,
		TriggerContext: triggerContext,
		StartedAt:      time.Now().UTC(),
	}

	if createErr := e.repo.CreateExecution(ctx, exec); createErr != nil {
		return nil, fmt.Errorf("creating execution record: %w", createErr)
	}

	e.logger.Info("rule run started",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"execution_id", exec.ID,
		"triggered_by", triggeredBy,
	)

	e.run(ctx, rule, exec)
	e.finalize(ctx, exec)
	e.publishExecuted(rule, exec)

	return exec, nil
}

// run evaluates and executes the rule, setting the terminal status and
// result on exec. Panics from the evaluator or executor are converted
// into a failed result so the record is never left in_progress.
func (e *Engine) run(ctx context.Context, rule *Rule, exec *Execution) {
	defer func() {
		if r := recover(); r != nil {
			exec.Status = StatusFailed
			exec.Result = &ExecutionResult{Error: fmt.Sprintf("panic: %v", r)}
			e.logger.Error("rule run panic recovered",
				"rule_id", rule.ID,
				"execution_id", exec.ID,
				"panic", r,
			)
		}
	}()

	evaluation, err := Evaluate(rule, e.buildContext(ctx, rule.HomeID))
	if err != nil {
		// The enabled check already passed; anything here is unexpected.
		exec.Status = StatusFailed
		exec.Result = &ExecutionResult{Error: err.Error()}
		return
	}

	if !evaluation.ShouldRun {
		// Normal no-op outcome, not an error.
		exec.Status = StatusSuccess
		exec.Result = &ExecutionResult{
			Reason:     conditionsNotMetReason,
			BlockedBy:  &evaluation.BlockedBy,
			Unresolved: evaluation.Unresolved,
		}
		return
	}

	outcomes := e.executor.Execute(ctx, rule.HomeID, evaluation.Actions, rule.Mode)

	exec.Status = StatusSuccess
	result := &ExecutionResult{
		Outcomes:   outcomes,
		Unresolved: evaluation.Unresolved,
	}
	for _, outcome := range outcomes {
		if outcome.Failed() {
			exec.Status = StatusFailed
			result.Error = fmt.Sprintf("%d of %d actions failed", countFailed(outcomes), len(outcomes))
			break
		}
	}
	exec.Result = result
}

// buildContext assembles the evaluation context from the state source.
func (e *Engine) buildContext(ctx context.Context, homeID string) Context {
	evalCtx := Context{Now: time.Now()}

	if e.states == nil {
		return evalCtx
	}

	// Lookup failures degrade to fail-closed conditions, not run errors.
	if states, err := e.states.DeviceStates(ctx, homeID); err == nil {
		evalCtx.DeviceStates = states
	} else {
		e.logger.Warn("device state lookup failed", "home_id", homeID, "error", err)
	}
	if values, err := e.states.SensorValues(ctx, homeID); err == nil {
		evalCtx.SensorValues = values
	} else {
		e.logger.Warn("sensor value lookup failed", "home_id", homeID, "error", err)
	}

	return evalCtx
}

// finalize persists the terminal state of an execution.
//
// The run context may already be dead here: the run deadline can expire
// mid-run, and the caller's request context can be cancelled on
// disconnect. The terminal write uses a detached context with its own
// short timeout so the record never stays in_progress because the run
// that produced it ran out of time.
func (e *Engine) finalize(ctx context.Context, exec *Execution) {
	finished := time.Now().UTC()
	exec.FinishedAt = &finished

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if err := e.repo.UpdateExecution(writeCtx, exec); err != nil {
		e.logger.Error("failed to finalize execution record",
			"execution_id", exec.ID,
			"status", exec.Status,
			"error", err,
		)
	}

	e.logger.Info("rule run complete",
		"rule_id", exec.RuleID,
		"execution_id", exec.ID,
		"status", exec.Status,
		"duration_ms", finished.Sub(exec.StartedAt).Milliseconds(),
	)

	if e.metrics != nil {
		e.metrics.WriteExecutionMetric(exec.RuleID, string(exec.Status), finished.Sub(exec.StartedAt))
	}
}

// publishExecuted broadcasts the terminal result on the rule's home channel.
func (e *Engine) publishExecuted(rule *Rule, exec *Execution) {
	if e.events == nil {
		return
	}

	e.events.PublishHome(rule.HomeID, "automation:executed", map[string]any{
		"execution_id": exec.ID,
		"rule_id":      rule.ID,
		"rule_name":    rule.Name,
		"status":       string(exec.Status),
	})
}

// countFailed returns the number of failed outcomes.
func countFailed(outcomes []ActionOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Failed() {
			n++
		}
	}
	return n
}
