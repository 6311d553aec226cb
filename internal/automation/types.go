package automation

import "time"

// Rule represents a stored automation definition. Triggers describe what
// should invoke the rule, conditions guard execution at run time, and
// actions are the work performed when the rule runs.
type Rule struct {
	// Identity
	ID     string `json:"id"`
	HomeID string `json:"home_id"`
	Name   string `json:"name"`

	// Description (optional)
	Description *string `json:"description,omitempty"`

	// Configuration
	Enabled bool          `json:"enabled"`
	Mode    ExecutionMode `json:"mode"`

	// Definition (ordered)
	Triggers   []Trigger   `json:"triggers"`
	Conditions []Condition `json:"conditions"`
	Actions    []Action    `json:"actions"`

	// Timestamps
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsDraft reports whether the rule is a draft. A draft has no actions
// and can be stored and edited but never executed.
func (r *Rule) IsDraft() bool {
	return len(r.Actions) == 0
}

// ExecutionMode controls how a rule's actions are consumed.
type ExecutionMode string

const (
	// ModeSequential runs actions one at a time in declared order.
	ModeSequential ExecutionMode = "sequential"

	// ModeParallel starts all actions concurrently and joins on all outcomes.
	ModeParallel ExecutionMode = "parallel"
)

// TriggerType identifies a trigger variant.
type TriggerType string

const (
	TriggerSchedule    TriggerType = "schedule"
	TriggerDeviceState TriggerType = "device_state"
	TriggerSensor      TriggerType = "sensor"
	TriggerLocation    TriggerType = "location"
)

// Trigger describes what should invoke a rule. Triggers are descriptive;
// matching them against live events is the scheduler's job, but their
// shape is preserved here for evaluation context and storage.
//
// Only the fields for the tagged variant are populated:
//   - schedule: Time (HH:MM) and Days
//   - device_state: DeviceID and State
//   - sensor: SensorID and Threshold
//   - location: Zone and Direction (enter/leave)
type Trigger struct {
	Type TriggerType `json:"type"`

	// schedule
	Time string   `json:"time,omitempty"`
	Days []string `json:"days,omitempty"`

	// device_state
	DeviceID string `json:"device_id,omitempty"`
	State    string `json:"state,omitempty"`

	// sensor
	SensorID  string  `json:"sensor_id,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`

	// location
	Zone      string `json:"zone,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// ConditionType identifies a condition variant.
type ConditionType string

const (
	ConditionDeviceState ConditionType = "device_state"
	ConditionTimeRange   ConditionType = "time_range"
	ConditionDayOfWeek   ConditionType = "day_of_week"
	ConditionSensorValue ConditionType = "sensor_value"
)

// Operator is the comparison applied by a condition.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpBetween     Operator = "between"
)

// Condition is a guard evaluated before a rule's actions execute.
// All conditions in a rule are ANDed; an empty list means "always true".
//
// Only the fields for the tagged variant are populated:
//   - device_state: DeviceID, Operator (equals) and State
//   - time_range: Start and End (HH:MM, inclusive; End < Start wraps midnight)
//   - day_of_week: Days (lowercase English day names)
//   - sensor_value: SensorID, Operator, Value and (for between) UpperValue
type Condition struct {
	Type     ConditionType `json:"type"`
	Operator Operator      `json:"operator,omitempty"`

	// device_state
	DeviceID string `json:"device_id,omitempty"`
	State    string `json:"state,omitempty"`

	// time_range
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`

	// day_of_week
	Days []string `json:"days,omitempty"`

	// sensor_value
	SensorID   string  `json:"sensor_id,omitempty"`
	Value      float64 `json:"value,omitempty"`
	UpperValue float64 `json:"upper_value,omitempty"`
}

// ActionType identifies an action variant.
type ActionType string

const (
	ActionDeviceControl ActionType = "device_control"
	ActionNotification  ActionType = "notification"
	ActionScene         ActionType = "scene"
	ActionDelay         ActionType = "delay"
)

// Action is one unit of work performed when a rule runs.
//
// Only the fields for the tagged variant are populated:
//   - device_control: DeviceID, Command and Parameters
//   - notification: Message and Severity
//   - scene: SceneID
//   - delay: DelayMS
type Action struct {
	Type ActionType `json:"type"`

	// device_control
	DeviceID   string         `json:"device_id,omitempty"`
	Command    string         `json:"command,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`

	// notification
	Message  string `json:"message,omitempty"`
	Severity string `json:"severity,omitempty"`

	// scene
	SceneID string `json:"scene_id,omitempty"`

	// delay
	DelayMS int `json:"delay_ms,omitempty"`
}

// ExecutionStatus represents the state of a rule execution.
// Executions are created in_progress and transition to a terminal
// state exactly once; they are never mutated after.
type ExecutionStatus string

const (
	StatusInProgress ExecutionStatus = "in_progress"
	StatusSuccess    ExecutionStatus = "success"
	StatusFailed     ExecutionStatus = "failed"
)

// IsTerminal reports whether the status is final.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Execution is the durable record of one run attempt of a rule.
type Execution struct {
	ID     string          `json:"id"`
	RuleID string          `json:"rule_id"`
	Status ExecutionStatus `json:"status"`

	// TriggeredBy records the trigger source (manual, schedule, device_event).
	TriggeredBy string `json:"triggered_by"`

	// TriggerContext carries arbitrary invocation context (opaque).
	TriggerContext map[string]any `json:"trigger_context,omitempty"`

	// Result is populated when the execution reaches a terminal state.
	Result *ExecutionResult `json:"result,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ExecutionResult is the terminal payload of an execution: the ordered
// per-action outcomes on a completed run, or an error summary when the
// run failed before producing outcomes.
type ExecutionResult struct {
	// Outcomes holds one entry per attempted action, in declared order.
	Outcomes []ActionOutcome `json:"actions,omitempty"`

	// Reason explains a zero-action success (e.g. "conditions not met").
	Reason string `json:"reason,omitempty"`

	// BlockedBy is the index of the first failing condition, when set.
	BlockedBy *int `json:"blocked_by,omitempty"`

	// Unresolved lists condition indexes that failed because a required
	// lookup value was missing (fail-closed diagnostics).
	Unresolved []int `json:"unresolved,omitempty"`

	// Error is the failure summary for unexpected failures.
	Error string `json:"error,omitempty"`
}

// OutcomeStatus is the result of a single action attempt.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
)

// ActionOutcome records the result of one action within an execution.
type ActionOutcome struct {
	Index     int           `json:"index"`
	Action    Action        `json:"action"`
	Status    OutcomeStatus `json:"status"`
	Detail    string        `json:"detail,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Failed reports whether the outcome records a failure.
func (o ActionOutcome) Failed() bool {
	return o.Status == OutcomeFailed
}

// DeepCopy creates a complete independent copy of the Rule.
// All map and slice fields are cloned so modifications to the copy
// do not affect the original.
func (r *Rule) DeepCopy() *Rule {
	if r == nil {
		return nil
	}

	cpy := *r // Shallow copy of value fields

	cpy.Description = cloneStringPtr(r.Description)
	cpy.DeletedAt = cloneTimePtr(r.DeletedAt)

	if r.Triggers != nil {
		cpy.Triggers = make([]Trigger, len(r.Triggers))
		for i, t := range r.Triggers {
			cpy.Triggers[i] = t
			if t.Days != nil {
				cpy.Triggers[i].Days = append([]string(nil), t.Days...)
			}
		}
	}

	if r.Conditions != nil {
		cpy.Conditions = make([]Condition, len(r.Conditions))
		for i, c := range r.Conditions {
			cpy.Conditions[i] = c
			if c.Days != nil {
				cpy.Conditions[i].Days = append([]string(nil), c.Days...)
			}
		}
	}

	if r.Actions != nil {
		cpy.Actions = make([]Action, len(r.Actions))
		for i, a := range r.Actions {
			cpy.Actions[i] = a
			if a.Parameters != nil {
				cpy.Actions[i].Parameters = deepCopyMap(a.Parameters)
			}
		}
	}

	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v // Primitives are immutable
	}
}

// cloneStringPtr creates an independent copy of a *string.
func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// cloneTimePtr creates an independent copy of a *time.Time.
func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
