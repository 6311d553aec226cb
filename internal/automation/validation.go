package automation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength     = 100
	maxDescriptionLen = 500
	maxTriggers       = 20
	maxConditions     = 20
	maxActions        = 50
	maxParameterKeys  = 20
	maxMessageLength  = 500
	maxDelayMS        = 300000 // 5 minutes
	timeLayout        = "15:04"
)

// Pre-computed validation sets for O(1) lookups.
var (
	validDays = map[string]struct{}{
		"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {},
		"friday": {}, "saturday": {}, "sunday": {},
	}

	validOperators = map[Operator]struct{}{
		OpEquals: {}, OpGreaterThan: {}, OpLessThan: {}, OpBetween: {},
	}
)

// ValidateRule performs comprehensive validation on a rule.
// Returns an error describing the first validation failure found.
//
// A rule with zero actions is accepted as a draft; executability is
// enforced at run time, not here.
func ValidateRule(r *Rule) error {
	if r == nil {
		return ErrInvalidRule
	}

	if err := ValidateName(r.Name); err != nil {
		return err
	}

	if r.HomeID == "" {
		return fmt.Errorf("%w: home_id is required", ErrInvalidRule)
	}

	if r.Description != nil && len(*r.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidRule, maxDescriptionLen)
	}

	if r.Mode != ModeSequential && r.Mode != ModeParallel {
		return fmt.Errorf("%w: mode must be sequential or parallel", ErrInvalidRule)
	}

	if len(r.Triggers) > maxTriggers {
		return fmt.Errorf("%w: exceeds maximum of %d triggers", ErrInvalidTrigger, maxTriggers)
	}
	for i, trigger := range r.Triggers {
		if err := ValidateTrigger(trigger); err != nil {
			return fmt.Errorf("trigger[%d]: %w", i, err)
		}
	}

	if len(r.Conditions) > maxConditions {
		return fmt.Errorf("%w: exceeds maximum of %d conditions", ErrInvalidCondition, maxConditions)
	}
	for i, condition := range r.Conditions {
		if err := ValidateCondition(condition); err != nil {
			return fmt.Errorf("condition[%d]: %w", i, err)
		}
	}

	if len(r.Actions) > maxActions {
		return fmt.Errorf("%w: exceeds maximum of %d actions", ErrInvalidAction, maxActions)
	}
	for i, action := range r.Actions {
		if err := ValidateAction(action); err != nil {
			return fmt.Errorf("action[%d]: %w", i, err)
		}
	}

	return nil
}

// ValidateName checks if a rule name is valid.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateTrigger checks if a trigger definition is valid for its variant.
func ValidateTrigger(t Trigger) error {
	switch t.Type {
	case TriggerSchedule:
		if err := validateClockTime(t.Time); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTrigger, err)
		}
		if err := validateDays(t.Days); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTrigger, err)
		}
	case TriggerDeviceState:
		if t.DeviceID == "" {
			return fmt.Errorf("%w: device_id is required", ErrInvalidTrigger)
		}
		if t.State == "" {
			return fmt.Errorf("%w: state is required", ErrInvalidTrigger)
		}
	case TriggerSensor:
		if t.SensorID == "" {
			return fmt.Errorf("%w: sensor_id is required", ErrInvalidTrigger)
		}
	case TriggerLocation:
		if t.Zone == "" {
			return fmt.Errorf("%w: zone is required", ErrInvalidTrigger)
		}
		if t.Direction != "enter" && t.Direction != "leave" {
			return fmt.Errorf("%w: direction must be enter or leave", ErrInvalidTrigger)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTrigger, t.Type)
	}
	return nil
}

// ValidateCondition checks if a condition definition is valid for its variant.
func ValidateCondition(c Condition) error {
	switch c.Type {
	case ConditionDeviceState:
		if c.DeviceID == "" {
			return fmt.Errorf("%w: device_id is required", ErrInvalidCondition)
		}
		if c.State == "" {
			return fmt.Errorf("%w: state is required", ErrInvalidCondition)
		}
		if c.Operator != "" && c.Operator != OpEquals {
			return fmt.Errorf("%w: device_state supports only equals", ErrInvalidCondition)
		}
	case ConditionTimeRange:
		if err := validateClockTime(c.Start); err != nil {
			return fmt.Errorf("%w: start: %v", ErrInvalidCondition, err)
		}
		if err := validateClockTime(c.End); err != nil {
			return fmt.Errorf("%w: end: %v", ErrInvalidCondition, err)
		}
	case ConditionDayOfWeek:
		if err := validateDays(c.Days); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCondition, err)
		}
	case ConditionSensorValue:
		if c.SensorID == "" {
			return fmt.Errorf("%w: sensor_id is required", ErrInvalidCondition)
		}
		if _, ok := validOperators[c.Operator]; !ok {
			return fmt.Errorf("%w: unknown operator %q", ErrInvalidCondition, c.Operator)
		}
		if c.Operator == OpBetween && c.UpperValue < c.Value {
			return fmt.Errorf("%w: upper_value must be >= value for between", ErrInvalidCondition)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCondition, c.Type)
	}
	return nil
}

// ValidateAction checks if an action definition is valid for its variant.
func ValidateAction(a Action) error {
	switch a.Type {
	case ActionDeviceControl:
		if a.DeviceID == "" {
			return fmt.Errorf("%w: device_id is required", ErrInvalidAction)
		}
		if a.Command == "" {
			return fmt.Errorf("%w: command is required", ErrInvalidAction)
		}
		if len(a.Parameters) > maxParameterKeys {
			return fmt.Errorf("%w: parameters exceeds %d keys", ErrInvalidAction, maxParameterKeys)
		}
	case ActionNotification:
		if strings.TrimSpace(a.Message) == "" {
			return fmt.Errorf("%w: message is required", ErrInvalidAction)
		}
		if len(a.Message) > maxMessageLength {
			return fmt.Errorf("%w: message exceeds %d characters", ErrInvalidAction, maxMessageLength)
		}
	case ActionScene:
		if a.SceneID == "" {
			return fmt.Errorf("%w: scene_id is required", ErrInvalidAction)
		}
	case ActionDelay:
		if a.DelayMS <= 0 || a.DelayMS > maxDelayMS {
			return fmt.Errorf("%w: delay_ms must be 1-%d", ErrInvalidAction, maxDelayMS)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
	}
	return nil
}

// validateClockTime checks an HH:MM time-of-day string.
func validateClockTime(value string) error {
	if value == "" {
		return fmt.Errorf("time is required")
	}
	if _, err := time.Parse(timeLayout, value); err != nil {
		return fmt.Errorf("time %q must be HH:MM", value)
	}
	return nil
}

// validateDays checks a list of lowercase English day names.
func validateDays(days []string) error {
	if len(days) == 0 {
		return fmt.Errorf("days cannot be empty")
	}
	for _, d := range days {
		if _, ok := validDays[d]; !ok {
			return fmt.Errorf("unknown day %q", d)
		}
	}
	return nil
}

// GenerateID creates a new UUID for a rule or execution.
func GenerateID() string {
	return uuid.New().String()
}
