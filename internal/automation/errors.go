package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrRuleNotFound) {
//	    // handle not found case
//	}
var (
	// ErrRuleNotFound is returned when a rule ID does not exist or is soft-deleted.
	ErrRuleNotFound = errors.New("rule: not found")

	// ErrRuleExists is returned when creating a rule with an ID that already exists.
	ErrRuleExists = errors.New("rule: already exists")

	// ErrRuleDisabled is returned when attempting to run a disabled rule.
	// No execution record is created for a rejected invocation.
	ErrRuleDisabled = errors.New("rule: disabled")

	// ErrInvalidRule is returned when rule validation fails.
	ErrInvalidRule = errors.New("rule: invalid")

	// ErrInvalidName is returned when a rule name is empty or too long.
	ErrInvalidName = errors.New("rule: invalid name")

	// ErrInvalidTrigger is returned when a trigger definition is invalid.
	ErrInvalidTrigger = errors.New("rule: invalid trigger")

	// ErrInvalidCondition is returned when a condition definition is invalid.
	ErrInvalidCondition = errors.New("rule: invalid condition")

	// ErrInvalidAction is returned when an action definition is invalid.
	ErrInvalidAction = errors.New("rule: invalid action")

	// ErrNoActions is returned when running a rule with zero actions.
	// Such rules are valid drafts but never executable.
	ErrNoActions = errors.New("rule: no actions")

	// ErrExecutionNotFound is returned when an execution ID does not exist.
	ErrExecutionNotFound = errors.New("rule: execution not found")

	// ErrExecutionFinalized is returned when updating an execution that
	// already reached a terminal state. Executions transition exactly once.
	ErrExecutionFinalized = errors.New("rule: execution already finalized")
)
