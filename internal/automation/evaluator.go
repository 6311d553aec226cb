package automation

import (
	"time"
)

// Context carries the invocation-time values the evaluator needs to
// resolve conditions: the wall clock plus whatever device states and
// sensor readings the caller (or a registry lookup) supplied.
//
// Lookups are fail-closed: a condition whose required value is absent
// evaluates to false rather than erroring, and its index is recorded
// as unresolved for diagnostics.
type Context struct {
	// Now is the evaluation timestamp. Zero means time.Now().
	Now time.Time

	// DeviceStates maps device ID to its current state token.
	DeviceStates map[string]string

	// SensorValues maps sensor ID to its current numeric reading.
	SensorValues map[string]float64
}

// clock returns the evaluation time, defaulting to the wall clock.
func (c Context) clock() time.Time {
	if c.Now.IsZero() {
		return time.Now()
	}
	return c.Now
}

// Evaluation is the result of evaluating a rule against a context.
type Evaluation struct {
	// ShouldRun is true when every condition held.
	ShouldRun bool

	// Actions is the rule's action list, unmodified and in declared order.
	Actions []Action

	// BlockedBy is the index of the first failing condition (-1 if none).
	// Short-circuiting preserves a deterministic first blocker.
	BlockedBy int

	// Unresolved lists condition indexes that failed because a required
	// lookup value was missing.
	Unresolved []int
}

// Evaluate decides whether a rule's conditions hold and returns the
// ordered action list to run.
//
// Conditions are ANDed and evaluated in declared order, short-circuiting
// on the first failure. An empty condition list always holds. The action
// list is returned as declared; only the rule's execution mode changes
// how the Executor consumes it.
//
// Returns ErrRuleDisabled if the rule is not enabled.
func Evaluate(rule *Rule, evalCtx Context) (Evaluation, error) {
	if rule == nil {
		return Evaluation{}, ErrRuleNotFound
	}
	if !rule.Enabled {
		return Evaluation{}, ErrRuleDisabled
	}

	result := Evaluation{
		ShouldRun: true,
		Actions:   rule.Actions,
		BlockedBy: -1,
	}

	for i, condition := range rule.Conditions {
		holds, resolved := evaluateCondition(condition, evalCtx)
		if !resolved {
			result.Unresolved = append(result.Unresolved, i)
		}
		if !holds {
			result.ShouldRun = false
			result.BlockedBy = i
			break
		}
	}

	return result, nil
}

// evaluateCondition resolves a single condition to a boolean.
//
// The second return value reports whether the condition's required
// lookup value was present; when false, the condition is false by
// the fail-closed policy, not by comparison.
func evaluateCondition(c Condition, evalCtx Context) (holds, resolved bool) {
	switch c.Type {
	case ConditionDeviceState:
		state, ok := evalCtx.DeviceStates[c.DeviceID]
		if !ok {
			return false, false
		}
		return state == c.State, true

	case ConditionTimeRange:
		return inTimeRange(evalCtx.clock(), c.Start, c.End), true

	case ConditionDayOfWeek:
		today := weekdayName(evalCtx.clock().Weekday())
		for _, d := range c.Days {
			if d == today {
				return true, true
			}
		}
		return false, true

	case ConditionSensorValue:
		value, ok := evalCtx.SensorValues[c.SensorID]
		if !ok {
			return false, false
		}
		return compareValue(value, c), true

	default:
		// Unknown condition types fail closed.
		return false, false
	}
}

// compareValue applies a sensor_value condition's operator.
// Between is inclusive on both bounds.
func compareValue(value float64, c Condition) bool {
	switch c.Operator {
	case OpEquals:
		return value == c.Value
	case OpGreaterThan:
		return value > c.Value
	case OpLessThan:
		return value < c.Value
	case OpBetween:
		return value >= c.Value && value <= c.UpperValue
	default:
		return false
	}
}

// inTimeRange reports whether the clock time of now falls within the
// inclusive HH:MM range [start, end]. A range with end before start
// wraps past midnight (e.g. 22:00-06:00).
func inTimeRange(now time.Time, start, end string) bool {
	startT, err := time.Parse(timeLayout, start)
	if err != nil {
		return false
	}
	endT, err := time.Parse(timeLayout, end)
	if err != nil {
		return false
	}

	nowMin := now.Hour()*60 + now.Minute()
	startMin := startT.Hour()*60 + startT.Minute()
	endMin := endT.Hour()*60 + endT.Minute()

	if startMin <= endMin {
		return nowMin >= startMin && nowMin <= endMin
	}
	// Overnight range
	return nowMin >= startMin || nowMin <= endMin
}

// weekdayName returns the lowercase English name for a weekday,
// matching the day tokens stored in conditions.
func weekdayName(d time.Weekday) string {
	switch d {
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	case time.Saturday:
		return "saturday"
	default:
		return "sunday"
	}
}
