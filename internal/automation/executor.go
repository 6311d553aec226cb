package automation

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Commander is the interface the executor needs for device-facing actions.
// It is implemented by the device package; the executor performs no
// protocol logic of its own.
type Commander interface {
	// SendCommand issues a command to a device and returns a human-readable
	// detail string describing the dispatch.
	SendCommand(ctx context.Context, deviceID, command string, parameters map[string]any) (string, error)

	// ActivateScene publishes a scene activation and returns a detail string.
	ActivateScene(ctx context.Context, sceneID string) (string, error)
}

// Notifier is the interface for notification actions. It is implemented
// by the alert package; delivery is in-app only.
type Notifier interface {
	// Notify raises a notification for a home and returns a detail string.
	Notify(ctx context.Context, homeID, severity, message string) (string, error)
}

// Executor runs a rule's actions and collects per-action outcomes.
//
// Execution is best-effort: a failing action is recorded but never aborts
// the remaining actions, in either mode. Every action in the list gets an
// outcome. Retries are never automatic; re-invoke the whole rule instead.
//
// Thread Safety: Execute is safe for concurrent use.
type Executor struct {
	commander     Commander
	notifier      Notifier
	actionTimeout time.Duration
	logger        Logger
}

// NewExecutor creates a new action executor.
//
// actionTimeout bounds each individual action; a hanging device command
// fails that action instead of wedging the whole run. Zero disables the
// per-action bound (the orchestrator's run deadline still applies).
func NewExecutor(commander Commander, notifier Notifier, actionTimeout time.Duration, logger Logger) *Executor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Executor{
		commander:     commander,
		notifier:      notifier,
		actionTimeout: actionTimeout,
		logger:        logger,
	}
}

// Execute runs the given actions in the given mode and returns one
// outcome per action, in declared order.
func (x *Executor) Execute(ctx context.Context, homeID string, actions []Action, mode ExecutionMode) []ActionOutcome {
	if len(actions) == 0 {
		return nil
	}

	if mode == ModeParallel {
		return x.executeParallel(ctx, homeID, actions)
	}
	return x.executeSequential(ctx, homeID, actions)
}

// executeSequential runs actions one at a time in declared order.
// A failure is recorded and the next action still runs.
func (x *Executor) executeSequential(ctx context.Context, homeID string, actions []Action) []ActionOutcome {
	outcomes := make([]ActionOutcome, len(actions))
	for i, action := range actions {
		outcomes[i] = x.runAction(ctx, homeID, i, action)
	}
	return outcomes
}

// executeParallel dispatches all actions concurrently and joins on all
// outcomes. No action's failure cancels another.
func (x *Executor) executeParallel(ctx context.Context, homeID string, actions []Action) []ActionOutcome {
	outcomes := make([]ActionOutcome, len(actions))
	var wg sync.WaitGroup

	for i, action := range actions {
		wg.Add(1)
		go func(idx int, a Action) {
			defer wg.Done()
			outcomes[idx] = x.runAction(ctx, homeID, idx, a)
		}(i, action)
	}

	wg.Wait()
	return outcomes
}

// runAction executes a single action and converts the result into an
// outcome. Panics and errors are captured; nothing propagates past here.
func (x *Executor) runAction(ctx context.Context, homeID string, index int, action Action) (outcome ActionOutcome) {
	outcome = ActionOutcome{
		Index:  index,
		Action: action,
		Status: OutcomeSuccess,
	}

	defer func() {
		outcome.Timestamp = time.Now().UTC()
		if r := recover(); r != nil {
			outcome.Status = OutcomeFailed
			outcome.Detail = fmt.Sprintf("panic: %v", r)
			x.logger.Error("action panic recovered",
				"action_index", index,
				"action_type", action.Type,
				"panic", r,
			)
		}
	}()

	if x.actionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.actionTimeout)
		defer cancel()
	}

	detail, err := x.dispatch(ctx, homeID, action)
	if err != nil {
		outcome.Status = OutcomeFailed
		outcome.Detail = err.Error()
		x.logger.Warn("action failed",
			"action_index", index,
			"action_type", action.Type,
			"error", err,
		)
		return outcome
	}

	outcome.Detail = detail
	return outcome
}

// dispatch routes an action to its collaborator by variant.
func (x *Executor) dispatch(ctx context.Context, homeID string, action Action) (string, error) {
	switch action.Type {
	case ActionDeviceControl:
		if x.commander == nil {
			return "", fmt.Errorf("%w: no commander configured", ErrInvalidAction)
		}
		return x.commander.SendCommand(ctx, action.DeviceID, action.Command, action.Parameters)

	case ActionScene:
		if x.commander == nil {
			return "", fmt.Errorf("%w: no commander configured", ErrInvalidAction)
		}
		return x.commander.ActivateScene(ctx, action.SceneID)

	case ActionNotification:
		if x.notifier == nil {
			return "", fmt.Errorf("%w: no notifier configured", ErrInvalidAction)
		}
		return x.notifier.Notify(ctx, homeID, action.Severity, action.Message)

	case ActionDelay:
		select {
		case <-time.After(time.Duration(action.DelayMS) * time.Millisecond):
			return fmt.Sprintf("waited %dms", action.DelayMS), nil
		case <-ctx.Done():
			return "", fmt.Errorf("delay interrupted: %w", ctx.Err())
		}

	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidAction, action.Type)
	}
}
