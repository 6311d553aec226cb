// Package automation provides the rule engine for NEXA Core.
//
// Rules combine triggers, conditions, and actions. When a rule runs,
// its conditions are evaluated as an ANDed guard; if they hold, the
// actions execute sequentially or in parallel per the rule's mode,
// and the run is recorded as an execution with per-action outcomes.
//
// Architecture:
//
//	┌────────────────────────────────────────────────────────┐
//	│                  Engine (engine.go)                     │
//	│  Orchestrates rule runs and records executions          │
//	│  ┌──────────────┐    ┌──────────────┐                  │
//	│  │  Evaluator   │    │  Repository  │                  │
//	│  │(evaluator.go)│    │(repository.go)│                 │
//	│  └──────────────┘    └──────────────┘                  │
//	│        │                                               │
//	│        ▼                                               │
//	│  ┌──────────────────────────────────────────────┐     │
//	│  │  Run Pipeline                                 │     │
//	│  │  1. Load rule, reject disabled/draft          │     │
//	│  │  2. Create execution record (in_progress)     │     │
//	│  │  3. Evaluate conditions (short-circuit AND)   │     │
//	│  │  4. Execute actions (sequential or parallel)  │     │
//	│  │  5. Finalize execution (success or failed)    │     │
//	│  │  6. Publish automation:executed event         │     │
//	│  └──────────────────────────────────────────────┘     │
//	└────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Rule: Stored automation definition (triggers + conditions + actions)
//   - Condition: Runtime guard with an operator and comparison value
//   - Action: One unit of work (device command, notification, scene, delay)
//   - Execution: Durable record of one run attempt with terminal status
//   - Engine: Orchestrator that runs rules and records outcomes
//
// # Execution Semantics
//
// Action execution is best-effort: a failing action is recorded but never
// aborts the remaining actions. The execution is marked failed only after
// every action has an outcome. Failing to dim one light should not prevent
// locking the door.
//
// # Thread Safety
//
// Engine and Executor are safe for concurrent use from multiple goroutines.
// Concurrent runs of the same rule each get an independent execution record;
// there is no per-rule run lock.
//
// # Usage
//
//	repo := automation.NewSQLiteRepository(db)
//	executor := automation.NewExecutor(commander, notifier, 10*time.Second, log)
//	engine := automation.NewEngine(repo, executor, events, log)
//
//	exec, err := engine.RunRule(ctx, "rule-sunrise-blinds", "manual", nil)
package automation
