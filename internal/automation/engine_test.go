package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// mockRepository is an in-memory Repository for engine tests.
type mockRepository struct {
	mu         sync.Mutex
	rules      map[string]*Rule
	executions map[string]*Execution
	createErr  error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		rules:      make(map[string]*Rule),
		executions: make(map[string]*Execution),
	}
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[id]
	if !ok || rule.DeletedAt != nil {
		return nil, ErrRuleNotFound
	}
	return rule.DeepCopy(), nil
}

func (m *mockRepository) List(_ context.Context, homeID string) ([]Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rules []Rule
	for _, r := range m.rules {
		if r.HomeID == homeID && r.DeletedAt == nil {
			rules = append(rules, *r.DeepCopy())
		}
	}
	return rules, nil
}

func (m *mockRepository) ListEnabled(_ context.Context, homeID string) ([]Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rules []Rule
	for _, r := range m.rules {
		if r.HomeID == homeID && r.Enabled && r.DeletedAt == nil {
			rules = append(rules, *r.DeepCopy())
		}
	}
	return rules, nil
}

func (m *mockRepository) Create(_ context.Context, rule *Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rules[rule.ID]; exists {
		return ErrRuleExists
	}
	m.rules[rule.ID] = rule.DeepCopy()
	return nil
}

func (m *mockRepository) Update(_ context.Context, rule *Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rules[rule.ID]; !exists {
		return ErrRuleNotFound
	}
	m.rules[rule.ID] = rule.DeepCopy()
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, exists := m.rules[id]
	if !exists || rule.DeletedAt != nil {
		return ErrRuleNotFound
	}
	now := time.Now().UTC()
	rule.DeletedAt = &now
	return nil
}

func (m *mockRepository) CreateExecution(_ context.Context, exec *Execution) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := *exec
	m.executions[exec.ID] = &cpy
	return nil
}

func (m *mockRepository) UpdateExecution(_ context.Context, exec *Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.executions[exec.ID]
	if !ok {
		return ErrExecutionNotFound
	}
	if stored.Status.IsTerminal() {
		return ErrExecutionFinalized
	}
	cpy := *exec
	m.executions[exec.ID] = &cpy
	return nil
}

func (m *mockRepository) GetExecution(_ context.Context, id string) (*Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exec, ok := m.executions[id]
	if !ok {
		return nil, ErrExecutionNotFound
	}
	cpy := *exec
	return &cpy, nil
}

func (m *mockRepository) ListExecutions(_ context.Context, ruleID string, _ int) ([]Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var execs []Execution
	for _, e := range m.executions {
		if e.RuleID == ruleID {
			execs = append(execs, *e)
		}
	}
	return execs, nil
}

func (m *mockRepository) executionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.executions)
}

// mockStateSource supplies fixed device states and sensor values.
type mockStateSource struct {
	states map[string]string
	values map[string]float64
}

func (m *mockStateSource) DeviceStates(_ context.Context, _ string) (map[string]string, error) {
	return m.states, nil
}

func (m *mockStateSource) SensorValues(_ context.Context, _ string) (map[string]float64, error) {
	return m.values, nil
}

// mockPublisher captures home-channel events.
type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	HomeID  string
	Event   string
	Payload any
}

func (m *mockPublisher) PublishHome(homeID, event string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{HomeID: homeID, Event: event, Payload: payload})
}

func (m *mockPublisher) published() []publishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := make([]publishedEvent, len(m.events))
	copy(cpy, m.events)
	return cpy
}

// ─── Helpers ────────────────────────────────────────────────────────────────

type engineFixture struct {
	engine    *Engine
	repo      *mockRepository
	commander *mockCommander
	notifier  *mockNotifier
	states    *mockStateSource
	events    *mockPublisher
}

func setupEngine(t *testing.T) *engineFixture {
	t.Helper()

	repo := newMockRepository()
	commander := newMockCommander()
	notifier := &mockNotifier{}
	states := &mockStateSource{
		states: make(map[string]string),
		values: make(map[string]float64),
	}
	events := &mockPublisher{}

	executor := NewExecutor(commander, notifier, time.Second, nil)
	engine := NewEngine(repo, executor, states, events, 10*time.Second, nil)

	return &engineFixture{
		engine:    engine,
		repo:      repo,
		commander: commander,
		notifier:  notifier,
		states:    states,
		events:    events,
	}
}

// testRule creates an enabled two-action rule: turn on light-1, then notify.
func testRule(id string) *Rule {
	return &Rule{
		ID:      id,
		HomeID:  "home-1",
		Name:    "Evening Lights",
		Enabled: true,
		Mode:    ModeSequential,
		Actions: []Action{
			{Type: ActionDeviceControl, DeviceID: "light-1", Command: "turn_on"},
			{Type: ActionNotification, Message: "done"},
		},
	}
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestRunRule_AllActionsSucceed(t *testing.T) {
	f := setupEngine(t)
	f.repo.rules["rule-1"] = testRule("rule-1")

	exec, err := f.engine.RunRule(context.Background(), "rule-1", "manual", nil)
	if err != nil {
		t.Fatalf("RunRule: %v", err)
	}

	if exec.Status != StatusSuccess {
		t.Errorf("status = %s, want success", exec.Status)
	}
	if exec.Result == nil || len(exec.Result.Outcomes) != 2 {
		t.Fatalf("result = %+v, want 2 outcomes", exec.Result)
	}
	for i, o := range exec.Result.Outcomes {
		if o.Status != OutcomeSuccess {
			t.Errorf("outcome[%d] = %s, want success", i, o.Status)
		}
	}
	if exec.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}

	// The stored record must match the terminal state.
	stored, err := f.repo.GetExecution(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if stored.Status != StatusSuccess {
		t.Errorf("stored status = %s, want success", stored.Status)
	}
}

func TestRunRule_ConditionsNotMet(t *testing.T) {
	f := setupEngine(t)
	rule := testRule("rule-1")
	rule.Conditions = []Condition{
		{Type: ConditionDeviceState, DeviceID: "thermostat-1", State: "on"},
	}
	f.repo.rules["rule-1"] = rule
	f.states.states["thermostat-1"] = "off"

	exec, err := f.engine.RunRule(context.Background(), "rule-1", "manual", nil)
	if err != nil {
		t.Fatalf("RunRule: %v", err)
	}

	if exec.Status != StatusSuccess {
		t.Errorf("status = %s, want success (no-op is not an error)", exec.Status)
	}
	if len(exec.Result.Outcomes) != 0 {
		t.Errorf("outcomes = %d, want 0", len(exec.Result.Outcomes))
	}
	if exec.Result.Reason != "conditions not met" {
		t.Errorf("reason = %q", exec.Result.Reason)
	}
	if exec.Result.BlockedBy == nil || *exec.Result.BlockedBy != 0 {
		t.Errorf("blocked_by = %v, want 0", exec.Result.BlockedBy)
	}

	// No device commands may have been issued.
	if len(f.commander.sent()) != 0 {
		t.Errorf("commands sent = %d, want 0", len(f.commander.sent()))
	}
}

func TestRunRule_PartialFailure(t *testing.T) {
	f := setupEngine(t)
	rule := testRule("rule-1")
	rule.Actions = []Action{
		{Type: ActionDeviceControl, DeviceID: "light-1", Command: "turn_on"},
		{Type: ActionDeviceControl, DeviceID: "door-1", Command: "lock"},
	}
	f.repo.rules["rule-1"] = rule
	f.commander.failOn["light-1"] = "bulb unreachable"

	exec, err := f.engine.RunRule(context.Background(), "rule-1", "manual", nil)
	if err != nil {
		t.Fatalf("RunRule: %v", err)
	}

	if exec.Status != StatusFailed {
		t.Errorf("status = %s, want failed", exec.Status)
	}
	if len(exec.Result.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2 (all actions attempted)", len(exec.Result.Outcomes))
	}
	if exec.Result.Outcomes[0].Status != OutcomeFailed {
		t.Errorf("outcome[0] = %s, want failed", exec.Result.Outcomes[0].Status)
	}
	if exec.Result.Outcomes[1].Status != OutcomeSuccess {
		t.Errorf("outcome[1] = %s, want success", exec.Result.Outcomes[1].Status)
	}
	if exec.Result.Error == "" {
		t.Error("failure summary not set")
	}
}

func TestRunRule_DisabledRuleCreatesNoExecution(t *testing.T) {
	f := setupEngine(t)
	rule := testRule("rule-1")
	rule.Enabled = false
	f.repo.rules["rule-1"] = rule

	_, err := f.engine.RunRule(context.Background(), "rule-1", "manual", nil)
	if !errors.Is(err, ErrRuleDisabled) {
		t.Fatalf("error = %v, want ErrRuleDisabled", err)
	}

	if f.repo.executionCount() != 0 {
		t.Errorf("executions = %d, want 0 (rejected invocation)", f.repo.executionCount())
	}
}

func TestRunRule_NotFound(t *testing.T) {
	f := setupEngine(t)

	_, err := f.engine.RunRule(context.Background(), "ghost", "manual", nil)
	if !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("error = %v, want ErrRuleNotFound", err)
	}
	if f.repo.executionCount() != 0 {
		t.Errorf("executions = %d, want 0", f.repo.executionCount())
	}
}

func TestRunRule_SoftDeletedRuleNotFound(t *testing.T) {
	f := setupEngine(t)
	rule := testRule("rule-1")
	now := time.Now().UTC()
	rule.DeletedAt = &now
	f.repo.rules["rule-1"] = rule

	_, err := f.engine.RunRule(context.Background(), "rule-1", "manual", nil)
	if !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("error = %v, want ErrRuleNotFound", err)
	}
}

func TestRunRule_DraftRejected(t *testing.T) {
	f := setupEngine(t)
	rule := testRule("rule-1")
	rule.Actions = nil
	f.repo.rules["rule-1"] = rule

	_, err := f.engine.RunRule(context.Background(), "rule-1", "manual", nil)
	if !errors.Is(err, ErrNoActions) {
		t.Fatalf("error = %v, want ErrNoActions", err)
	}
	if f.repo.executionCount() != 0 {
		t.Errorf("executions = %d, want 0", f.repo.executionCount())
	}
}

func TestRunRule_PanicFinalizesFailed(t *testing.T) {
	f := setupEngine(t)
	rule := testRule("rule-1")
	rule.Mode = ModeParallel
	f.repo.rules["rule-1"] = rule
	f.commander.panicOn = "light-1"

	exec, err := f.engine.RunRule(context.Background(), "rule-1", "manual", nil)
	if err != nil {
		t.Fatalf("RunRule: %v", err)
	}

	// The panic is captured at the action boundary; the execution is
	// finalized failed, never left in_progress.
	if exec.Status != StatusFailed {
		t.Errorf("status = %s, want failed", exec.Status)
	}
	stored, err := f.repo.GetExecution(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if !stored.Status.IsTerminal() {
		t.Errorf("stored status = %s, want terminal", stored.Status)
	}
}

func TestRunRule_PublishesExecutedEvent(t *testing.T) {
	f := setupEngine(t)
	f.repo.rules["rule-1"] = testRule("rule-1")

	exec, err := f.engine.RunRule(context.Background(), "rule-1", "manual", nil)
	if err != nil {
		t.Fatalf("RunRule: %v", err)
	}

	events := f.events.published()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].HomeID != "home-1" {
		t.Errorf("home = %q, want home-1", events[0].HomeID)
	}
	if events[0].Event != "automation:executed" {
		t.Errorf("event = %q, want automation:executed", events[0].Event)
	}

	payload, ok := events[0].Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload type = %T", events[0].Payload)
	}
	if payload["execution_id"] != exec.ID {
		t.Errorf("payload execution_id = %v, want %s", payload["execution_id"], exec.ID)
	}
	if payload["status"] != "success" {
		t.Errorf("payload status = %v", payload["status"])
	}
}

func TestRunRule_TriggerContextStored(t *testing.T) {
	f := setupEngine(t)
	f.repo.rules["rule-1"] = testRule("rule-1")

	triggerCtx := map[string]any{"source": "api", "user": "u-1"}
	exec, err := f.engine.RunRule(context.Background(), "rule-1", "manual", triggerCtx)
	if err != nil {
		t.Fatalf("RunRule: %v", err)
	}

	if exec.TriggeredBy != "manual" {
		t.Errorf("triggered_by = %q", exec.TriggeredBy)
	}
	if exec.TriggerContext["source"] != "api" {
		t.Errorf("trigger context = %v", exec.TriggerContext)
	}
}

// mockMetrics records execution metric writes.
type mockMetrics struct {
	mu     sync.Mutex
	writes []metricWrite
}

type metricWrite struct {
	RuleID   string
	Status   string
	Duration time.Duration
}

func (m *mockMetrics) WriteExecutionMetric(ruleID, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, metricWrite{RuleID: ruleID, Status: status, Duration: duration})
}

func (m *mockMetrics) recorded() []metricWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := make([]metricWrite, len(m.writes))
	copy(cpy, m.writes)
	return cpy
}

func TestRunRule_RecordsExecutionMetric(t *testing.T) {
	f := setupEngine(t)
	metrics := &mockMetrics{}
	f.engine.SetMetrics(metrics)
	f.repo.rules["rule-1"] = testRule("rule-1")

	if _, err := f.engine.RunRule(context.Background(), "rule-1", "manual", nil); err != nil {
		t.Fatalf("RunRule: %v", err)
	}

	writes := metrics.recorded()
	if len(writes) != 1 {
		t.Fatalf("metric writes = %d, want 1", len(writes))
	}
	if writes[0].RuleID != "rule-1" {
		t.Errorf("metric rule_id = %q, want rule-1", writes[0].RuleID)
	}
	if writes[0].Status != "success" {
		t.Errorf("metric status = %q, want success", writes[0].Status)
	}
	if writes[0].Duration < 0 {
		t.Errorf("metric duration = %v, want non-negative", writes[0].Duration)
	}
}

// The run deadline can expire while an action is still in flight. The
// terminal write must still land on the stored record; a dead run
// context must never strand it in_progress.
func TestRunRule_ExpiredRunDeadlineStillFinalizesStoredRecord(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	rule := storedRule("rule-1", "Slow Rule")
	rule.Conditions = nil
	rule.Actions = []Action{{Type: ActionDelay, DelayMS: 500}}
	if err := repo.Create(context.Background(), rule); err != nil {
		t.Fatalf("Create: %v", err)
	}

	executor := NewExecutor(newMockCommander(), &mockNotifier{}, 0, nil)
	engine := NewEngine(repo, executor, nil, nil, 50*time.Millisecond, nil)

	exec, err := engine.RunRule(context.Background(), "rule-1", "manual", nil)
	if err != nil {
		t.Fatalf("RunRule: %v", err)
	}
	if exec.Status != StatusFailed {
		t.Errorf("status = %s, want failed (delay interrupted by run deadline)", exec.Status)
	}

	stored, getErr := repo.GetExecution(context.Background(), exec.ID)
	if getErr != nil {
		t.Fatalf("GetExecution: %v", getErr)
	}
	if stored.Status == StatusInProgress {
		t.Fatal("execution row left in_progress after run finished")
	}
	if stored.Status != exec.Status {
		t.Errorf("stored status = %s, want %s", stored.Status, exec.Status)
	}
	if stored.FinishedAt == nil {
		t.Error("stored FinishedAt not set")
	}
}

// A caller disconnect cancels the request context mid-run; finalization
// must survive it the same way.
func TestRunRule_CancelledCallerStillFinalizesStoredRecord(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	rule := storedRule("rule-1", "Slow Rule")
	rule.Conditions = nil
	rule.Actions = []Action{{Type: ActionDelay, DelayMS: 500}}
	if err := repo.Create(context.Background(), rule); err != nil {
		t.Fatalf("Create: %v", err)
	}

	executor := NewExecutor(newMockCommander(), &mockNotifier{}, 0, nil)
	engine := NewEngine(repo, executor, nil, nil, 10*time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	exec, err := engine.RunRule(ctx, "rule-1", "manual", nil)
	if err != nil {
		t.Fatalf("RunRule: %v", err)
	}

	stored, getErr := repo.GetExecution(context.Background(), exec.ID)
	if getErr != nil {
		t.Fatalf("GetExecution: %v", getErr)
	}
	if !stored.Status.IsTerminal() {
		t.Errorf("stored status = %s, want terminal", stored.Status)
	}
}

func TestRunRule_ConcurrentRunsGetIndependentExecutions(t *testing.T) {
	f := setupEngine(t)
	f.repo.rules["rule-1"] = testRule("rule-1")

	const runs = 5
	var wg sync.WaitGroup
	ids := make([]string, runs)

	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			exec, err := f.engine.RunRule(context.Background(), "rule-1", "manual", nil)
			if err != nil {
				t.Errorf("RunRule: %v", err)
				return
			}
			ids[idx] = exec.ID
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate execution ID %s", id)
		}
		seen[id] = true
	}
	if f.repo.executionCount() != runs {
		t.Errorf("executions = %d, want %d", f.repo.executionCount(), runs)
	}
}
