package device

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// mockRepository is an in-memory Repository for registry tests.
type mockRepository struct {
	mu      sync.Mutex
	devices map[string]*Device
	listErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{devices: make(map[string]*Device)}
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

func (m *mockRepository) List(_ context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var devices []Device
	for _, d := range m.devices {
		devices = append(devices, *d.DeepCopy())
	}
	return devices, nil
}

func (m *mockRepository) ListByHome(_ context.Context, homeID string) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var devices []Device
	for _, d := range m.devices {
		if d.HomeID == homeID {
			devices = append(devices, *d.DeepCopy())
		}
	}
	return devices, nil
}

func (m *mockRepository) Create(_ context.Context, d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.devices[d.ID]; exists {
		return ErrDeviceExists
	}
	m.devices[d.ID] = d.DeepCopy()
	return nil
}

func (m *mockRepository) Update(_ context.Context, d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.devices[d.ID]; !exists {
		return ErrDeviceNotFound
	}
	m.devices[d.ID] = d.DeepCopy()
	return nil
}

func (m *mockRepository) UpdateState(_ context.Context, id string, state State, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}
	d.State = deepCopyState(state)
	d.Online = online
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.devices[id]; !exists {
		return ErrDeviceNotFound
	}
	delete(m.devices, id)
	return nil
}

func testDevice(id string, typ Type, state State) *Device {
	return &Device{
		ID:       id,
		HomeID:   "home-1",
		Name:     "Device " + id,
		Type:     typ,
		Protocol: ProtocolZigbee,
		State:    state,
	}
}

func TestRegistry_CreateAndGet(t *testing.T) {
	registry := NewRegistry(newMockRepository())
	ctx := context.Background()

	d := testDevice("light-1", TypeLight, State{"state": "off"})
	if err := registry.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	got, err := registry.GetDevice(ctx, "light-1")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if got.Name != "Device light-1" {
		t.Errorf("Name = %q", got.Name)
	}

	// Mutating the returned copy must not leak into the cache.
	got.State["state"] = "hacked"
	again, err := registry.GetDevice(ctx, "light-1")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if again.State["state"] != "off" {
		t.Error("cache was mutated through a returned copy")
	}
}

func TestRegistry_CreateGeneratesID(t *testing.T) {
	registry := NewRegistry(newMockRepository())

	d := testDevice("", TypeLight, nil)
	if err := registry.CreateDevice(context.Background(), d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if d.ID == "" {
		t.Error("ID was not generated")
	}
}

func TestRegistry_CreateInvalid(t *testing.T) {
	registry := NewRegistry(newMockRepository())

	d := testDevice("light-1", "hologram", nil)
	err := registry.CreateDevice(context.Background(), d)
	if !errors.Is(err, ErrInvalidType) {
		t.Errorf("error = %v, want ErrInvalidType", err)
	}
}

func TestRegistry_RefreshCache(t *testing.T) {
	repo := newMockRepository()
	repo.devices["light-1"] = testDevice("light-1", TypeLight, State{"state": "on"})
	repo.devices["sensor-1"] = testDevice("sensor-1", TypeSensor, State{"value": 21.5})

	registry := NewRegistry(repo)
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	if n := registry.DeviceCount(); n != 2 {
		t.Errorf("DeviceCount = %d, want 2", n)
	}
}

func TestRegistry_SetDeviceState(t *testing.T) {
	repo := newMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	d := testDevice("light-1", TypeLight, State{"state": "off"})
	if err := registry.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	if err := registry.SetDeviceState(ctx, "light-1", State{"state": "on"}); err != nil {
		t.Fatalf("SetDeviceState: %v", err)
	}

	got, err := registry.GetDevice(ctx, "light-1")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if s, _ := got.PrimaryState(); s != "on" {
		t.Errorf("state = %q, want on", s)
	}
	if !got.Online {
		t.Error("Online = false, want true after state update")
	}
	if got.LastSeen == nil {
		t.Error("LastSeen not set")
	}
}

func TestRegistry_DeviceStates(t *testing.T) {
	repo := newMockRepository()
	repo.devices["light-1"] = testDevice("light-1", TypeLight, State{"state": "on"})
	repo.devices["lock-1"] = testDevice("lock-1", TypeLock, State{"state": "locked"})
	repo.devices["bare-1"] = testDevice("bare-1", TypeCamera, State{})
	other := testDevice("light-9", TypeLight, State{"state": "off"})
	other.HomeID = "home-2"
	repo.devices["light-9"] = other

	registry := NewRegistry(repo)
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	states, err := registry.DeviceStates(context.Background(), "home-1")
	if err != nil {
		t.Fatalf("DeviceStates: %v", err)
	}

	want := map[string]string{"light-1": "on", "lock-1": "locked"}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for id, s := range want {
		if states[id] != s {
			t.Errorf("states[%s] = %q, want %q", id, states[id], s)
		}
	}
}

func TestRegistry_SensorValues(t *testing.T) {
	repo := newMockRepository()
	repo.devices["temp-1"] = testDevice("temp-1", TypeSensor, State{"value": 21.5})
	repo.devices["light-1"] = testDevice("light-1", TypeLight, State{"state": "on"})

	registry := NewRegistry(repo)
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	values, err := registry.SensorValues(context.Background(), "home-1")
	if err != nil {
		t.Fatalf("SensorValues: %v", err)
	}
	if len(values) != 1 || values["temp-1"] != 21.5 {
		t.Errorf("values = %v, want {temp-1: 21.5}", values)
	}
}

func TestRegistry_Delete(t *testing.T) {
	registry := NewRegistry(newMockRepository())
	ctx := context.Background()

	if err := registry.CreateDevice(ctx, testDevice("light-1", TypeLight, nil)); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if err := registry.DeleteDevice(ctx, "light-1"); err != nil {
		t.Fatalf("DeleteDevice: %v", err)
	}

	if _, err := registry.GetDevice(ctx, "light-1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("error = %v, want ErrDeviceNotFound", err)
	}
}
