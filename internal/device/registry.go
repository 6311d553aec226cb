package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating CRUD operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device // Cached devices by ID
	cacheMu sync.RWMutex       // Protects cache
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	// Clear and rebuild cache with deep copies
	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	// Try cache first
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		// Return a deep copy to prevent external mutation of cache
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new device not yet cached)
	d, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Cache for future lookups (store a deep copy)
	r.cacheMu.Lock()
	r.cache[id] = d.DeepCopy()
	r.cacheMu.Unlock()

	return d, nil
}

// ListDevices retrieves all devices in a home.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListDevices(ctx context.Context, homeID string) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	// Filter from cache if populated
	if len(r.cache) > 0 {
		var devices []Device
		for _, d := range r.cache {
			if d.HomeID == homeID {
				devices = append(devices, *d.DeepCopy())
			}
		}
		return devices, nil
	}

	return r.repo.ListByHome(ctx, homeID)
}

// CreateDevice creates a new device.
// It validates the device, generates an ID if needed, and persists it.
func (r *Registry) CreateDevice(ctx context.Context, d *Device) error {
	if d != nil && d.ID == "" {
		d.ID = GenerateID()
	}

	if err := ValidateDevice(d); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, d); err != nil {
		return err
	}

	// Update cache (store a deep copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[d.ID] = d.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device created", "id", d.ID, "name", d.Name)
	return nil
}

// UpdateDevice updates an existing device.
// It validates the device and persists the changes.
func (r *Registry) UpdateDevice(ctx context.Context, d *Device) error {
	if err := ValidateDevice(d); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, d); err != nil {
		return err
	}

	// Update cache (store a deep copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[d.ID] = d.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device updated", "id", d.ID, "name", d.Name)
	return nil
}

// DeleteDevice removes a device.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	// Update cache
	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// SetDeviceState updates the state of a device and marks it online.
// This is optimised for frequent updates from the MQTT state relay.
func (r *Registry) SetDeviceState(ctx context.Context, id string, state State) error {
	if err := r.repo.UpdateState(ctx, id, state, true); err != nil {
		return err
	}

	// Update cache using deep copy to prevent race conditions
	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		// Create a deep copy with updated state (atomic replacement)
		updated := cached.DeepCopy()
		updated.State = deepCopyState(state)
		updated.Online = true
		now := time.Now().UTC()
		updated.LastSeen = &now
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device state updated", "id", id)
	return nil
}

// DeviceCount returns the number of cached devices.
func (r *Registry) DeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// ─── Automation State Lookups ───────────────────────────────────────────────

// DeviceStates returns the primary state string of every device in a
// home, keyed by device ID. Devices without a primary state are omitted,
// which surfaces in condition evaluation as an unresolved lookup.
func (r *Registry) DeviceStates(_ context.Context, homeID string) (map[string]string, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	states := make(map[string]string)
	for _, d := range r.cache {
		if d.HomeID != homeID {
			continue
		}
		if s, ok := d.PrimaryState(); ok {
			states[d.ID] = s
		}
	}
	return states, nil
}

// SensorValues returns the numeric reading of every device in a home
// that reports one, keyed by device ID.
func (r *Registry) SensorValues(_ context.Context, homeID string) (map[string]float64, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	values := make(map[string]float64)
	for _, d := range r.cache {
		if d.HomeID != homeID {
			continue
		}
		if v, ok := d.SensorValue(); ok {
			values[d.ID] = v
		}
	}
	return values, nil
}
