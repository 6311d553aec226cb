package device

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// maxNameLength bounds device names.
const maxNameLength = 100

// ValidateDevice checks all fields required for persistence.
func ValidateDevice(d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: device is nil", ErrInvalidDevice)
	}

	name := strings.TrimSpace(d.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}

	if strings.TrimSpace(d.HomeID) == "" {
		return fmt.Errorf("%w: home_id is required", ErrInvalidDevice)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, d.Type)
	}
	if !d.Protocol.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidProtocol, d.Protocol)
	}

	return nil
}

// GenerateID creates a new unique device identifier.
func GenerateID() string {
	return uuid.New().String()
}
