package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidType is returned when a device type is not recognised.
	ErrInvalidType = errors.New("device: invalid type")

	// ErrInvalidProtocol is returned when a protocol value is not recognised.
	ErrInvalidProtocol = errors.New("device: invalid protocol")
)
