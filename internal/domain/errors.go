package domain

import "fmt"

// DeviceErrorKind classifies terminal capture-device failures.
type DeviceErrorKind string

const (
	DeviceNotFound         DeviceErrorKind = "not_found"
	DevicePermissionDenied DeviceErrorKind = "permission_denied"
	DeviceCancelled        DeviceErrorKind = "cancelled"
)

// DeviceError is a terminal failure opening an audio source. It aborts
// session start and is surfaced to the user; it is never retried.
type DeviceError struct {
	Kind   DeviceErrorKind
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio device %q: %s: %v", e.Device, e.Kind, e.Err)
	}
	return fmt.Sprintf("audio device %q: %s", e.Device, e.Kind)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// LinkErrorKind classifies transcription-link failures. All of them are
// non-fatal to the recording.
type LinkErrorKind string

const (
	LinkConnectTimeout  LinkErrorKind = "connect_timeout"
	LinkNotConnected    LinkErrorKind = "not_connected"
	LinkPayloadTooLarge LinkErrorKind = "payload_too_large"
	LinkTransport       LinkErrorKind = "transport"
)

// LinkError is a non-fatal transcription-link failure.
type LinkError struct {
	Kind LinkErrorKind
	Err  error
}

func (e *LinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcription link: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("transcription link: %s", e.Kind)
}

func (e *LinkError) Unwrap() error { return e.Err }
