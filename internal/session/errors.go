package session

import "errors"

var (
	// ErrAlreadyExists is returned by Create when the device already has an
	// active session.
	ErrAlreadyExists = errors.New("session already active for device")

	// ErrRetryLimitExceeded is returned by Create once a device has failed
	// initialization MaxInitRetries times in a row.
	ErrRetryLimitExceeded = errors.New("session initialization retry limit exceeded")

	// ErrInitializationTimeout is returned by Create when the provider did
	// not become ready within InitTimeout.
	ErrInitializationTimeout = errors.New("session initialization timed out")

	// ErrInitializationCanceled is returned by Create when the attempt was
	// aborted by a concurrent disconnect or caller cancellation. It does not
	// count against the retry limit.
	ErrInitializationCanceled = errors.New("session initialization canceled")

	// ErrProviderTeardown wraps provider teardown failures. These are logged
	// and recorded, never propagated.
	ErrProviderTeardown = errors.New("provider teardown failed")

	// ErrDeviceNotFound is returned by operations that need an active
	// session when the device has none.
	ErrDeviceNotFound = errors.New("no active session for device")

	// ErrSendNotConnected is returned by Send when the device session exists
	// but is not in the connected state.
	ErrSendNotConnected = errors.New("device is not connected")
)

// authFailureError marks an initialization failure caused by rejected
// credentials, so the create path can leave the persisted auth_failure
// status in place.
type authFailureError struct {
	reason string
}

func (e *authFailureError) Error() string {
	return "authentication failed: " + e.reason
}
