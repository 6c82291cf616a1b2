package remote

import (
	"errors"
	"fmt"
)

// Sentinel errors for the remote error taxonomy. Callers branch on
// these with errors.Is; everything else from this package is either a
// *NetworkError or a local failure.
var (
	// ErrUnauthorized means the credentials are invalid or expired
	// and the user must re-authenticate.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the remote entity vanished.
	ErrNotFound = errors.New("not found")
	// ErrLockConflict means another collaborator holds the project
	// mutex.
	ErrLockConflict = errors.New("project locked by another user")
	// ErrNoCredentials means no credentials are stored locally.
	ErrNoCredentials = errors.New("no stored credentials, run login first")
)

// NetworkError is a transient transport-level failure. Its outcome is
// indeterminate: the caller must not assume the remote did or did not
// apply the operation.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetwork reports whether err is (or wraps) a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// StatusError reports an unexpected HTTP status from the remote
// service.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed with status %d", e.Op, e.Status)
}
