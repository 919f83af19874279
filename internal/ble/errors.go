package ble

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrScanInProgress is returned when a lifecycle operation conflicts
	// with an active scan.
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrConnectInProgress rejects overlapping connect attempts.
	ErrConnectInProgress = errors.New("connect already in progress")
	// ErrAlreadyConnected rejects scan/connect while a link is held.
	ErrAlreadyConnected = errors.New("already connected")

	// Adapter-level sentinels, classified into ConnectError kinds.
	ErrServiceNotFound        = errors.New("service not found on peripheral")
	ErrCharacteristicNotFound = errors.New("characteristic not found in service")
	ErrUnknownPeripheral      = errors.New("peripheral not seen in last scan")
)

// ConnectErrorKind distinguishes the failure causes a connect attempt can
// collapse into. The UI shows the kind instead of a bare "failed".
type ConnectErrorKind string

const (
	KindTimeout                ConnectErrorKind = "timeout"
	KindServiceNotFound        ConnectErrorKind = "service_not_found"
	KindCharacteristicNotFound ConnectErrorKind = "characteristic_not_found"
	KindTransport              ConnectErrorKind = "transport"
)

// ConnectError wraps a failed connect attempt with its cause kind.
type ConnectError struct {
	Kind ConnectErrorKind
	Err  error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connect failed: %s", e.Kind)
	}
	return fmt.Sprintf("connect failed (%s): %v", e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func classifyConnectError(err error) *ConnectError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &ConnectError{Kind: KindTimeout, Err: err}
	case errors.Is(err, ErrServiceNotFound):
		return &ConnectError{Kind: KindServiceNotFound, Err: err}
	case errors.Is(err, ErrCharacteristicNotFound):
		return &ConnectError{Kind: KindCharacteristicNotFound, Err: err}
	default:
		return &ConnectError{Kind: KindTransport, Err: err}
	}
}
