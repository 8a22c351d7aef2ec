package integrity

import "errors"

// Error taxonomy shared by the monitoring components.
var (
	// ErrTransientBackend marks verification backend timeouts and outages.
	// Retried on the next tick, never fatal.
	ErrTransientBackend = errors.New("biometric backend unavailable")
	// ErrInvalidInput marks missing media permissions or corrupt samples.
	ErrInvalidInput = errors.New("invalid monitoring input")
	// ErrPersistence marks a failed ledger snapshot write.
	ErrPersistence = errors.New("monitoring state persistence failed")
	// ErrConfiguration marks a session that cannot start monitoring.
	ErrConfiguration = errors.New("monitoring is not configured")
	// ErrLedgerClosed is returned when ingesting into a finalized ledger.
	ErrLedgerClosed = errors.New("security ledger is closed")
)
