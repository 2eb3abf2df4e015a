package writer

import "fmt"

// TenantNotRegisteredError is returned by Lookup and Dispatch when the
// tenant id has no writer. Nothing is mutated.
type TenantNotRegisteredError struct {
	TenantID string
}

func (e *TenantNotRegisteredError) Error() string {
	return fmt.Sprintf("tenant not registered: %s", e.TenantID)
}

// StorageUnavailableError marks a tenant whose storage backend could not be
// built at registry initialization. It is fatal to that tenant's writer only.
type StorageUnavailableError struct {
	TenantID string
	Err      error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable for tenant %s: %v", e.TenantID, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Err }

// StopFlushError reports that the final drain during Stop failed, which
// implies possible data loss for that cycle. It is kept distinct from a
// clean stop so callers can tell the two apart.
type StopFlushError struct {
	TenantID string
	Err      error
}

func (e *StopFlushError) Error() string {
	return fmt.Sprintf("final flush on stop failed for tenant %s: %v", e.TenantID, e.Err)
}

func (e *StopFlushError) Unwrap() error { return e.Err }
